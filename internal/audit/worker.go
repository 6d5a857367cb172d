package audit

import (
	"context"
	"log/slog"
)

// Worker drains the publisher's tee channel into an external sink. Delivery
// failures are logged and skipped: the stored trail is the durable copy, the
// stream is best effort.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "audit stream delivery failed",
					"kind", event.Kind,
					"entity", event.Entity,
					"entity_id", event.EntityID,
					"error", err,
				)
			}
		}
	}
}
