package audit

import (
	"context"
	"time"
)

// Publisher captures structured audit events. Persistence is synchronous so
// a committed transition is never missing from the trail; streaming to an
// external sink happens through an optional tee channel drained by a Worker.
type Publisher struct {
	store Store
	tee   chan<- Event
}

type Option func(*Publisher)

// WithTee forwards every persisted event into ch. Sends never block: when
// the channel is full the stream copy is dropped, the stored copy is not.
func WithTee(ch chan<- Event) Option {
	return func(p *Publisher) { p.tee = ch }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.tee != nil {
		select {
		case p.tee <- event:
		default:
		}
	}
	return nil
}

// ListByEntity returns the trail for one entity, oldest first.
func (p *Publisher) ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error) {
	return p.store.ListByEntity(ctx, entity, entityID)
}
