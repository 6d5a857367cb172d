package audit

import "context"

// Store is the append-only persistence sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error)
}
