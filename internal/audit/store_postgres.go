package audit

import (
	"context"
	"database/sql"
	"fmt"

	"courseflow/pkg/domain"
)

// PostgresStore appends audit events to the audit_events table. Rows are
// never updated or deleted.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (kind, actor_id, entity, entity_id, transition_from, transition_to, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(event.Kind),
		event.ActorID.String(),
		event.Entity,
		event.EntityID,
		event.From,
		event.To,
		event.RequestID,
		event.At,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error) {
	query := `
		SELECT kind, actor_id, entity, entity_id, transition_from, transition_to, request_id, occurred_at
		FROM audit_events
		WHERE entity = $1 AND entity_id = $2
		ORDER BY occurred_at
	`
	rows, err := s.db.QueryContext(ctx, query, entity, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event Event
			kind  string
			actor string
		)
		err := rows.Scan(&kind, &actor, &event.Entity, &event.EntityID, &event.From, &event.To, &event.RequestID, &event.At)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Kind = EventKind(kind)
		actorID, err := domain.ParseActorID(actor)
		if err != nil {
			return nil, fmt.Errorf("scan audit event actor: %w", err)
		}
		event.ActorID = actorID
		out = append(out, event)
	}
	return out, rows.Err()
}
