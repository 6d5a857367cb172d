package availability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"courseflow/pkg/domain"
	"courseflow/pkg/platform/sentinel"
)

// PostgresStore persists calendar entries in PostgreSQL. Pure I/O; guard
// semantics come from conditional updates, business rules stay in services.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) Insert(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO availability_entries (instructor_id, date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.InstructorID.String(),
		entry.Date.Time(),
		string(entry.Status),
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert availability entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) (Entry, error) {
	query := `
		SELECT instructor_id, date, status, created_at, updated_at
		FROM availability_entries
		WHERE instructor_id = $1 AND date = $2
	`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, instructorID.String(), date.Time()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, sentinel.ErrNotFound
		}
		return Entry{}, fmt.Errorf("find availability entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListFrom(ctx context.Context, instructorID domain.ActorID, from domain.CalendarDate) ([]Entry, error) {
	query := `
		SELECT instructor_id, date, status, created_at, updated_at
		FROM availability_entries
		WHERE instructor_id = $1 AND date >= $2
		ORDER BY date
	`
	rows, err := s.db.QueryContext(ctx, query, instructorID.String(), from.Time())
	if err != nil {
		return nil, fmt.Errorf("list availability entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability entries: %w", err)
	}
	return out, nil
}

// UpdateStatusGuarded is a single conditional UPDATE; zero rows affected
// means the expected prior status no longer holds.
func (s *PostgresStore) UpdateStatusGuarded(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate, expected, next Status) error {
	query := `
		UPDATE availability_entries
		SET status = $4, updated_at = NOW()
		WHERE instructor_id = $1 AND date = $2 AND status = $3
	`
	result, err := s.db.ExecContext(ctx, query, instructorID.String(), date.Time(), string(expected), string(next))
	if err != nil {
		return fmt.Errorf("guarded availability update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("guarded availability update rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing entry from a status race.
		if _, findErr := s.Find(ctx, instructorID, date); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrVersionMismatch
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry        Entry
		instructorID string
		date         sql.NullTime
		status       string
	)
	if err := row.Scan(&instructorID, &date, &status, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Entry{}, err
	}
	parsedID, err := domain.ParseActorID(instructorID)
	if err != nil {
		return Entry{}, err
	}
	entry.InstructorID = parsedID
	entry.Date = domain.DateOf(date.Time)
	entry.Status = Status(status)
	return entry, nil
}
