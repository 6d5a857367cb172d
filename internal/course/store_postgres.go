package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"courseflow/pkg/domain"
	"courseflow/pkg/platform/sentinel"
)

// PostgresStore persists course instances in PostgreSQL. Pure I/O; the state
// machine lives in the service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const courseColumns = `id, course_number, requested_date, organization_id, course_type_id,
	instructor_id, location, max_students, status, notes, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, instance *Instance) error {
	query := `
		INSERT INTO course_instances (` + courseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		instance.ID.String(),
		instance.CourseNumber,
		instance.RequestedDate.Time(),
		instance.OrganizationID.String(),
		instance.CourseTypeID.String(),
		instance.InstructorID.String(),
		instance.Location,
		instance.MaxStudents,
		string(instance.Status),
		instance.Notes,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			if pqErr.Constraint == activeSlotConstraint {
				return ErrSlotTaken
			}
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert course instance: %w", err)
	}
	return nil
}

const (
	uniqueViolation      = "23505"
	activeSlotConstraint = "course_instances_active_slot_idx"
)

func (s *PostgresStore) FindByID(ctx context.Context, id domain.CourseInstanceID) (*Instance, error) {
	query := `SELECT ` + courseColumns + ` FROM course_instances WHERE id = $1`
	instance, err := scanInstance(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find course instance: %w", err)
	}
	return instance, nil
}

func (s *PostgresStore) FindByNumber(ctx context.Context, courseNumber string) (*Instance, error) {
	query := `SELECT ` + courseColumns + ` FROM course_instances WHERE course_number = $1`
	instance, err := scanInstance(s.db.QueryRowContext(ctx, query, courseNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find course instance by number: %w", err)
	}
	return instance, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Instance, error) {
	query := `SELECT ` + courseColumns + ` FROM course_instances WHERE 1=1`
	args := []any{}
	if !filter.OrganizationID.IsNil() {
		args = append(args, filter.OrganizationID.String())
		query += fmt.Sprintf(" AND organization_id = $%d", len(args))
	}
	if !filter.InstructorID.IsNil() {
		args = append(args, filter.InstructorID.String())
		query += fmt.Sprintf(" AND instructor_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY course_number"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list course instances: %w", err)
	}
	defer rows.Close()

	var out []*Instance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course instance: %w", err)
		}
		out = append(out, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course instances: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByNumberPrefix(ctx context.Context, prefix string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM course_instances WHERE course_number LIKE $1 || '%'`
	if err := s.db.QueryRowContext(ctx, query, prefix).Scan(&count); err != nil {
		return 0, fmt.Errorf("count course numbers: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ExistsActive(ctx context.Context, instructorID domain.ActorID, date domain.CalendarDate) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM course_instances
			WHERE instructor_id = $1 AND requested_date = $2
			  AND status NOT IN ('cancelled', 'billed')
		)
	`
	if err := s.db.QueryRowContext(ctx, query, instructorID.String(), date.Time()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active course for slot: %w", err)
	}
	return exists, nil
}

// UpdateStatusGuarded is a single conditional UPDATE; zero rows affected
// means the expected prior status no longer holds.
func (s *PostgresStore) UpdateStatusGuarded(ctx context.Context, id domain.CourseInstanceID, expected, next Status) error {
	query := `
		UPDATE course_instances
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	result, err := s.db.ExecContext(ctx, query, id.String(), string(expected), string(next))
	if err != nil {
		return fmt.Errorf("guarded course update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("guarded course update rows affected: %w", err)
	}
	if rows == 0 {
		if _, findErr := s.FindByID(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrVersionMismatch
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*Instance, error) {
	var (
		instance                   Instance
		id, orgID, typeID, instrID string
		requestedDate              sql.NullTime
		status                     string
	)
	err := row.Scan(
		&id,
		&instance.CourseNumber,
		&requestedDate,
		&orgID,
		&typeID,
		&instrID,
		&instance.Location,
		&instance.MaxStudents,
		&status,
		&instance.Notes,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if instance.ID, err = domain.ParseCourseInstanceID(id); err != nil {
		return nil, err
	}
	if instance.OrganizationID, err = domain.ParseOrganizationID(orgID); err != nil {
		return nil, err
	}
	if instance.CourseTypeID, err = domain.ParseCourseTypeID(typeID); err != nil {
		return nil, err
	}
	if instance.InstructorID, err = domain.ParseActorID(instrID); err != nil {
		return nil, err
	}
	instance.RequestedDate = domain.DateOf(requestedDate.Time)
	instance.Status = Status(status)
	return &instance, nil
}
