package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"courseflow/pkg/domain"
	"courseflow/pkg/platform/sentinel"
)

// PostgresStore persists payment records in PostgreSQL. The one-active-
// payment-per-course rule is a partial unique index, so concurrent inserts
// resolve to exactly one winner.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

const paymentColumns = `id, course_instance_id, organization_id, amount_cents, method, status,
	recorded_by, recorded_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, payment *Payment) error {
	query := `
		INSERT INTO payment_records (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		payment.ID.String(),
		payment.CourseInstanceID.String(),
		payment.OrganizationID.String(),
		payment.AmountCents,
		string(payment.Method),
		string(payment.Status),
		payment.RecordedBy.String(),
		payment.RecordedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert payment record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.PaymentID) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE id = $1`
	payment, err := scanPayment(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment record: %w", err)
	}
	return payment, nil
}

func (s *PostgresStore) FindActiveByCourse(ctx context.Context, courseID domain.CourseInstanceID) (*Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_records
		WHERE course_instance_id = $1 AND status NOT IN ('cancelled', 'refunded')
	`
	payment, err := scanPayment(s.db.QueryRowContext(ctx, query, courseID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active payment for course: %w", err)
	}
	return payment, nil
}

func (s *PostgresStore) UpdateStatusGuarded(ctx context.Context, id domain.PaymentID, expected, next Status) error {
	query := `
		UPDATE payment_records
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	result, err := s.db.ExecContext(ctx, query, id.String(), string(expected), string(next))
	if err != nil {
		return fmt.Errorf("guarded payment update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("guarded payment update rows affected: %w", err)
	}
	if rows == 0 {
		if _, findErr := s.FindByID(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrVersionMismatch
	}
	return nil
}

func (s *PostgresStore) Summarize(ctx context.Context, orgID domain.OrganizationID, from, to domain.CalendarDate) (Summary, error) {
	summary := Summary{
		OrganizationID: orgID,
		From:           from,
		To:             to,
		TotalsByStatus: make(map[Status]int64),
		CountsByStatus: make(map[Status]int),
	}
	query := `
		SELECT status, COALESCE(SUM(amount_cents), 0), COUNT(*)
		FROM payment_records
		WHERE organization_id = $1 AND recorded_at >= $2 AND recorded_at < $3 + INTERVAL '1 day'
		GROUP BY status
	`
	rows, err := s.db.QueryContext(ctx, query, orgID.String(), from.Time(), to.Time())
	if err != nil {
		return Summary{}, fmt.Errorf("summarize payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			total  int64
			count  int
		)
		if err := rows.Scan(&status, &total, &count); err != nil {
			return Summary{}, fmt.Errorf("scan payment summary row: %w", err)
		}
		summary.TotalsByStatus[Status(status)] = total
		summary.CountsByStatus[Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterate payment summary: %w", err)
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*Payment, error) {
	var (
		payment                   Payment
		id, courseID, orgID, byID string
		method, status            string
	)
	err := row.Scan(
		&id,
		&courseID,
		&orgID,
		&payment.AmountCents,
		&method,
		&status,
		&byID,
		&payment.RecordedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if payment.ID, err = domain.ParsePaymentID(id); err != nil {
		return nil, err
	}
	if payment.CourseInstanceID, err = domain.ParseCourseInstanceID(courseID); err != nil {
		return nil, err
	}
	if payment.OrganizationID, err = domain.ParseOrganizationID(orgID); err != nil {
		return nil, err
	}
	if payment.RecordedBy, err = domain.ParseActorID(byID); err != nil {
		return nil, err
	}
	payment.Method = Method(method)
	payment.Status = Status(status)
	return &payment, nil
}
