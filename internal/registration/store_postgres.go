package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"courseflow/pkg/domain"
	"courseflow/pkg/platform/sentinel"
)

// PostgresStore persists the ledger in PostgreSQL across two tables,
// registrations and attendance_records, both keyed on
// (course_instance_id, student_id).
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

func (s *PostgresStore) InsertRegistration(ctx context.Context, reg Registration) error {
	query := `
		INSERT INTO registrations (course_instance_id, student_id, registration_date, confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		reg.CourseInstanceID.String(),
		reg.StudentID.String(),
		reg.RegistrationDate.Time(),
		reg.Confirmed,
		reg.CreatedAt,
		reg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRegistration(ctx context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID) (Registration, error) {
	query := `
		SELECT course_instance_id, student_id, registration_date, confirmed, created_at, updated_at
		FROM registrations
		WHERE course_instance_id = $1 AND student_id = $2
	`
	reg, err := scanRegistration(s.db.QueryRowContext(ctx, query, courseID.String(), studentID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Registration{}, sentinel.ErrNotFound
		}
		return Registration{}, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

func (s *PostgresStore) ListRegistrations(ctx context.Context, courseID domain.CourseInstanceID) ([]Registration, error) {
	query := `
		SELECT course_instance_id, student_id, registration_date, confirmed, created_at, updated_at
		FROM registrations
		WHERE course_instance_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, courseID.String())
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountConfirmed(ctx context.Context, courseID domain.CourseInstanceID) (int, error) {
	query := `SELECT COUNT(*) FROM registrations WHERE course_instance_id = $1 AND confirmed`
	var count int
	if err := s.db.QueryRowContext(ctx, query, courseID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count confirmed registrations: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ConfirmRegistration(ctx context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID, maxStudents int) error {
	query := `
		UPDATE registrations
		SET confirmed = TRUE, updated_at = NOW()
		WHERE course_instance_id = $1 AND student_id = $2 AND NOT confirmed
		  AND (SELECT COUNT(*) FROM registrations WHERE course_instance_id = $1 AND confirmed) < $3
	`
	result, err := s.db.ExecContext(ctx, query, courseID.String(), studentID.String(), maxStudents)
	if err != nil {
		return fmt.Errorf("confirm registration: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirm registration rows affected: %w", err)
	}
	if rows == 0 {
		// Decide which guard failed.
		reg, findErr := s.FindRegistration(ctx, courseID, studentID)
		switch {
		case errors.Is(findErr, sentinel.ErrNotFound):
			return sentinel.ErrNotFound
		case findErr != nil:
			return findErr
		case reg.Confirmed:
			return sentinel.ErrVersionMismatch
		default:
			return ErrCapacityReached
		}
	}
	return nil
}

func (s *PostgresStore) FindAttendance(ctx context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID) (Attendance, error) {
	query := `
		SELECT course_instance_id, student_id, attended, certification_issued, updated_at
		FROM attendance_records
		WHERE course_instance_id = $1 AND student_id = $2
	`
	var (
		rec             Attendance
		course, student string
	)
	err := s.db.QueryRowContext(ctx, query, courseID.String(), studentID.String()).
		Scan(&course, &student, &rec.Attended, &rec.CertificationIssued, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attendance{}, sentinel.ErrNotFound
		}
		return Attendance{}, fmt.Errorf("find attendance record: %w", err)
	}
	rec.CourseInstanceID = courseID
	rec.StudentID = studentID
	return rec, nil
}

func (s *PostgresStore) UpsertAttendance(ctx context.Context, rec Attendance) error {
	query := `
		INSERT INTO attendance_records (course_instance_id, student_id, attended, certification_issued, updated_at)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (course_instance_id, student_id)
		DO UPDATE SET attended = EXCLUDED.attended, updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.attended OR NOT attendance_records.certification_issued
	`
	result, err := s.db.ExecContext(ctx, query,
		rec.CourseInstanceID.String(),
		rec.StudentID.String(),
		rec.Attended,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert attendance rows affected: %w", err)
	}
	if rows == 0 {
		// The conflict guard skipped the write: the record is certified
		// and the caller tried to clear Attended.
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) MarkCertified(ctx context.Context, courseID domain.CourseInstanceID, studentID domain.ActorID) error {
	query := `
		UPDATE attendance_records
		SET certification_issued = TRUE, updated_at = NOW()
		WHERE course_instance_id = $1 AND student_id = $2 AND attended AND NOT certification_issued
	`
	result, err := s.db.ExecContext(ctx, query, courseID.String(), studentID.String())
	if err != nil {
		return fmt.Errorf("mark certification issued: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark certification rows affected: %w", err)
	}
	if rows == 0 {
		// Decide which guard failed.
		rec, findErr := s.FindAttendance(ctx, courseID, studentID)
		switch {
		case errors.Is(findErr, sentinel.ErrNotFound):
			return sentinel.ErrNotFound
		case findErr != nil:
			return findErr
		case rec.CertificationIssued:
			return sentinel.ErrConflict
		default:
			return sentinel.ErrInvalidState
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (Registration, error) {
	var (
		reg       Registration
		courseID  string
		studentID string
		date      sql.NullTime
	)
	if err := row.Scan(&courseID, &studentID, &date, &reg.Confirmed, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return Registration{}, err
	}
	parsedCourse, err := domain.ParseCourseInstanceID(courseID)
	if err != nil {
		return Registration{}, err
	}
	parsedStudent, err := domain.ParseActorID(studentID)
	if err != nil {
		return Registration{}, err
	}
	reg.CourseInstanceID = parsedCourse
	reg.StudentID = parsedStudent
	reg.RegistrationDate = domain.DateOf(date.Time)
	return reg, nil
}
