package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"school/internal/school"
)

// Repository persists records directly in Postgres, bypassing the data API.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertStudent writes a new student.
func (r *Repository) InsertStudent(ctx context.Context, s school.Student) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (name, email, grade, parent_email)
		VALUES ($1, $2, $3, $4)
	`, s.Name, s.Email, s.Grade, s.ParentEmail)
	return classify("insert student", err)
}

// InsertAttendance writes a new attendance row.
func (r *Repository) InsertAttendance(ctx context.Context, a school.AttendanceRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (student_id, date, status)
		VALUES ($1, $2, $3)
	`, a.StudentID, a.Date, string(a.Status))
	return classify("insert attendance", err)
}

// ConstraintError is a statement the database refused because of the data it carried.
type ConstraintError struct {
	Op  string
	Err *pgconn.PgError
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s (SQLSTATE %s)", e.Op, e.Err.Message, e.Err.Code)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// Rejected is always true: data exceptions and integrity violations are the caller's fault.
func (e *ConstraintError) Rejected() bool { return true }

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	// Class 22 is data exception, class 23 integrity constraint violation.
	if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")) {
		return &ConstraintError{Op: op, Err: pgErr}
	}
	return fmt.Errorf("%s: %w", op, err)
}
