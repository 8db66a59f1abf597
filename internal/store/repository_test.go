package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"school/internal/school"
)

// newTestRepository opens an in-memory SQLite database with the two tables.
func newTestRepository(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, ddl := range []string{
		`CREATE TABLE students (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			grade TEXT NOT NULL,
			parent_email TEXT NOT NULL
		)`,
		`CREATE TABLE attendance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			student_id TEXT NOT NULL,
			date TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
	} {
		_, err = db.Exec(ddl)
		require.NoError(t, err)
	}
	return NewRepository(db), db
}

func TestRepositoryInsertStudent(t *testing.T) {
	t.Parallel()

	repo, db := newTestRepository(t)
	s := school.Student{Name: "Ada", Email: "ada@school.test", Grade: "5", ParentEmail: "parent@home.test"}

	require.NoError(t, repo.InsertStudent(context.Background(), s))

	var got school.Student
	err := db.QueryRow(`SELECT name, email, grade, parent_email FROM students`).
		Scan(&got.Name, &got.Email, &got.Grade, &got.ParentEmail)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	// SQLite errors are not pg errors, so a duplicate surfaces as an unexpected failure here.
	err = repo.InsertStudent(context.Background(), s)
	require.Error(t, err)
	var ce *ConstraintError
	assert.False(t, errors.As(err, &ce))
}

func TestRepositoryInsertAttendanceAllowsDuplicates(t *testing.T) {
	t.Parallel()

	repo, db := newTestRepository(t)
	rec := school.AttendanceRecord{StudentID: "s-1", Date: "2024-09-02", Status: school.StatusLate}

	require.NoError(t, repo.InsertAttendance(context.Background(), rec))
	require.NoError(t, repo.InsertAttendance(context.Background(), rec))

	var n int
	var status string
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), MAX(status) FROM attendance`).Scan(&n, &status))
	assert.Equal(t, 2, n)
	assert.Equal(t, "late", status)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		wantRejected bool
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505", Message: "duplicate key"}, wantRejected: true},
		{name: "invalid text", err: &pgconn.PgError{Code: "22P02", Message: "invalid input syntax"}, wantRejected: true},
		{name: "undefined table", err: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}},
		{name: "plain error", err: errors.New("connection reset")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := classify("insert student", tt.err)
			require.Error(t, err)
			var ce *ConstraintError
			assert.Equal(t, tt.wantRejected, errors.As(err, &ce))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classify("noop", nil))
}
