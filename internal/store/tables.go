package store

import (
	"context"

	"school/internal/school"
)

// Table names in the hosted database.
const (
	StudentsTable   = "students"
	AttendanceTable = "attendance"
)

// Inserter writes one row into a named table.
type Inserter interface {
	Insert(ctx context.Context, table string, row any) error
}

// Tables stores records through the provider's data API.
type Tables struct {
	api Inserter
}

// NewTables creates a records store over api.
func NewTables(api Inserter) *Tables {
	return &Tables{api: api}
}

// InsertStudent adds a row to the students table.
func (t *Tables) InsertStudent(ctx context.Context, s school.Student) error {
	return t.api.Insert(ctx, StudentsTable, s)
}

// InsertAttendance adds a row to the attendance table.
func (t *Tables) InsertAttendance(ctx context.Context, a school.AttendanceRecord) error {
	return t.api.Insert(ctx, AttendanceTable, a)
}
