package school

import "fmt"

// Role is the account type chosen at registration.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

// ParseRole returns the Role named by s.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q: want admin, teacher, student or parent", s)
}

// UnmarshalText rejects roles outside the closed set.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// AttendanceStatus is the outcome recorded for a student on a date.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
)

// ParseAttendanceStatus returns the status named by s.
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	switch st := AttendanceStatus(s); st {
	case StatusPresent, StatusAbsent, StatusLate:
		return st, nil
	}
	return "", fmt.Errorf("unknown attendance status %q: want present, absent or late", s)
}

// UnmarshalText rejects statuses outside the closed set.
func (s *AttendanceStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseAttendanceStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UserRegistration is the body of a sign-up request.
type UserRegistration struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     Role   `json:"role" binding:"required"`
}

// UserLogin is the body of a password login.
type UserLogin struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Student is a row of the students table.
type Student struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Grade       string `json:"grade" binding:"required"`
	ParentEmail string `json:"parent_email" binding:"required"`
}

// AttendanceRecord is a row of the attendance table.
type AttendanceRecord struct {
	StudentID string           `json:"student_id" binding:"required"`
	Date      string           `json:"date" binding:"required"`
	Status    AttendanceStatus `json:"status" binding:"required"`
}
