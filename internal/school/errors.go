package school

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// KindUnexpected covers transport faults and provider-side failures.
	KindUnexpected Kind = iota
	// KindRejected means the provider refused the request as given.
	KindRejected
	// KindInvalidCredentials means a login found no matching user.
	KindInvalidCredentials
)

func (k Kind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindInvalidCredentials:
		return "invalid_credentials"
	default:
		return "unexpected"
	}
}

// Error is returned by every Service operation.
type Error struct {
	Op     string
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnexpected when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// rejection is implemented by backend errors that can tell a refusal from a failure.
type rejection interface {
	error
	Rejected() bool
}

func isRejected(err error) bool {
	var r rejection
	return errors.As(err, &r) && r.Rejected()
}
