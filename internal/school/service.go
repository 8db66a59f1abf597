// Package school implements the gateway operations on top of the hosted auth and data services.
package school

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"school/internal/queue"
	"school/internal/supabase"
)

// MessageAttendance is the queue message type carrying an AttendanceRecord.
const MessageAttendance = "attendance"

// Operation names used in errors, logs and metrics.
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpAddStudent     = "add_student"
	OpMarkAttendance = "mark_attendance"
)

// Identity signs users up and in.
type Identity interface {
	SignUp(ctx context.Context, email, password string, data map[string]any) (*supabase.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
}

// AccountAdmin writes account data the account holder cannot change.
type AccountAdmin interface {
	UpdateAppMetadata(ctx context.Context, userID string, meta map[string]any) error
}

// Records persists students and attendance.
type Records interface {
	InsertStudent(ctx context.Context, s Student) error
	InsertAttendance(ctx context.Context, a AttendanceRecord) error
}

// consumeInsertTimeout bounds one queued insert, which outlives the consumer's context.
const consumeInsertTimeout = 30 * time.Second

// Service runs the four gateway operations. It holds no per-request state.
type Service struct {
	identity Identity
	records  Records
	queue    queue.Queue
	admin    AccountAdmin
	reserved []Role
	log      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAttendanceQueue makes MarkAttendance publish records instead of inserting them inline.
func WithAttendanceQueue(q queue.Queue) Option {
	return func(s *Service) { s.queue = q }
}

// WithRoleGrants stores each registered role in the account's app metadata through admin, where
// access tokens expose it as app_metadata.role. Roles in reserved cannot be chosen at registration.
func WithRoleGrants(admin AccountAdmin, reserved ...Role) Option {
	return func(s *Service) {
		s.admin = admin
		s.reserved = reserved
	}
}

// NewService creates a service backed by identity and records.
func NewService(identity Identity, records Records, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{identity: identity, records: records, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Async reports whether attendance is delivered through a queue.
func (s *Service) Async() bool { return s.queue != nil }

// Register creates an account with the provider, storing the role as user metadata.
// With role grants configured the role is also written to app metadata.
func (s *Service) Register(ctx context.Context, in UserRegistration) error {
	if slices.Contains(s.reserved, in.Role) {
		s.log.Info("reserved role refused", zap.String("email", in.Email), zap.String("role", string(in.Role)))
		return &Error{Op: OpRegister, Kind: KindRejected, Detail: fmt.Sprintf("Role %s cannot be chosen at registration", in.Role)}
	}

	user, err := s.identity.SignUp(ctx, in.Email, in.Password, map[string]any{"role": string(in.Role)})
	if err != nil {
		if isRejected(err) {
			detail := "Registration rejected"
			var apiErr *supabase.APIError
			if errors.As(err, &apiErr) && apiErr.Message != "" {
				detail = apiErr.Message
			}
			s.log.Info("registration rejected", zap.String("email", in.Email), zap.Error(err))
			return &Error{Op: OpRegister, Kind: KindRejected, Detail: detail, Err: err}
		}
		return s.unexpected(OpRegister, err)
	}
	if s.admin == nil {
		return nil
	}

	if user == nil || user.ID == "" {
		return s.unexpected(OpRegister, errors.New("sign-up returned no user id"))
	}
	if err := s.admin.UpdateAppMetadata(ctx, user.ID, map[string]any{"role": string(in.Role)}); err != nil {
		return s.unexpected(OpRegister, fmt.Errorf("grant role to %s: %w", user.ID, err))
	}
	return nil
}

// Login verifies credentials and returns the provider-issued access token unchanged.
func (s *Service) Login(ctx context.Context, in UserLogin) (string, error) {
	sess, err := s.identity.SignInWithPassword(ctx, in.Email, in.Password)
	switch {
	case errors.Is(err, supabase.ErrInvalidCredentials):
		return "", &Error{Op: OpLogin, Kind: KindInvalidCredentials, Detail: "Invalid credentials", Err: err}
	case err != nil && isRejected(err):
		detail := "Login rejected"
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			detail = apiErr.Message
		}
		return "", &Error{Op: OpLogin, Kind: KindRejected, Detail: detail, Err: err}
	case err != nil:
		return "", s.unexpected(OpLogin, err)
	}
	if sess == nil || sess.User == nil {
		return "", &Error{Op: OpLogin, Kind: KindInvalidCredentials, Detail: "Invalid credentials"}
	}
	if sess.AccessToken == "" {
		return "", s.unexpected(OpLogin, errors.New("session without access token"))
	}
	return sess.AccessToken, nil
}

// AddStudent inserts a student record.
func (s *Service) AddStudent(ctx context.Context, in Student) error {
	err := s.records.InsertStudent(ctx, in)
	if err == nil {
		return nil
	}
	if isRejected(err) {
		s.log.Info("student insert rejected", zap.Error(err))
		return &Error{Op: OpAddStudent, Kind: KindRejected, Detail: "Failed to add student", Err: err}
	}
	return s.unexpected(OpAddStudent, err)
}

// MarkAttendance records attendance. With a queue configured the record is only enqueued and
// later insertion failures are logged by ConsumeAttendance, never reported to the caller.
func (s *Service) MarkAttendance(ctx context.Context, in AttendanceRecord) error {
	if s.queue != nil {
		msg, err := queue.NewMessage(MessageAttendance, in)
		if err != nil {
			return s.unexpected(OpMarkAttendance, err)
		}
		if err := s.queue.Publish(ctx, msg); err != nil {
			return s.unexpected(OpMarkAttendance, fmt.Errorf("publish %s: %w", msg.ID, err))
		}
		s.log.Debug("attendance queued", zap.String("message_id", msg.ID), zap.String("student_id", in.StudentID))
		return nil
	}

	err := s.records.InsertAttendance(ctx, in)
	if err == nil {
		return nil
	}
	if isRejected(err) {
		s.log.Info("attendance insert rejected", zap.Error(err))
		return &Error{Op: OpMarkAttendance, Kind: KindRejected, Detail: "Failed to record attendance", Err: err}
	}
	return s.unexpected(OpMarkAttendance, err)
}

// ConsumeAttendance inserts queued attendance records until ctx is cancelled or q is drained.
// Failed inserts are logged and dropped. An insert already started when ctx is cancelled still runs
// to completion.
func (s *Service) ConsumeAttendance(ctx context.Context, q queue.Queue) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume attendance: %w", err)
	}
	for msg := range msgs {
		if msg.Type != MessageAttendance {
			s.log.Warn("skipping message", zap.String("message_id", msg.ID), zap.String("type", msg.Type))
			continue
		}
		var rec AttendanceRecord
		if err := msg.Decode(&rec); err != nil {
			s.log.Error("undecodable attendance message", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		if err := s.insertQueued(ctx, rec); err != nil {
			s.log.Error("attendance insert failed",
				zap.String("message_id", msg.ID),
				zap.String("student_id", rec.StudentID),
				zap.Bool("rejected", isRejected(err)),
				zap.Error(err))
			continue
		}
		s.log.Debug("attendance recorded", zap.String("message_id", msg.ID))
	}
	return nil
}

func (s *Service) insertQueued(ctx context.Context, rec AttendanceRecord) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), consumeInsertTimeout)
	defer cancel()
	return s.records.InsertAttendance(ctx, rec)
}

func (s *Service) unexpected(op string, err error) error {
	s.log.Error("backend call failed", zap.String("op", op), zap.Error(err))
	return &Error{Op: op, Kind: KindUnexpected, Detail: "Internal server error", Err: err}
}
