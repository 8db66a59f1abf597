// Package api exposes the school operations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"school/internal/school"
)

// Response messages.
const (
	msgWelcome          = "Welcome to School Management API"
	msgRegistered       = "User registered successfully"
	msgStudentAdded     = "Student added successfully"
	msgAttendanceMarked = "Attendance recorded"
	msgInternal         = "Internal server error"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// OperationObserver counts finished operations by outcome.
type OperationObserver interface {
	ObserveOperation(operation, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string) {}

// Handler serves the gateway endpoints.
type Handler struct {
	svc    *school.Service
	log    *zap.Logger
	obs    OperationObserver
	checks map[string]HealthCheck
}

// NewHandler creates a handler. obs and checks may be nil.
func NewHandler(svc *school.Service, log *zap.Logger, obs OperationObserver, checks map[string]HealthCheck) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Handler{svc: svc, log: log, obs: obs, checks: checks}
}

// Home greets API clients.
func (h *Handler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": msgWelcome})
}

// Register handles POST /register.
func (h *Handler) Register(c *gin.Context) {
	var req school.UserRegistration
	if !h.bind(c, school.OpRegister, &req) {
		return
	}
	if err := h.svc.Register(c.Request.Context(), req); err != nil {
		h.fail(c, school.OpRegister, err)
		return
	}
	h.obs.ObserveOperation(school.OpRegister, "ok")
	c.JSON(http.StatusOK, gin.H{"message": msgRegistered})
}

// Login handles POST /login.
func (h *Handler) Login(c *gin.Context) {
	var req school.UserLogin
	if !h.bind(c, school.OpLogin, &req) {
		return
	}
	token, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.fail(c, school.OpLogin, err)
		return
	}
	h.obs.ObserveOperation(school.OpLogin, "ok")
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// AddStudent handles POST /students/.
func (h *Handler) AddStudent(c *gin.Context) {
	var req school.Student
	if !h.bind(c, school.OpAddStudent, &req) {
		return
	}
	if err := h.svc.AddStudent(c.Request.Context(), req); err != nil {
		h.fail(c, school.OpAddStudent, err)
		return
	}
	h.obs.ObserveOperation(school.OpAddStudent, "ok")
	c.JSON(http.StatusOK, gin.H{"message": msgStudentAdded})
}

// MarkAttendance handles POST /attendance/.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req school.AttendanceRecord
	if !h.bind(c, school.OpMarkAttendance, &req) {
		return
	}
	if err := h.svc.MarkAttendance(c.Request.Context(), req); err != nil {
		h.fail(c, school.OpMarkAttendance, err)
		return
	}
	outcome := "ok"
	if h.svc.Async() {
		outcome = "queued"
	}
	h.obs.ObserveOperation(school.OpMarkAttendance, outcome)
	c.JSON(http.StatusOK, gin.H{"message": msgAttendanceMarked})
}

// Healthz runs every configured check.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]bool, len(h.checks))
	for name, check := range h.checks {
		err := check(ctx)
		results[name] = err == nil
		if err != nil {
			status = http.StatusServiceUnavailable
			h.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

func (h *Handler) bind(c *gin.Context, op string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.obs.ObserveOperation(op, "invalid")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return false
	}
	return true
}

// fail maps a service error to its status code. Unexpected faults never leak their cause.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	_ = c.Error(err)
	kind := school.KindOf(err)
	h.obs.ObserveOperation(op, kind.String())

	var e *school.Error
	switch {
	case kind == school.KindRejected || kind == school.KindInvalidCredentials:
		detail := "Bad request"
		if errors.As(err, &e) && e.Detail != "" {
			detail = e.Detail
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": detail})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
	}
}
