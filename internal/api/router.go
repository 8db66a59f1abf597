package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"school/internal/auth"
	"school/internal/httpmiddleware"
	"school/internal/school"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Handler     *Handler
	Log         *zap.Logger
	Metrics     *httpmiddleware.Metrics
	Gatherer    prometheus.Gatherer
	Limiter     httpmiddleware.Limiter
	CORSOrigins []string
	// TrustedProxies may set the client address through X-Forwarded-For. Nil trusts none.
	TrustedProxies []string
	// JWTSecret enables role checks on the record endpoints when set.
	JWTSecret string
	JWTIssuer string
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Warn("invalid trusted proxies, trusting none", zap.Strings("proxies", cfg.TrustedProxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(log, "/healthz", "/metrics"))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())

	r.GET("/healthz", cfg.Handler.Healthz)
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	routes := r.Group("/")
	if cfg.Limiter != nil {
		routes.Use(httpmiddleware.RateLimit(cfg.Limiter, log))
	}

	h := cfg.Handler
	routes.GET("/", h.Home)
	routes.POST("/register", h.Register)
	routes.POST("/login", h.Login)

	studentGuard := passThrough
	attendanceGuard := passThrough
	if cfg.JWTSecret != "" {
		studentGuard = auth.RequireRole(cfg.JWTSecret, cfg.JWTIssuer, school.RoleAdmin)
		attendanceGuard = auth.RequireRole(cfg.JWTSecret, cfg.JWTIssuer, school.RoleAdmin, school.RoleTeacher)
	}
	for _, path := range []string{"/students/", "/students"} {
		routes.POST(path, studentGuard, h.AddStudent)
	}
	for _, path := range []string{"/attendance/", "/attendance"} {
		routes.POST(path, attendanceGuard, h.MarkAttendance)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
	return r
}

func passThrough(c *gin.Context) { c.Next() }

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders: []string{httpmiddleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
