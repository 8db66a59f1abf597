package config

import (
	"errors"
	"fmt"
	"log"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend selectors.
const (
	RecordsREST     = "rest"
	RecordsPostgres = "postgres"

	BackendMemory = "memory"
	BackendRedis  = "redis"

	DeliveryAsync = "async"
	DeliverySync  = "sync"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env                string
	HTTPPort           string
	LogLevel           string
	SupabaseURL        string
	SupabaseKey        string
	SupabaseJWTSecret  string
	ProviderTimeout    time.Duration
	RecordsBackend     string
	DatabaseURL        string
	RedisAddr          string
	QueueBackend       string
	AttendanceDelivery string
	RateLimitPerMin    int
	RateLimitBackend   string
	CORSOrigins        []string
	// TrustedProxies lists the addresses or CIDRs whose X-Forwarded-For is believed.
	// Empty means the client address is always the TCP peer.
	TrustedProxies []string
}

// Load returns application config populated from environment variables with sensible defaults.
// A .env file in the working directory is read first when present; real environment wins.
func Load() App {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}
	return App{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPPort:           getEnv("HTTP_PORT", "8000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:        getEnv("SUPABASE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
		ProviderTimeout:    durationEnv("PROVIDER_TIMEOUT", 30*time.Second),
		RecordsBackend:     getEnv("RECORDS_BACKEND", RecordsREST),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		QueueBackend:       getEnv("QUEUE_BACKEND", BackendMemory),
		AttendanceDelivery: getEnv("ATTENDANCE_DELIVERY", DeliveryAsync),
		RateLimitPerMin:    intEnv("RATE_LIMIT_PER_MIN", 120),
		RateLimitBackend:   getEnv("RATE_LIMIT_BACKEND", BackendMemory),
		CORSOrigins:        listEnv("CORS_ORIGINS", []string{"*"}),
		TrustedProxies:     listEnv("TRUSTED_PROXIES", nil),
	}
}

// Production reports whether the app runs in a production environment.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// Validate checks that required settings are present and backend selections are consistent.
func (a App) Validate() error {
	var errs []error
	if a.SupabaseURL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	}
	if a.SupabaseKey == "" {
		errs = append(errs, errors.New("SUPABASE_KEY is required"))
	}
	switch a.RecordsBackend {
	case RecordsREST:
	case RecordsPostgres:
		if a.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres records backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RECORDS_BACKEND %q", a.RecordsBackend))
	}
	for name, val := range map[string]string{"QUEUE_BACKEND": a.QueueBackend, "RATE_LIMIT_BACKEND": a.RateLimitBackend} {
		switch val {
		case BackendMemory:
		case BackendRedis:
			if a.RedisAddr == "" {
				errs = append(errs, fmt.Errorf("REDIS_ADDR is required when %s=redis", name))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown %s %q", name, val))
		}
	}
	if a.AttendanceDelivery != DeliveryAsync && a.AttendanceDelivery != DeliverySync {
		errs = append(errs, fmt.Errorf("unknown ATTENDANCE_DELIVERY %q", a.AttendanceDelivery))
	}
	if a.RateLimitPerMin <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MIN must be positive"))
	}
	for _, p := range a.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES entry %q is neither an address nor a CIDR", p))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}

func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
