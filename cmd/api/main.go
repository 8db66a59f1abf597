package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"school/internal/api"
	"school/internal/config"
	"school/internal/httpmiddleware"
	"school/internal/logging"
	"school/internal/queue"
	"school/internal/school"
	"school/internal/store"
	"school/internal/supabase"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := supabase.New(cfg.SupabaseURL, cfg.SupabaseKey, cfg.ProviderTimeout)
	checks := map[string]api.HealthCheck{"provider": provider.Health}

	var records school.Records = store.NewTables(provider)
	if cfg.RecordsBackend == config.RecordsPostgres {
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		records = store.NewRepository(db.Client)
		checks["db"] = func(ctx context.Context) error {
			if !db.Healthy(ctx) {
				return errors.New("database unreachable")
			}
			return nil
		}
		logger.Info("records stored directly in postgres")
	}

	var redisClient *store.Redis
	if cfg.RedisAddr != "" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error {
			if !redisClient.Healthy(ctx) {
				return errors.New("redis unreachable")
			}
			return nil
		}
	}

	var opts []school.Option
	var memQueue *queue.InMemory
	if cfg.AttendanceDelivery == config.DeliveryAsync {
		if cfg.QueueBackend == config.BackendRedis {
			opts = append(opts, school.WithAttendanceQueue(queue.NewRedisQueue(redisClient.Client, "")))
			logger.Info("attendance delivered through redis; run cmd/worker to record it")
		} else {
			memQueue = queue.NewInMemory(256)
			opts = append(opts, school.WithAttendanceQueue(memQueue))
		}
	}
	jwtIssuer := ""
	if cfg.SupabaseJWTSecret != "" {
		jwtIssuer = cfg.SupabaseURL + "/auth/v1"
		// Guards read app_metadata.role; admins and teachers are granted out of band.
		opts = append(opts, school.WithRoleGrants(provider, school.RoleAdmin, school.RoleTeacher))
		logger.Info("role checks enabled on record endpoints")
	}
	svc := school.NewService(provider, records, logger, opts...)

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	consumerDone := make(chan struct{})
	if memQueue != nil {
		go func() {
			defer close(consumerDone)
			if err := svc.ConsumeAttendance(consumerCtx, memQueue); err != nil {
				logger.Error("attendance consumer stopped", zap.Error(err))
			}
		}()
	} else {
		close(consumerDone)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := httpmiddleware.NewMetrics(reg)

	var limiter httpmiddleware.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if cfg.RateLimitBackend == config.BackendRedis {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	}

	router := api.NewRouter(api.RouterConfig{
		Handler:        api.NewHandler(svc, logger, metrics, checks),
		Log:            logger,
		Metrics:        metrics,
		Gatherer:       reg,
		Limiter:        limiter,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
		JWTSecret:      cfg.SupabaseJWTSecret,
		JWTIssuer:      jwtIssuer,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	if memQueue != nil {
		memQueue.Close()
		select {
		case <-consumerDone:
		case <-time.After(10 * time.Second):
			logger.Warn("queued attendance not fully recorded before exit")
		}
	}
	cancelConsumer()
	<-consumerDone

	logger.Info("server exited")
	return nil
}
