package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/salonbook/cmd/mainconfig"
	"github.com/wolfman30/salonbook/internal/api/router"
	"github.com/wolfman30/salonbook/internal/app/bootstrap"
	appconfig "github.com/wolfman30/salonbook/internal/config"
	"github.com/wolfman30/salonbook/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/salonbook/internal/http/middleware"
	"github.com/wolfman30/salonbook/internal/observability/metrics"
	"github.com/wolfman30/salonbook/internal/reminders"
	"github.com/wolfman30/salonbook/pkg/logging"
)

func main() {
	// .env is optional outside development
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting salonbook API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.BusinessTimezone,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	var awsCfg *aws.Config
	if mainconfig.AWSEnabled(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	metricsHandler, workflowMetrics, gatherer := setupMetrics()
	svc, err := bootstrap.BuildServices(cfg, bootstrap.Infra{Pool: pool, Redis: redisClient, AWS: awsCfg}, workflowMetrics, logger)
	if err != nil {
		logger.Error("failed to wire services", "error", err)
		os.Exit(1)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() { _ = sqlDB.Close() }()

	r := router.New(buildRouterConfig(ctx, cfg, svc, routerDeps{
		pool:     pool,
		redis:    redisClient,
		sqlDB:    sqlDB,
		metrics:  workflowMetrics,
		gatherer: gatherer,
		handler:  metricsHandler,
	}, logger))

	if cfg.ReminderInterval > 0 {
		logger.Info("in-process reminder scheduler enabled", "interval", cfg.ReminderInterval)
		go reminders.NewScheduler(svc.Reminders, cfg.ReminderInterval, logger).Run(ctx)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	// in-flight calendar syncs are bounded by CALENDAR_SYNC_TIMEOUT
	svc.Calendar.Wait()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the workflow collectors on a private registry.
func setupMetrics() (http.Handler, *metrics.WorkflowMetrics, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWorkflowMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m, reg
}

type routerDeps struct {
	pool     *pgxpool.Pool
	redis    *redis.Client
	sqlDB    *sql.DB
	metrics  *metrics.WorkflowMetrics
	gatherer prometheus.Gatherer
	handler  http.Handler
}

func buildRouterConfig(ctx context.Context, cfg *appconfig.Config, svc *bootstrap.Services, deps routerDeps, logger *logging.Logger) *router.Config {
	checks := map[string]handlers.Pinger{}
	if deps.pool != nil {
		checks["database"] = deps.pool
	}
	if deps.redis != nil {
		checks["redis"] = bootstrap.RedisPinger{Client: deps.redis}
	}

	rc := &router.Config{
		Logger:        logger,
		Cancellation:  handlers.NewCancellationHandler(svc.Tokens, svc.Followup, deps.metrics, logger),
		Reminders:     handlers.NewRemindersHandler(svc.Reminders, logger),
		Notifications: handlers.NewNotificationHandler(svc.Dispatcher, logger),
		Responses: handlers.NewWhatsAppResponsesHandler(svc.Responses, handlers.WebhookConfig{
			VerifyToken:     cfg.WhatsAppVerifyToken,
			AppSecret:       cfg.WhatsAppAppSecret,
			TwilioAuthToken: cfg.TwilioAuthToken,
			PublicURL:       cfg.PublicBaseURL + "/whatsapp-responses",
		}, logger),
		Health:               handlers.NewHealthHandler(checks),
		Metrics:              deps.handler,
		AdminStats:           handlers.NewAdminStatsHandler(deps.gatherer),
		AdminPreferences:     handlers.NewAdminNotificationsHandler(svc.Preferences, logger),
		AdminAuthSecret:      cfg.AdminJWTSecret,
		Limiter:              buildLimiter(ctx, cfg, deps.redis),
		ReminderTriggerToken: cfg.ReminderTriggerToken,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		ServiceName:          "salonbook-api",
	}
	if deps.sqlDB != nil {
		rc.AdminLogs = handlers.NewAdminLogsHandler(deps.sqlDB, logger)
	}
	return rc
}

// buildLimiter uses the shared Redis window when asked for and available,
// otherwise a per-process token bucket.
func buildLimiter(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client) httpmiddleware.Limiter {
	if cfg.RateLimitRedis && redisClient != nil {
		limit := int(cfg.RateLimitRPS * cfg.RateLimitWindow.Seconds())
		if limit < cfg.RateLimitBurst {
			limit = cfg.RateLimitBurst
		}
		return httpmiddleware.NewRedisLimiter(redisClient, limit, cfg.RateLimitWindow, "")
	}
	return httpmiddleware.NewMemoryLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
}
