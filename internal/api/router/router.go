package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfman30/salonbook/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/salonbook/internal/http/middleware"
	"github.com/wolfman30/salonbook/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	Cancellation  *handlers.CancellationHandler
	Reminders     *handlers.RemindersHandler
	Notifications *handlers.NotificationHandler
	Responses     *handlers.WhatsAppResponsesHandler
	Health        http.Handler
	Metrics       http.Handler

	// Admin dashboard dependencies (optional)
	AdminLogs        *handlers.AdminLogsHandler
	AdminStats       *handlers.AdminStatsHandler
	AdminPreferences *handlers.AdminNotificationsHandler
	AdminAuthSecret  string

	// Limiter throttles the public webhook and cancellation routes when set.
	Limiter              httpmiddleware.Limiter
	ReminderTriggerToken string
	CORSAllowedOrigins   []string
	// ServiceName labels server spans; tracing is skipped when empty.
	ServiceName string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	r.Method(http.MethodGet, "/health", health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// Public endpoints called by customers, providers and the cancellation page
	r.Group(func(public chi.Router) {
		if cfg.Limiter != nil {
			public.Use(httpmiddleware.RateLimit(cfg.Limiter, cfg.Logger))
		}
		if cfg.Cancellation != nil {
			public.Method(http.MethodPost, "/appointment-cancellation", cfg.Cancellation)
		}
		if cfg.Responses != nil {
			public.Get("/whatsapp-responses", cfg.Responses.Verify)
			public.Post("/whatsapp-responses", cfg.Responses.Receive)
		}
	})

	// Internal triggers (scheduler, dashboard)
	r.Group(func(internal chi.Router) {
		internal.Use(requireTriggerToken(cfg.ReminderTriggerToken))
		if cfg.Reminders != nil {
			internal.Method(http.MethodPost, "/appointment-reminders", cfg.Reminders)
		}
		if cfg.Notifications != nil {
			internal.Method(http.MethodPost, "/whatsapp-notification", cfg.Notifications)
		}
	})

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.AdminLogs != nil {
				admin.Get("/notification-logs", cfg.AdminLogs.ListLogs)
			}
			if cfg.AdminStats != nil {
				admin.Method(http.MethodGet, "/notification-stats", cfg.AdminStats)
			}
			if cfg.AdminPreferences != nil {
				admin.Get("/users/{userID}/notification-preferences", cfg.AdminPreferences.GetPreferences)
				admin.Put("/users/{userID}/notification-preferences", cfg.AdminPreferences.UpdatePreferences)
			}
		})
	}

	if cfg.ServiceName == "" {
		return r
	}
	return otelhttp.NewHandler(r, cfg.ServiceName)
}
