package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pecal/pecal-reminders/internal/api/middleware"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Handler    *ReminderHandler
	CronSecret string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter builds the HTTP routes of the service.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewTraceMiddleware(cfg.Logger))

	cronAuth := middleware.NewCronAuth(cfg.CronSecret)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(cronAuth.Authenticate)

			r.Post("/cron/task-reminders", cfg.Handler.RunCron)
			r.Get("/cron/task-reminders", cfg.Handler.GetLastRun)

			r.Post("/reminders/events", cfg.Handler.EmitEvent)
			r.Get("/reminders/jobs/{taskID}", cfg.Handler.GetJob)
		})
	})

	r.Get("/health", Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	return r
}
