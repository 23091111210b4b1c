package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pecal/pecal-reminders/internal/api"
	"github.com/pecal/pecal-reminders/internal/config"
	"github.com/pecal/pecal-reminders/internal/events"
	"github.com/pecal/pecal-reminders/internal/platform/expo"
	"github.com/pecal/pecal-reminders/internal/platform/metrics"
	"github.com/pecal/pecal-reminders/internal/platform/postgres"
	"github.com/pecal/pecal-reminders/internal/reminder"
	"github.com/pecal/pecal-reminders/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// application holds the shared dependencies of every command and owns their
// cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	coordination reminder.CoordinationStore
	registry     *prometheus.Registry
	observer     *metrics.PrometheusObserver

	emitter   *events.InMemoryEventEmitter
	producer  *reminder.Producer
	service   *reminder.Service
	scheduler *scheduler.Scheduler
}

// newApplication wires the reminder pipeline. The relational collaborators
// always live in PostgreSQL; the coordination store follows
// cfg.Coordination.Driver.
func newApplication(cfg *config.Config, log *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   log,
		db:       db,
		registry: prometheus.NewRegistry(),
	}

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := metrics.NewPrometheusObserver(metrics.DefaultNamespace, app.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	app.observer = observer

	switch cfg.Coordination.Driver {
	case "memory":
		app.coordination = reminder.NewMemoryStore()
		log.Warn("using in-memory coordination store; reminders are lost on restart and not shared between processes")
	case "postgres", "":
		app.coordination = postgres.NewPostgresCoordinationStore(db, log)
	default:
		return nil, fmt.Errorf("unknown coordination driver %q", cfg.Coordination.Driver)
	}

	rcfg := reminder.FromAppConfig(cfg.Reminder)

	deps := reminder.DispatcherDeps{
		Store:         app.coordination,
		Tasks:         postgres.NewPostgresTaskStore(db, log),
		Audience:      reminder.NewAudienceResolver(postgres.NewPostgresMembershipDirectory(db, log), log),
		Notifications: postgres.NewPostgresNotificationStore(db, log),
	}
	if cfg.Push.Enabled {
		deps.PushTokens = postgres.NewPostgresPushTokenStore(db, log)
		deps.Push = expo.NewClient(cfg.Push, log)
	}

	app.service = reminder.NewService(
		reminder.NewConsumer(app.coordination, rcfg, log, app.observer),
		reminder.NewDispatcher(deps, rcfg, log, app.observer),
		app.coordination,
		log,
	)

	app.producer = reminder.NewProducer(app.coordination, rcfg, log, app.observer)
	app.emitter = events.NewInMemoryEventEmitter(log)
	app.emitter.RegisterHandler(app.producer)

	app.scheduler = scheduler.New(cfg.Scheduler, app.service, log)

	log.Info("reminder pipeline initialized",
		slog.String("coordination_driver", cfg.Coordination.Driver),
		slog.Int("tz_offset_minutes", rcfg.TZOffsetMinutes),
		slog.Bool("revalidate_before_send", rcfg.RevalidateBeforeSend))
	return app, nil
}

// setupRouter builds the HTTP handler of the serve command.
func (app *application) setupRouter() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Handler:    api.NewReminderHandler(app.service, app.emitter, app.logger),
		CronSecret: app.config.Cron.Secret,
		Metrics:    promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}),
		Logger:     app.logger,
	})
}

// serve runs the HTTP server and the scheduler until ctx is canceled or the
// server fails, then shuts both down.
func (app *application) serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := app.scheduler.Start(gctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	g.Go(func() error {
		app.logger.Info("starting server", slog.Int("port", app.config.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.scheduler.Stop(shutdownCtx)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		app.logger.Info("server shutdown completed")
		return nil
	})

	return g.Wait()
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		closeDatabase(app.db, app.logger)
	}
}
