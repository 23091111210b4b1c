package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pecal/pecal-reminders/internal/config"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
	"github.com/pecal/pecal-reminders/internal/platform/postgres"
	"github.com/spf13/cobra"
)

// cli carries state shared by the subcommands once the root command has
// loaded configuration.
type cli struct {
	config   *config.Config
	logger   *slog.Logger
	logLevel string

	// loadConfig is replaced in tests.
	loadConfig func() (*config.Config, error)
}

func newRootCommand() *cobra.Command {
	c := &cli{loadConfig: config.Load}

	root := &cobra.Command{
		Use:           "pecal-reminders",
		Short:         "Task reminder pipeline for pecal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initialize()
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(c),
		newMigrateCommand(c),
		newProcessStreamCommand(c),
		newDispatchDueCommand(c),
		newPurgeDedupeCommand(c),
	)
	return root
}

func (c *cli) initialize() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.logLevel != "" {
		cfg.Server.LogLevel = c.logLevel
	}

	l, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("coordination_driver", cfg.Coordination.Driver),
		slog.Bool("push_enabled", cfg.Push.Enabled),
		slog.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
		slog.Bool("cron_secret_present", cfg.Cron.Secret != ""))

	c.config = cfg
	c.logger = l
	return nil
}

// withApplication opens the database, builds the application and runs fn.
// The context is canceled on SIGINT or SIGTERM.
func (c *cli) withApplication(parent context.Context, fn func(ctx context.Context, app *application) error) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, c.config.Database, c.logger)
	if err != nil {
		return err
	}

	app, err := newApplication(c.config, c.logger, db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer app.cleanup()

	return fn(ctx, app)
}

func newServeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and, when enabled, the in-process scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApplication(cmd.Context(), func(ctx context.Context, app *application) error {
				return app.serve(ctx)
			})
		},
	}
}

func newMigrateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status|version|redo|reset] [args...]",
		Short: "Run database migrations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openDatabase(ctx, c.config.Database, c.logger)
			if err != nil {
				return err
			}
			defer closeDatabase(db, c.logger)

			return postgres.Migrate(ctx, db, args[0], c.logger, args[1:]...)
		},
	}
}

func newProcessStreamCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "process-stream",
		Short: "Apply pending reminder events to the schedule once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApplication(cmd.Context(), func(ctx context.Context, app *application) error {
				n := app.service.ProcessStream(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "processed %d stream events\n", n)
				return nil
			})
		},
	}
}

func newDispatchDueCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch-due",
		Short: "Deliver due reminders once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApplication(cmd.Context(), func(ctx context.Context, app *application) error {
				n := app.service.DispatchDue(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "sent %d notifications\n", n)
				return nil
			})
		},
	}
}

func newPurgeDedupeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-dedupe",
		Short: "Delete expired dedupe markers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApplication(cmd.Context(), func(ctx context.Context, app *application) error {
				n, err := app.service.PurgeDedupe(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d dedupe markers\n", n)
				return nil
			})
		},
	}
}

func closeDatabase(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Error("failed to close database connection", slog.String("error", err.Error()))
	}
}
