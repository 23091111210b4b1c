// Package scheduler drives the reminder pipeline from an in-process timer.
//
// It is a convenience for deployments without an external cron: every
// stage it runs is also reachable through the HTTP cron endpoint and the
// CLI, and overlapping or missed ticks are harmless.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pecal/pecal-reminders/internal/config"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
	"github.com/robfig/cron/v3"
)

// Job names used in logs.
const (
	JobProcessStream = "process_stream"
	JobDispatchDue   = "dispatch_due"
	JobPurgeDedupe   = "purge_dedupe"
)

// PurgeSpec is the schedule of the dedupe marker purge.
const PurgeSpec = "@hourly"

// Runner is the part of reminder.Service the scheduler drives.
type Runner interface {
	ProcessStream(ctx context.Context) int
	DispatchDue(ctx context.Context) int
	PurgeDedupe(ctx context.Context) (int64, error)
}

// Scheduler runs the pipeline stages on fixed intervals.
type Scheduler struct {
	cfg    config.SchedulerConfig
	runner Runner
	logger *slog.Logger

	mu     sync.Mutex
	c      *cron.Cron
	cancel context.CancelFunc
}

// New creates a Scheduler. Nothing runs until Start.
func New(cfg config.SchedulerConfig, runner Runner, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		logger: log.With(slog.String("component", "scheduler")),
	}
}

// Start registers the jobs and starts the timer. It is a no-op when the
// scheduler is disabled or already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled")
		return nil
	}
	if s.c != nil {
		return nil
	}

	cl := cronLogger{logger: s.logger}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))
	runCtx, cancel := context.WithCancel(ctx)

	jobs := []struct {
		name string
		spec string
		fn   func(context.Context)
	}{
		{JobProcessStream, every(s.cfg.StreamIntervalSeconds), func(ctx context.Context) {
			n := s.runner.ProcessStream(ctx)
			logger.FromContextOrDefault(ctx, s.logger).Debug("stream processed", slog.Int("events", n))
		}},
		{JobDispatchDue, every(s.cfg.DispatchIntervalSecs), func(ctx context.Context) {
			n := s.runner.DispatchDue(ctx)
			logger.FromContextOrDefault(ctx, s.logger).Debug("due reminders dispatched", slog.Int("notifications", n))
		}},
		{JobPurgeDedupe, PurgeSpec, func(ctx context.Context) {
			n, err := s.runner.PurgeDedupe(ctx)
			log := logger.FromContextOrDefault(ctx, s.logger)
			if err != nil {
				log.Warn("dedupe purge failed", slog.String("error", err.Error()))
				return
			}
			log.Debug("dedupe markers purged", slog.Int64("purged", n))
		}},
	}
	for _, j := range jobs {
		if _, err := c.AddFunc(j.spec, s.wrap(runCtx, j.name, j.fn)); err != nil {
			cancel()
			return fmt.Errorf("failed to schedule %s (%s): %w", j.name, j.spec, err)
		}
	}

	s.c = c
	s.cancel = cancel
	c.Start()
	s.logger.Info("scheduler started",
		slog.Int("stream_interval_seconds", s.cfg.StreamIntervalSeconds),
		slog.Int("dispatch_interval_seconds", s.cfg.DispatchIntervalSecs),
		slog.Int("run_timeout_seconds", s.cfg.RunTimeoutSeconds))
	return nil
}

// Stop halts the timer and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out waiting for running jobs")
	}
	cancel()
	s.logger.Info("scheduler stopped")
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return 0
	}
	return len(s.c.Entries())
}

func (s *Scheduler) wrap(parent context.Context, name string, fn func(context.Context)) func() {
	return func() {
		timeout := time.Duration(s.cfg.RunTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		log := s.logger.With(slog.String("job", name))
		ctx = logger.WithLogger(ctx, log)
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in scheduled job", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			}
		}()

		started := time.Now()
		fn(ctx)
		log.Debug("scheduled job finished", slog.Int64("duration_ms", time.Since(started).Milliseconds()))
	}
}

func every(seconds int) string {
	if seconds <= 0 {
		seconds = 15
	}
	return fmt.Sprintf("@every %ds", seconds)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
