package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
)

// ErrJobNotFound is returned by InspectJob when a task has no scheduled
// reminder.
var ErrJobNotFound = errors.New("reminder job not found")

// RunReport describes one combined consumer and dispatcher run.
type RunReport struct {
	RunID                 string    `json:"runId"`
	RanAt                 time.Time `json:"ranAt"`
	ProcessedStreamEvents int       `json:"processedStreamEvents"`
	SentNotifications     int       `json:"sentNotifications"`
	Error                 string    `json:"error,omitempty"`
}

// Service ties the pipeline stages together for the invocation surfaces.
type Service struct {
	consumer   *Consumer
	dispatcher *Dispatcher
	store      CoordinationStore
	base       *slog.Logger
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a Service.
func NewService(consumer *Consumer, dispatcher *Dispatcher, store CoordinationStore, log *slog.Logger) *Service {
	return &Service{
		consumer:   consumer,
		dispatcher: dispatcher,
		store:      store,
		base:       log,
		logger:     log.With(slog.String("component", "reminder_service")),
		now:        time.Now,
	}
}

// ProcessStream runs the consumer once.
func (s *Service) ProcessStream(ctx context.Context) int {
	return s.consumer.ProcessStream(s.runContext(ctx, StageStream))
}

// DispatchDue runs the dispatcher once.
func (s *Service) DispatchDue(ctx context.Context) int {
	return s.dispatcher.DispatchDue(s.runContext(ctx, StageDispatch))
}

// RunOnce drains the event log, dispatches due jobs, and records the report.
// A failure to record the report is reflected in its Error field.
func (s *Service) RunOnce(ctx context.Context) RunReport {
	report := RunReport{
		RunID: uuid.NewString(),
		RanAt: s.now().UTC(),
	}
	ctx = logger.WithLogger(ctx, s.base.With(slog.String("run_id", report.RunID)))

	report.ProcessedStreamEvents = s.consumer.ProcessStream(ctx)
	report.SentNotifications = s.dispatcher.DispatchDue(ctx)

	if s.store != nil {
		if err := s.store.RecordRun(ctx, report, LastRunTTL); err != nil {
			report.Error = fmt.Sprintf("failed to record run: %v", err)
			s.logger.WarnContext(ctx, "failed to record reminder run",
				slog.String("run_id", report.RunID),
				slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "reminder run complete",
		slog.String("run_id", report.RunID),
		slog.Int("processed_stream_events", report.ProcessedStreamEvents),
		slog.Int("sent_notifications", report.SentNotifications))
	return report
}

// LastRun returns the most recent recorded run, or nil when none is
// available.
func (s *Service) LastRun(ctx context.Context) (*RunReport, error) {
	if s.store == nil {
		return nil, nil
	}
	report, err := s.store.LastRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load last reminder run: %w", err)
	}
	return report, nil
}

// PurgeDedupe drops expired dedupe markers.
func (s *Service) PurgeDedupe(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	purged, err := s.store.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge dedupe markers: %w", err)
	}
	if purged > 0 {
		s.logger.InfoContext(ctx, "purged expired dedupe markers", slog.Int64("purged", purged))
	}
	return purged, nil
}

// JobView is the inspectable state of one task's scheduled reminder.
type JobView struct {
	Key       string               `json:"key"`
	TriggerAt int64                `json:"triggerAt"`
	Indexed   bool                 `json:"indexed"`
	Job       *domain.ScheduledJob `json:"job,omitempty"`
}

// InspectJob returns the scheduled reminder of taskID, or ErrJobNotFound when
// neither an index entry nor a payload exists.
func (s *Service) InspectJob(ctx context.Context, taskID int64) (*JobView, error) {
	if taskID <= 0 {
		return nil, domain.ErrInvalidTaskID
	}
	if s.store == nil {
		return nil, ErrJobNotFound
	}

	key := domain.JobKey(taskID)
	triggerAt, indexed, err := s.store.JobTriggerAt(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule entry: %w", err)
	}
	payload, found, err := s.store.LoadJob(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read job payload: %w", err)
	}
	if !indexed && !found {
		return nil, ErrJobNotFound
	}

	view := &JobView{Key: key, TriggerAt: triggerAt, Indexed: indexed}
	if found {
		if job, err := decodeJob(payload); err == nil {
			view.Job = job
		}
	}
	return view, nil
}

func (s *Service) runContext(ctx context.Context, stage string) context.Context {
	return logger.WithLogger(ctx, s.base.With(
		slog.String("run_id", uuid.NewString()),
		slog.String("stage", stage)))
}
