package reminder

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
)

// ConsumerStore is the part of the coordination store the Consumer needs.
type ConsumerStore interface {
	EventLog
	CursorStore
	ScheduleStore
}

// Consumer compiles the event log into the schedule. It keeps no state
// between calls; progress lives in the persisted cursor.
type Consumer struct {
	store    ConsumerStore
	cfg      Config
	logger   *slog.Logger
	observer Observer
}

// NewConsumer creates a Consumer.
func NewConsumer(store ConsumerStore, cfg Config, log *slog.Logger, observer Observer) *Consumer {
	return &Consumer{
		store:    store,
		cfg:      cfg.normalized(),
		logger:   log,
		observer: observerOrNop(observer),
	}
}

// ProcessStream applies every entry after the cursor, up to BatchSize entries
// per read and MaxBatchLoops reads, and returns how many entries were
// applied. Malformed entries are skipped and not counted. When applying an
// entry fails the run stops there, and the cursor is left at the last applied
// entry so the next run retries it. Errors are logged, never returned.
func (c *Consumer) ProcessStream(ctx context.Context) int {
	if c == nil || c.store == nil {
		return 0
	}
	started := time.Now()
	defer func() { c.observer.StageCompleted(StageStream, time.Since(started)) }()
	log := logger.FromContextOrDefault(ctx, c.logger).With(slog.String("component", "reminder_consumer"))

	cursor, err := c.store.LoadCursor(ctx)
	if err != nil {
		log.WarnContext(ctx, "failed to load reminder cursor", slog.String("error", err.Error()))
		return 0
	}

	position := cursor
	processed, skipped := 0, 0
	limit := c.cfg.BatchSize * c.cfg.MaxBatchLoops

read:
	for loop := 0; loop < c.cfg.MaxBatchLoops && processed < limit; loop++ {
		entries, err := c.store.ReadAfter(ctx, position, c.cfg.BatchSize)
		if err != nil {
			log.WarnContext(ctx, "failed to read reminder events",
				slog.Int64("after", position),
				slog.String("error", err.Error()))
			break
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				break read
			}
			applied, err := c.apply(ctx, log, entry)
			if err != nil {
				log.WarnContext(ctx, "failed to apply reminder event, stopping run",
					slog.Int64("position", entry.Position),
					slog.String("error", err.Error()))
				break read
			}
			position = entry.Position
			if applied {
				processed++
			} else {
				skipped++
			}
		}
	}

	if position > cursor {
		if err := c.store.SaveCursor(ctx, position); err != nil {
			log.WarnContext(ctx, "failed to save reminder cursor",
				slog.Int64("position", position),
				slog.String("error", err.Error()))
		}
	}

	c.observer.EventsApplied(processed)
	if processed > 0 || skipped > 0 {
		log.InfoContext(ctx, "processed reminder events",
			slog.Int("processed", processed),
			slog.Int("skipped", skipped),
			slog.Int64("cursor", position))
	}
	return processed
}

// apply folds one entry into the schedule. It reports false for entries that
// were skipped as malformed.
func (c *Consumer) apply(ctx context.Context, log *slog.Logger, entry LogEntry) (bool, error) {
	event, err := domain.ParseReminderEvent(entry.Position, entry.Fields)
	if err != nil {
		c.observer.EventSkipped()
		log.DebugContext(ctx, "skipping malformed reminder event",
			slog.Int64("position", entry.Position),
			slog.String("error", err.Error()))
		return false, nil
	}

	key := domain.JobKey(event.TaskID)
	if event.Action == domain.ReminderActionDelete {
		return true, c.store.RemoveJob(ctx, key)
	}

	job, ok := c.compile(event)
	if !ok {
		// reminders disabled or start time unusable
		return true, c.store.RemoveJob(ctx, key)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return true, err
	}
	return true, c.store.PutJob(ctx, key, job.TriggerAt(), payload)
}

func (c *Consumer) compile(event *domain.ReminderEvent) (*domain.ScheduledJob, bool) {
	if event.ReminderMinutes == nil {
		return nil, false
	}
	startAt, ok := domain.ParseNaiveTimestamp(event.StartTime, c.cfg.TZOffsetMinutes)
	if !ok {
		return nil, false
	}
	return &domain.ScheduledJob{
		TaskID:          event.TaskID,
		WorkspaceID:     event.WorkspaceID,
		Title:           event.Title,
		Color:           event.Color,
		StartAt:         startAt,
		ReminderMinutes: *event.ReminderMinutes,
	}, true
}
