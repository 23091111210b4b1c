package reminder

import (
	"context"
	"log/slog"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/events"
)

// Producer appends reminder events to the event log. It is called from task
// mutation paths, which must never fail because the reminder pipeline is
// unavailable, so Emit reports problems only through the log.
type Producer struct {
	log      EventLog
	maxLen   int
	logger   *slog.Logger
	observer Observer
}

// NewProducer creates a Producer. A nil log turns every Emit into a no-op.
func NewProducer(log EventLog, cfg Config, logger *slog.Logger, observer Observer) *Producer {
	cfg = cfg.normalized()
	return &Producer{
		log:      log,
		maxLen:   cfg.StreamMaxLen,
		logger:   logger.With(slog.String("component", "reminder_producer")),
		observer: observerOrNop(observer),
	}
}

var _ events.EventHandler = (*Producer)(nil)

// Emit appends event to the log. Out-of-range reminder minutes are stored as
// absent. Failures are logged and swallowed.
func (p *Producer) Emit(ctx context.Context, event domain.ReminderEvent) {
	if p == nil || p.log == nil {
		return
	}
	if err := event.Validate(); err != nil {
		p.logger.WarnContext(ctx, "dropping invalid reminder event",
			slog.Int64("task_id", event.TaskID),
			slog.String("error", err.Error()))
		return
	}

	position, err := p.log.Append(ctx, event.Fields(), p.maxLen)
	if err != nil {
		p.observer.EmitFailed()
		p.logger.WarnContext(ctx, "failed to emit reminder event",
			slog.Int64("task_id", event.TaskID),
			slog.String("action", string(event.Action)),
			slog.String("error", err.Error()))
		return
	}

	p.logger.DebugContext(ctx, "emitted reminder event",
		slog.Int64("task_id", event.TaskID),
		slog.String("action", string(event.Action)),
		slog.Int64("position", position))
}

// HandleEvent implements events.EventHandler by emitting the reminder event
// carried by a task change. It never returns an error.
func (p *Producer) HandleEvent(ctx context.Context, event *events.TaskChangeEvent) error {
	if event == nil {
		return nil
	}
	p.Emit(ctx, event.Reminder)
	return nil
}
