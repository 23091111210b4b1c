package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
	"github.com/pecal/pecal-reminders/internal/store"
)

// PushGateway delivers push messages. Implementations tolerate partial
// failure and report destinations that are no longer registered.
type PushGateway interface {
	Send(ctx context.Context, messages []domain.PushMessage) (domain.PushResult, error)
}

// DispatcherStore is the part of the coordination store the Dispatcher needs.
type DispatcherStore interface {
	ScheduleStore
	DedupeStore
}

// DispatcherDeps groups the collaborators of a Dispatcher. Push and
// PushTokens may be nil, which disables push fan-out.
type DispatcherDeps struct {
	Store         DispatcherStore
	Tasks         store.TaskStore
	Audience      MemberResolver
	Notifications store.NotificationStore
	PushTokens    store.PushTokenStore
	Push          PushGateway
}

// Dispatcher delivers due jobs. It keeps no state between calls.
type Dispatcher struct {
	deps     DispatcherDeps
	cfg      Config
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(deps DispatcherDeps, cfg Config, log *slog.Logger, observer Observer) *Dispatcher {
	return &Dispatcher{
		deps:     deps,
		cfg:      cfg.normalized(),
		logger:   log,
		observer: observerOrNop(observer),
		now:      time.Now,
	}
}

// SetClock replaces the clock used to decide which jobs are due.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// DispatchDue delivers up to SendBatchSize due jobs and returns the number of
// notifications written. Errors are logged, never returned.
func (d *Dispatcher) DispatchDue(ctx context.Context) int {
	if d == nil || d.deps.Store == nil {
		return 0
	}
	started := time.Now()
	defer func() { d.observer.StageCompleted(StageDispatch, time.Since(started)) }()
	log := logger.FromContextOrDefault(ctx, d.logger).With(slog.String("component", "reminder_dispatcher"))

	keys, err := d.deps.Store.DueJobs(ctx, d.now().Unix(), d.cfg.SendBatchSize)
	if err != nil {
		log.WarnContext(ctx, "failed to list due reminder jobs", slog.String("error", err.Error()))
		return 0
	}

	sent := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		sent += d.dispatchJob(ctx, log, key)
	}

	d.observer.NotificationsSent(sent)
	if len(keys) > 0 {
		log.InfoContext(ctx, "dispatched due reminders",
			slog.Int("jobs", len(keys)),
			slog.Int("sent", sent))
	}
	return sent
}

// dispatchJob handles one due key. Failures before any dedupe marker is
// claimed keep the job for the next run; once claiming starts the job is
// always retired.
func (d *Dispatcher) dispatchJob(ctx context.Context, log *slog.Logger, key string) int {
	jobLog := log.With(slog.String("job_key", key))

	payload, found, err := d.deps.Store.LoadJob(ctx, key)
	if err != nil {
		jobLog.WarnContext(ctx, "failed to load reminder job", slog.String("error", err.Error()))
		return 0
	}
	if !found {
		if err := d.deps.Store.RemoveIndexEntry(ctx, key); err != nil {
			jobLog.WarnContext(ctx, "failed to drop orphaned schedule entry", slog.String("error", err.Error()))
		}
		d.observer.JobRetired(DropMissingPayload)
		return 0
	}

	job, err := decodeJob(payload)
	if err != nil {
		jobLog.WarnContext(ctx, "dropping undecodable reminder job", slog.String("error", err.Error()))
		d.retire(ctx, jobLog, key, DropBadPayload)
		return 0
	}

	task, err := d.deps.Tasks.GetTaskByID(ctx, job.TaskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			d.retire(ctx, jobLog, key, DropTaskMissing)
			return 0
		}
		jobLog.WarnContext(ctx, "failed to load task for reminder, keeping job",
			slog.Int64("task_id", job.TaskID),
			slog.String("error", err.Error()))
		return 0
	}
	if reason, ok := d.validate(task, job); !ok {
		d.retire(ctx, jobLog, key, reason)
		return 0
	}

	members, err := d.deps.Audience.Resolve(ctx, job.WorkspaceID)
	if err != nil {
		jobLog.WarnContext(ctx, "failed to resolve reminder audience, keeping job",
			slog.Int64("workspace_id", job.WorkspaceID),
			slog.String("error", err.Error()))
		return 0
	}
	if len(members) == 0 {
		d.retire(ctx, jobLog, key, DropNoAudience)
		return 0
	}

	winners := d.claim(ctx, jobLog, job, members)
	if len(winners) == 0 {
		d.retire(ctx, jobLog, key, DropDispatched)
		return 0
	}

	if d.cfg.RevalidateBeforeSend {
		current, err := d.deps.Tasks.GetTaskByID(ctx, job.TaskID)
		switch {
		case err == nil:
			if _, ok := d.validate(current, job); !ok {
				jobLog.InfoContext(ctx, "task changed after claiming, sending nothing",
					slog.Int64("task_id", job.TaskID))
				d.retire(ctx, jobLog, key, DropChanged)
				return 0
			}
			task = current
		case store.IsNotFoundError(err):
			d.retire(ctx, jobLog, key, DropChanged)
			return 0
		default:
			jobLog.WarnContext(ctx, "failed to re-check task, using earlier state",
				slog.Int64("task_id", job.TaskID),
				slog.String("error", err.Error()))
		}
	}

	sent := d.deliver(ctx, jobLog, task, job, winners)
	d.retire(ctx, jobLog, key, DropDispatched)
	return sent
}

// validate reports whether job still matches the canonical task, and the
// drop reason when it does not.
func (d *Dispatcher) validate(task *domain.Task, job *domain.ScheduledJob) (string, bool) {
	if task == nil {
		return DropTaskMissing, false
	}
	if task.Status.IsTerminal() {
		return DropTaskDone, false
	}
	if !task.Matches(job, d.cfg.TZOffsetMinutes) {
		return DropStale, false
	}
	return "", true
}

// claim returns the members for whom this run won the dedupe marker.
func (d *Dispatcher) claim(ctx context.Context, jobLog *slog.Logger, job *domain.ScheduledJob, members []int64) []int64 {
	winners := make([]int64, 0, len(members))
	for _, memberID := range members {
		key := domain.DedupeKey(memberID, job.TaskID, job.StartAt, job.ReminderMinutes)
		won, err := d.deps.Store.Claim(ctx, key, d.cfg.DedupeTTL)
		if err != nil {
			jobLog.WarnContext(ctx, "failed to claim reminder dedupe marker",
				slog.Int64("member_id", memberID),
				slog.String("error", err.Error()))
			continue
		}
		if won {
			winners = append(winners, memberID)
		}
	}
	return winners
}

// deliver writes one notification per winner and fans out push messages.
// It returns the number of notifications written.
func (d *Dispatcher) deliver(
	ctx context.Context,
	jobLog *slog.Logger,
	task *domain.Task,
	job *domain.ScheduledJob,
	winners []int64,
) int {
	notifications := make([]domain.Notification, 0, len(winners))
	for _, memberID := range winners {
		notifications = append(notifications, domain.NewTaskReminderNotification(memberID, task, job))
	}

	inserted, err := d.deps.Notifications.CreateNotificationsBulk(ctx, notifications)
	if err != nil {
		jobLog.WarnContext(ctx, "failed to write reminder notifications",
			slog.Int64("task_id", job.TaskID),
			slog.Int("count", len(notifications)),
			slog.String("error", err.Error()))
		return 0
	}

	d.push(ctx, jobLog, winners, notifications)
	return inserted
}

func (d *Dispatcher) push(ctx context.Context, jobLog *slog.Logger, winners []int64, notifications []domain.Notification) {
	if d.deps.Push == nil || d.deps.PushTokens == nil {
		return
	}

	destinations, err := d.deps.PushTokens.ListActiveByMemberIDs(ctx, winners)
	if err != nil {
		jobLog.WarnContext(ctx, "failed to list push destinations", slog.String("error", err.Error()))
		return
	}
	if len(destinations) == 0 {
		return
	}

	byMember := make(map[int64][]string, len(destinations))
	for _, dest := range destinations {
		byMember[dest.MemberID] = append(byMember[dest.MemberID], dest.Token)
	}
	var messages []domain.PushMessage
	for _, n := range notifications {
		for _, token := range byMember[n.MemberID] {
			messages = append(messages, domain.NewPushMessage(token, n))
		}
	}
	if len(messages) == 0 {
		return
	}

	result, err := d.deps.Push.Send(ctx, messages)
	d.observer.PushDelivered(result.Sent, len(result.InvalidTokens), err)
	if err != nil {
		jobLog.WarnContext(ctx, "push delivery failed",
			slog.Int("messages", len(messages)),
			slog.String("error", err.Error()))
	}
	if len(result.InvalidTokens) > 0 {
		if err := d.deps.PushTokens.DeactivateTokens(ctx, result.InvalidTokens); err != nil {
			jobLog.WarnContext(ctx, "failed to deactivate push tokens",
				slog.Int("tokens", len(result.InvalidTokens)),
				slog.String("error", err.Error()))
		}
	}
}

func (d *Dispatcher) retire(ctx context.Context, jobLog *slog.Logger, key, reason string) {
	if err := d.deps.Store.RemoveJob(ctx, key); err != nil {
		jobLog.WarnContext(ctx, "failed to retire reminder job",
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		return
	}
	d.observer.JobRetired(reason)
	if reason != DropDispatched {
		jobLog.DebugContext(ctx, "retired reminder job", slog.String("reason", reason))
	}
}

func decodeJob(payload []byte) (*domain.ScheduledJob, error) {
	var job domain.ScheduledJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job payload: %w", err)
	}
	if job.TaskID <= 0 {
		return nil, domain.ErrInvalidTaskID
	}
	return &job, nil
}
