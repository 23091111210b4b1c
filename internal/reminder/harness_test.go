package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/stretchr/testify/require"
)

const (
	scenarioStart     = "2025-01-10 09:00:00"
	scenarioStartUnix = int64(1736467200) // 09:00 at UTC+9
)

// pipeline wires every stage over one MemoryStore and mock collaborators.
type pipeline struct {
	store      *MemoryStore
	tasks      *MockTaskStore
	directory  *MockDirectory
	notes      *MockNotificationStore
	tokens     *MockPushTokenStore
	push       *MockPushGateway
	observer   *recordingObserver
	producer   *Producer
	consumer   *Consumer
	dispatcher *Dispatcher
	now        time.Time
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	return newPipelineWithConfig(t, DefaultConfig())
}

func newPipelineWithConfig(t *testing.T, cfg Config) *pipeline {
	t.Helper()
	p := &pipeline{
		store:     NewMemoryStore(),
		tasks:     newMockTaskStore(),
		directory: newMockDirectory(),
		notes:     &MockNotificationStore{},
		tokens:    &MockPushTokenStore{},
		push:      &MockPushGateway{},
		observer:  newRecordingObserver(),
		now:       time.Unix(scenarioStartUnix-3600, 0),
	}
	p.store.SetClock(func() time.Time { return p.now })

	logger := testLogger()
	p.producer = NewProducer(p.store, cfg, logger, p.observer)
	p.consumer = NewConsumer(p.store, cfg, logger, p.observer)
	p.dispatcher = NewDispatcher(DispatcherDeps{
		Store:         p.store,
		Tasks:         p.tasks,
		Audience:      NewAudienceResolver(p.directory, logger),
		Notifications: p.notes,
		PushTokens:    p.tokens,
		Push:          p.push,
	}, cfg, logger, p.observer)
	p.dispatcher.SetClock(func() time.Time { return p.now })
	return p
}

func (p *pipeline) at(unix int64) {
	p.now = time.Unix(unix, 0)
}

// saveTask stores task as canonical state and emits the matching upsert.
func (p *pipeline) saveTask(task domain.Task) {
	p.tasks.Put(task)
	color := ""
	if task.Color != nil {
		color = *task.Color
	}
	p.producer.Emit(context.Background(), domain.ReminderEvent{
		Action:          domain.ReminderActionUpsert,
		TaskID:          task.ID,
		WorkspaceID:     task.WorkspaceID,
		Title:           task.Title,
		Color:           color,
		StartTime:       task.StartTime,
		ReminderMinutes: task.ReminderMinutes,
	})
}

func (p *pipeline) deleteTask(taskID, workspaceID int64) {
	p.tasks.mu.Lock()
	delete(p.tasks.tasks, taskID)
	p.tasks.mu.Unlock()
	p.producer.Emit(context.Background(), domain.ReminderEvent{
		Action:      domain.ReminderActionDelete,
		TaskID:      taskID,
		WorkspaceID: workspaceID,
	})
}

func (p *pipeline) trigger(t *testing.T, taskID int64) (int64, bool) {
	t.Helper()
	score, ok, err := p.store.JobTriggerAt(context.Background(), domain.JobKey(taskID))
	require.NoError(t, err)
	return score, ok
}

func (p *pipeline) job(t *testing.T, taskID int64) (*domain.ScheduledJob, bool) {
	t.Helper()
	payload, ok, err := p.store.LoadJob(context.Background(), domain.JobKey(taskID))
	require.NoError(t, err)
	if !ok {
		return nil, false
	}
	job, err := decodeJob(payload)
	require.NoError(t, err)
	return job, true
}

func scenarioTask(minutes *int) domain.Task {
	return domain.Task{
		ID:              42,
		WorkspaceID:     7,
		Title:           "Quarterly review",
		Status:          domain.TaskStatusTodo,
		StartTime:       scenarioStart,
		EndTime:         "2025-01-10 10:00:00",
		ReminderMinutes: minutes,
	}
}
