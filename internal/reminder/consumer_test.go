package reminder

import (
	"context"
	"errors"
	"testing"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerCompilesScenarioJob(t *testing.T) {
	p := newPipeline(t)
	p.saveTask(scenarioTask(intPtr(10)))

	processed := p.consumer.ProcessStream(context.Background())
	assert.Equal(t, 1, processed)

	trigger, ok := p.trigger(t, 42)
	require.True(t, ok)
	assert.Equal(t, scenarioStartUnix-600, trigger)

	job, ok := p.job(t, 42)
	require.True(t, ok)
	assert.Equal(t, &domain.ScheduledJob{
		TaskID:          42,
		WorkspaceID:     7,
		Title:           "Quarterly review",
		StartAt:         scenarioStartUnix,
		ReminderMinutes: 10,
	}, job)
}

func TestConsumerLastWriteWins(t *testing.T) {
	tests := []struct {
		name        string
		apply       func(p *pipeline)
		wantTrigger int64
		wantJob     bool
	}{
		{
			name: "later upsert replaces earlier one",
			apply: func(p *pipeline) {
				p.saveTask(scenarioTask(intPtr(10)))
				p.saveTask(scenarioTask(intPtr(30)))
			},
			wantTrigger: scenarioStartUnix - 1800,
			wantJob:     true,
		},
		{
			name: "delete after upsert leaves nothing",
			apply: func(p *pipeline) {
				p.saveTask(scenarioTask(intPtr(10)))
				p.deleteTask(42, 7)
			},
		},
		{
			name: "upsert after delete schedules again",
			apply: func(p *pipeline) {
				p.saveTask(scenarioTask(intPtr(10)))
				p.deleteTask(42, 7)
				p.saveTask(scenarioTask(intPtr(5)))
			},
			wantTrigger: scenarioStartUnix - 300,
			wantJob:     true,
		},
		{
			name: "null minutes disables",
			apply: func(p *pipeline) {
				p.saveTask(scenarioTask(intPtr(10)))
				p.saveTask(scenarioTask(nil))
			},
		},
		{
			name: "out of range minutes disables",
			apply: func(p *pipeline) {
				p.saveTask(scenarioTask(intPtr(10)))
				p.saveTask(scenarioTask(intPtr(domain.MaxReminderMinutes + 1)))
			},
		},
		{
			name: "negative minutes disables",
			apply: func(p *pipeline) {
				p.saveTask(scenarioTask(intPtr(10)))
				p.saveTask(scenarioTask(intPtr(-1)))
			},
		},
		{
			name: "unparseable start time disables",
			apply: func(p *pipeline) {
				p.saveTask(scenarioTask(intPtr(10)))
				task := scenarioTask(intPtr(10))
				task.StartTime = "tomorrow morning"
				p.saveTask(task)
			},
		},
		{
			name: "zero minutes fires at start",
			apply: func(p *pipeline) {
				p.saveTask(scenarioTask(intPtr(0)))
			},
			wantTrigger: scenarioStartUnix,
			wantJob:     true,
		},
		{
			name: "maximum minutes accepted",
			apply: func(p *pipeline) {
				p.saveTask(scenarioTask(intPtr(domain.MaxReminderMinutes)))
			},
			wantTrigger: scenarioStartUnix - int64(domain.MaxReminderMinutes)*60,
			wantJob:     true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newPipeline(t)
			tc.apply(p)

			p.consumer.ProcessStream(context.Background())

			trigger, ok := p.trigger(t, 42)
			assert.Equal(t, tc.wantJob, ok)
			_, hasPayload := p.job(t, 42)
			assert.Equal(t, tc.wantJob, hasPayload)
			if tc.wantJob {
				assert.Equal(t, tc.wantTrigger, trigger)
			}
			assert.LessOrEqual(t, len(p.store.ScheduledKeys()), 1)
		})
	}
}

func TestConsumerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)
	p.saveTask(scenarioTask(intPtr(10)))
	p.saveTask(domain.Task{ID: 43, WorkspaceID: 7, StartTime: scenarioStart, ReminderMinutes: intPtr(0)})

	assert.Equal(t, 2, p.consumer.ProcessStream(ctx))
	keys := p.store.ScheduledKeys()
	job42, _ := p.job(t, 42)
	cursor, err := p.store.LoadCursor(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, p.consumer.ProcessStream(ctx))
	assert.Equal(t, keys, p.store.ScheduledKeys())
	again42, _ := p.job(t, 42)
	assert.Equal(t, job42, again42)
	again, err := p.store.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, cursor, again)
}

func TestConsumerSkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	_, err := p.store.Append(ctx, map[string]string{"action": "upsert", "task_id": "abc", "workspace_id": "7"}, 0)
	require.NoError(t, err)
	_, err = p.store.Append(ctx, map[string]string{"action": "rename", "task_id": "1", "workspace_id": "7"}, 0)
	require.NoError(t, err)
	_, err = p.store.Append(ctx, map[string]string{"action": "upsert", "task_id": "5", "workspace_id": "-2"}, 0)
	require.NoError(t, err)
	p.saveTask(scenarioTask(intPtr(10)))

	processed := p.consumer.ProcessStream(ctx)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 3, p.observer.skipped)

	cursor, err := p.store.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cursor)
	_, ok := p.trigger(t, 42)
	assert.True(t, ok)
}

func TestConsumerStopsAtFailedEntry(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	flaky := &flakyStore{MemoryStore: mem}
	consumer := NewConsumer(flaky, DefaultConfig(), testLogger(), nil)
	producer := NewProducer(mem, DefaultConfig(), testLogger(), nil)

	for id := int64(1); id <= 3; id++ {
		producer.Emit(ctx, domain.ReminderEvent{
			Action:          domain.ReminderActionUpsert,
			TaskID:          id,
			WorkspaceID:     1,
			StartTime:       scenarioStart,
			ReminderMinutes: intPtr(5),
		})
	}

	flaky.PutJobFn = func(ctx context.Context, key string, triggerAt int64, payload []byte) error {
		if key == domain.JobKey(2) {
			return errors.New("store unavailable")
		}
		return mem.PutJob(ctx, key, triggerAt, payload)
	}

	assert.Equal(t, 1, consumer.ProcessStream(ctx))
	cursor, err := mem.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cursor, "cursor stays at the last applied entry")
	assert.Equal(t, []string{"task:1"}, mem.ScheduledKeys())

	flaky.PutJobFn = nil
	assert.Equal(t, 2, consumer.ProcessStream(ctx))
	assert.Equal(t, []string{"task:1", "task:2", "task:3"}, mem.ScheduledKeys())
}

func TestConsumerStoreUnavailable(t *testing.T) {
	mem := NewMemoryStore()
	flaky := &flakyStore{
		MemoryStore: mem,
		LoadCurFn: func(ctx context.Context) (int64, error) {
			return 0, errors.New("connection refused")
		},
	}
	consumer := NewConsumer(flaky, DefaultConfig(), testLogger(), nil)

	assert.Equal(t, 0, consumer.ProcessStream(context.Background()))
	assert.Zero(t, flaky.saveCalled)
}

func TestConsumerBatchLimits(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	flaky := &flakyStore{MemoryStore: mem}
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.MaxBatchLoops = 2
	consumer := NewConsumer(flaky, cfg, testLogger(), nil)
	producer := NewProducer(mem, cfg, testLogger(), nil)

	for id := int64(1); id <= 7; id++ {
		producer.Emit(ctx, domain.ReminderEvent{Action: domain.ReminderActionDelete, TaskID: id, WorkspaceID: 1})
	}

	assert.Equal(t, 4, consumer.ProcessStream(ctx))
	assert.Equal(t, 3, consumer.ProcessStream(ctx))
	assert.Equal(t, 0, consumer.ProcessStream(ctx))
	assert.Equal(t, 2, flaky.saveCalled, "cursor is saved only when it moved")
}
