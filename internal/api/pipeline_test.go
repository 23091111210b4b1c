package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/events"
	"github.com/pecal/pecal-reminders/internal/reminder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRouter_EventToSchedule drives an event through the intake endpoint and
// the cron trigger against the in-memory coordination store.
func TestRouter_EventToSchedule(t *testing.T) {
	log := testLogger()
	cfg := reminder.DefaultConfig()
	store := reminder.NewMemoryStore()

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(reminder.NewProducer(store, cfg, log, nil))

	service := reminder.NewService(
		reminder.NewConsumer(store, cfg, log, nil),
		reminder.NewDispatcher(reminder.DispatcherDeps{Store: store}, cfg, log, nil),
		store,
		log,
	)
	router := newTestRouter(service, emitter)

	w := doRequest(t, router, http.MethodPost, "/api/reminders/events", map[string]any{
		"action": "upsert", "task_id": 42, "workspace_id": 7, "title": "Launch",
		"start_time": "2099-01-01 09:00:00", "reminder_minutes": 10,
	}, true)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, store.Len())

	w = doRequest(t, router, http.MethodPost, "/api/cron/task-reminders", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var run CronRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, 1, run.ProcessedStreamEvents)
	assert.Zero(t, run.SentNotifications)

	w = doRequest(t, router, http.MethodGet, "/api/reminders/jobs/42", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var view reminder.JobView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, domain.JobKey(42), view.Key)
	assert.True(t, view.Indexed)
	require.NotNil(t, view.Job)
	assert.Equal(t, 10, view.Job.ReminderMinutes)

	w = doRequest(t, router, http.MethodGet, "/api/cron/task-reminders", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var last LastRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &last))
	require.NotNil(t, last.LastRun)
	assert.Equal(t, run.RunID, last.LastRun.RunID)
}
