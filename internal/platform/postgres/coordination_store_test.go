package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pecal/pecal-reminders/internal/reminder"
	"github.com/pecal/pecal-reminders/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinationStoreAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts under the append lock", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresCoordinationStore(db, discardLogger())

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
			WithArgs(appendLockKey).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO reminder_events (fields) VALUES ($1) RETURNING position")).
			WithArgs([]byte(`{"action":"delete"}`)).
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(int64(7)))
		mock.ExpectCommit()

		pos, err := s.Append(ctx, map[string]string{"action": "delete"}, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(7), pos)
	})

	t.Run("trims periodically", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresCoordinationStore(db, discardLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("INSERT INTO reminder_events").
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(int64(2000)))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reminder_events WHERE position <= $1")).
			WithArgs(int64(1000)).
			WillReturnResult(sqlmock.NewResult(0, 1000))
		mock.ExpectCommit()

		pos, err := s.Append(ctx, map[string]string{}, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(2000), pos)
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewPostgresCoordinationStore(db, discardLogger())

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("INSERT INTO reminder_events").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := s.Append(ctx, map[string]string{}, 1000)
		assert.ErrorContains(t, err, "disk full")
	})
}

func TestCoordinationStoreReadAfter(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresCoordinationStore(db, discardLogger())

	mock.ExpectQuery("SELECT position, fields\\s+FROM reminder_events").
		WithArgs(int64(3), 2).
		WillReturnRows(sqlmock.NewRows([]string{"position", "fields"}).
			AddRow(int64(4), []byte(`{"action":"upsert","task_id":"42"}`)).
			AddRow(int64(5), []byte(`not json`)))

	entries, err := s.ReadAfter(context.Background(), 3, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, reminder.LogEntry{Position: 4, Fields: map[string]string{"action": "upsert", "task_id": "42"}}, entries[0])
	assert.Empty(t, entries[1].Fields)
}

func TestCoordinationStoreCursor(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	s := NewPostgresCoordinationStore(db, discardLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT position FROM reminder_cursors WHERE name = $1")).
		WithArgs(consumerCursorName).
		WillReturnRows(sqlmock.NewRows([]string{"position"}))
	pos, err := s.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Zero(t, pos)

	mock.ExpectExec("GREATEST\\(reminder_cursors.position, EXCLUDED.position\\)").
		WithArgs(consumerCursorName, int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SaveCursor(ctx, 12))

	mock.ExpectQuery("SELECT position FROM reminder_cursors").
		WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(int64(12)))
	pos, err = s.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), pos)
}

func TestCoordinationStoreSchedule(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	s := NewPostgresCoordinationStore(db, discardLogger())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reminder_schedule").
		WithArgs("task:42", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reminder_jobs").
		WithArgs("task:42", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, s.PutJob(ctx, "task:42", 100, []byte(`{}`)))

	mock.ExpectQuery("SELECT job_key\\s+FROM reminder_schedule\\s+WHERE trigger_at <= \\$1").
		WithArgs(int64(150), 10).
		WillReturnRows(sqlmock.NewRows([]string{"job_key"}).AddRow("task:42").AddRow("task:7"))
	keys, err := s.DueJobs(ctx, 150, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"task:42", "task:7"}, keys)

	mock.ExpectQuery("SELECT payload FROM reminder_jobs").
		WithArgs("task:9").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))
	_, found, err := s.LoadJob(ctx, "task:9")
	require.NoError(t, err)
	assert.False(t, found)

	mock.ExpectQuery("SELECT trigger_at FROM reminder_schedule").
		WithArgs("task:42").
		WillReturnRows(sqlmock.NewRows([]string{"trigger_at"}).AddRow(int64(100)))
	score, ok, err := s.JobTriggerAt(ctx, "task:42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(100), score)

	mock.ExpectExec("DELETE FROM reminder_schedule").
		WithArgs("task:7").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.RemoveIndexEntry(ctx, "task:7"))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reminder_schedule").WithArgs("task:42").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM reminder_jobs").WithArgs("task:42").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, s.RemoveJob(ctx, "task:42"))
}

func TestCoordinationStorePutJobFailure(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresCoordinationStore(db, discardLogger())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reminder_schedule").
		WithArgs("task:42", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reminder_jobs").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.PutJob(context.Background(), "task:42", 100, []byte(`{}`))
	require.Error(t, err)

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "reminder_job", storeErr.Entity)
	assert.Equal(t, "put", storeErr.Operation)
	assert.Equal(t, "task:42", storeErr.Message)
	assert.ErrorContains(t, err, "disk full")
}

func TestCoordinationStoreClaim(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	s := NewPostgresCoordinationStore(db, discardLogger())

	mock.ExpectQuery("INSERT INTO reminder_dedupe").
		WithArgs("task:reminders:sent:1:42:100:10", float64(60)).
		WillReturnRows(sqlmock.NewRows([]string{"dedupe_key"}).AddRow("task:reminders:sent:1:42:100:10"))
	won, err := s.Claim(ctx, "task:reminders:sent:1:42:100:10", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	mock.ExpectQuery("INSERT INTO reminder_dedupe").
		WillReturnRows(sqlmock.NewRows([]string{"dedupe_key"}))
	won, err = s.Claim(ctx, "task:reminders:sent:1:42:100:10", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	mock.ExpectQuery("INSERT INTO reminder_dedupe").WillReturnError(errors.New("connection reset"))
	_, err = s.Claim(ctx, "k", time.Minute)
	assert.Error(t, err)

	mock.ExpectExec("DELETE FROM reminder_dedupe WHERE expires_at <= NOW\\(\\)").
		WillReturnResult(sqlmock.NewResult(0, 3))
	purged, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
}

func TestCoordinationStoreRuns(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	s := NewPostgresCoordinationStore(db, discardLogger())

	mock.ExpectQuery("SELECT report FROM reminder_runs").
		WithArgs(lastRunName).
		WillReturnRows(sqlmock.NewRows([]string{"report"}))
	last, err := s.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	mock.ExpectExec("INSERT INTO reminder_runs").
		WithArgs(lastRunName, sqlmock.AnyArg(), float64(86400)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.RecordRun(ctx, reminder.RunReport{RunID: "r1"}, 24*time.Hour))

	mock.ExpectQuery("SELECT report FROM reminder_runs").
		WillReturnRows(sqlmock.NewRows([]string{"report"}).
			AddRow([]byte(`{"runId":"r1","ranAt":"2025-01-10T00:00:00Z","processedStreamEvents":3,"sentNotifications":2}`)))
	last, err = s.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "r1", last.RunID)
	assert.Equal(t, 3, last.ProcessedStreamEvents)
	assert.Equal(t, 2, last.SentNotifications)
}
