package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pecal/pecal-reminders/internal/platform/logger"
	"github.com/pecal/pecal-reminders/internal/reminder"
	"github.com/pecal/pecal-reminders/internal/store"
)

const (
	// appendLockKey serializes event appends so that positions become
	// visible to readers in order.
	appendLockKey int64 = 0x5045_4341_4c52_4d31

	// trimEvery is how many appends pass between two trims of the event log.
	trimEvery = 100

	consumerCursorName = "task_reminders"
	lastRunName        = "task_reminders"
)

// Database is what the coordination store needs from a connection pool.
type Database interface {
	store.DBTX
	store.TxBeginner
}

// PostgresCoordinationStore implements reminder.CoordinationStore on
// PostgreSQL tables created by the embedded migrations.
type PostgresCoordinationStore struct {
	db     Database
	logger *slog.Logger
}

// NewPostgresCoordinationStore creates a PostgresCoordinationStore.
func NewPostgresCoordinationStore(db Database, logger *slog.Logger) *PostgresCoordinationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCoordinationStore{
		db:     db,
		logger: logger.With(slog.String("component", "coordination_store")),
	}
}

var _ reminder.CoordinationStore = (*PostgresCoordinationStore)(nil)

// Append implements reminder.EventLog.
func (s *PostgresCoordinationStore) Append(ctx context.Context, fields map[string]string, maxLen int) (int64, error) {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("failed to encode event fields: %w", err)
	}

	var position int64
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return MapError(err)
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO reminder_events (fields) VALUES ($1) RETURNING position`,
			encoded,
		).Scan(&position)
		if err != nil {
			return MapError(err)
		}

		if maxLen > 0 && position%trimEvery == 0 && position > int64(maxLen) {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM reminder_events WHERE position <= $1`,
				position-int64(maxLen),
			); err != nil {
				return MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append reminder event: %w", err)
	}
	return position, nil
}

// ReadAfter implements reminder.EventLog.
func (s *PostgresCoordinationStore) ReadAfter(ctx context.Context, after int64, count int) ([]reminder.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, fields
		FROM reminder_events
		WHERE position > $1
		ORDER BY position
		LIMIT $2
	`, after, count)
	if err != nil {
		return nil, fmt.Errorf("failed to read reminder events: %w", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var entries []reminder.LogEntry
	for rows.Next() {
		var (
			entry reminder.LogEntry
			raw   []byte
		)
		if err := rows.Scan(&entry.Position, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan reminder event: %w", err)
		}
		if err := json.Unmarshal(raw, &entry.Fields); err != nil {
			// undecodable rows are handed on empty so the consumer skips them
			entry.Fields = map[string]string{}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder events: %w", err)
	}
	return entries, nil
}

// LoadCursor implements reminder.CursorStore.
func (s *PostgresCoordinationStore) LoadCursor(ctx context.Context) (int64, error) {
	var position int64
	err := s.db.QueryRowContext(ctx,
		`SELECT position FROM reminder_cursors WHERE name = $1`,
		consumerCursorName,
	).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load reminder cursor: %w", MapError(err))
	}
	return position, nil
}

// SaveCursor implements reminder.CursorStore.
func (s *PostgresCoordinationStore) SaveCursor(ctx context.Context, position int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminder_cursors (name, position, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET position = GREATEST(reminder_cursors.position, EXCLUDED.position),
		    updated_at = NOW()
	`, consumerCursorName, position)
	if err != nil {
		return fmt.Errorf("failed to save reminder cursor: %w", MapError(err))
	}
	return nil
}

// PutJob implements reminder.ScheduleStore.
func (s *PostgresCoordinationStore) PutJob(ctx context.Context, key string, triggerAt int64, payload []byte) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reminder_schedule (job_key, trigger_at)
			VALUES ($1, $2)
			ON CONFLICT (job_key) DO UPDATE SET trigger_at = EXCLUDED.trigger_at
		`, key, triggerAt); err != nil {
			return MapError(err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reminder_jobs (job_key, payload, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (job_key) DO UPDATE
			SET payload = EXCLUDED.payload, updated_at = NOW()
		`, key, payload); err != nil {
			return MapError(err)
		}
		return nil
	})
	if err != nil {
		return store.NewStoreError("reminder_job", "put", key, err)
	}
	return nil
}

// RemoveJob implements reminder.ScheduleStore.
func (s *PostgresCoordinationStore) RemoveJob(ctx context.Context, key string) error {
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reminder_schedule WHERE job_key = $1`, key); err != nil {
			return MapError(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM reminder_jobs WHERE job_key = $1`, key); err != nil {
			return MapError(err)
		}
		return nil
	})
	if err != nil {
		return store.NewStoreError("reminder_job", "remove", key, err)
	}
	return nil
}

// RemoveIndexEntry implements reminder.ScheduleStore.
func (s *PostgresCoordinationStore) RemoveIndexEntry(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reminder_schedule WHERE job_key = $1`, key); err != nil {
		return fmt.Errorf("failed to remove schedule entry %s: %w", key, MapError(err))
	}
	return nil
}

// DueJobs implements reminder.ScheduleStore.
func (s *PostgresCoordinationStore) DueJobs(ctx context.Context, now int64, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_key
		FROM reminder_schedule
		WHERE trigger_at <= $1
		ORDER BY trigger_at, job_key
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminder jobs: %w", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan due reminder job: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due reminder jobs: %w", err)
	}
	return keys, nil
}

// LoadJob implements reminder.ScheduleStore.
func (s *PostgresCoordinationStore) LoadJob(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM reminder_jobs WHERE job_key = $1`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load reminder job %s: %w", key, MapError(err))
	}
	return payload, true, nil
}

// JobTriggerAt implements reminder.ScheduleStore.
func (s *PostgresCoordinationStore) JobTriggerAt(ctx context.Context, key string) (int64, bool, error) {
	var triggerAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT trigger_at FROM reminder_schedule WHERE job_key = $1`, key,
	).Scan(&triggerAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schedule entry %s: %w", key, MapError(err))
	}
	return triggerAt, true, nil
}

// Claim implements reminder.DedupeStore. An expired marker is taken over in
// the same statement, so exactly one concurrent caller wins.
func (s *PostgresCoordinationStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var claimed string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reminder_dedupe (dedupe_key, expires_at)
		VALUES ($1, NOW() + make_interval(secs => $2))
		ON CONFLICT (dedupe_key) DO UPDATE
		SET expires_at = EXCLUDED.expires_at
		WHERE reminder_dedupe.expires_at <= NOW()
		RETURNING dedupe_key
	`, key, ttl.Seconds()).Scan(&claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim dedupe marker: %w", MapError(err))
	}
	return true, nil
}

// PurgeExpired implements reminder.DedupeStore.
func (s *PostgresCoordinationStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminder_dedupe WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge dedupe markers: %w", MapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// RecordRun implements reminder.RunRecorder.
func (s *PostgresCoordinationStore) RecordRun(ctx context.Context, report reminder.RunReport, ttl time.Duration) error {
	encoded, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reminder_runs (name, report, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3))
		ON CONFLICT (name) DO UPDATE
		SET report = EXCLUDED.report, expires_at = EXCLUDED.expires_at
	`, lastRunName, encoded, ttl.Seconds())
	if err != nil {
		return fmt.Errorf("failed to record reminder run: %w", MapError(err))
	}
	return nil
}

// LastRun implements reminder.RunRecorder.
func (s *PostgresCoordinationStore) LastRun(ctx context.Context) (*reminder.RunReport, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM reminder_runs WHERE name = $1 AND expires_at > NOW()`,
		lastRunName,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last reminder run: %w", MapError(err))
	}

	var report reminder.RunReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &report, nil
}
