package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/platform/logger"
	"github.com/pecal/pecal-reminders/internal/store"
)

// PostgresTaskStore reads canonical task rows.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// GetTaskByID implements store.TaskStore. Timestamps are rendered as naive
// local strings exactly as stored.
func (s *PostgresTaskStore) GetTaskByID(ctx context.Context, id int64) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		task    domain.Task
		color   sql.NullString
		status  string
		minutes sql.NullInt32
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, title, color, status,
		       to_char(start_time, 'YYYY-MM-DD HH24:MI:SS'),
		       to_char(end_time, 'YYYY-MM-DD HH24:MI:SS'),
		       reminder_minutes
		FROM tasks
		WHERE id = $1
	`, id).Scan(
		&task.ID,
		&task.WorkspaceID,
		&task.Title,
		&color,
		&status,
		&task.StartTime,
		&task.EndTime,
		&minutes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", id))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task", slog.Int64("task_id", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get task %d: %w", id, MapError(err))
	}

	task.Status = domain.TaskStatus(status)
	if color.Valid {
		task.Color = &color.String
	}
	if minutes.Valid {
		m := int(minutes.Int32)
		task.ReminderMinutes = &m
	}
	return &task, nil
}
