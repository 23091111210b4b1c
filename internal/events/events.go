package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pecal/pecal-reminders/internal/domain"
)

// TaskChangeType names the kind of task mutation an event reports.
type TaskChangeType string

// Task change types
const (
	TaskUpserted TaskChangeType = "task.upserted"
	TaskDeleted  TaskChangeType = "task.deleted"
)

// TaskChangeEvent reports a reminder-relevant task mutation. Task write paths
// emit it after their primary write; the reminder pipeline handles it without
// any dependency in the other direction.
type TaskChangeEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates what happened to the task
	Type TaskChangeType `json:"type"`

	// Reminder is the reminder event the change translates to
	Reminder domain.ReminderEvent `json:"reminder"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewUpsertEvent builds the change event for a created or updated task. A
// task without reminder minutes still produces an event: it clears any
// scheduled reminder.
func NewUpsertEvent(task *domain.Task) *TaskChangeEvent {
	color := ""
	if task.Color != nil {
		color = *task.Color
	}
	return &TaskChangeEvent{
		ID:   uuid.New(),
		Type: TaskUpserted,
		Reminder: domain.ReminderEvent{
			Action:          domain.ReminderActionUpsert,
			TaskID:          task.ID,
			WorkspaceID:     task.WorkspaceID,
			Title:           task.Title,
			Color:           color,
			StartTime:       task.StartTime,
			ReminderMinutes: domain.SanitizeReminderMinutes(task.ReminderMinutes),
		},
		CreatedAt: time.Now(),
	}
}

// NewDeleteEvent builds the change event for a deleted task.
func NewDeleteEvent(taskID, workspaceID int64) *TaskChangeEvent {
	return &TaskChangeEvent{
		ID:   uuid.New(),
		Type: TaskDeleted,
		Reminder: domain.ReminderEvent{
			Action:      domain.ReminderActionDelete,
			TaskID:      taskID,
			WorkspaceID: workspaceID,
		},
		CreatedAt: time.Now(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskChangeEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// Task write paths depend on it instead of on the reminder pipeline.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskChangeEvent) error
}
