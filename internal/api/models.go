package api

import (
	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/reminder"
)

// EmitReminderEventRequest is the payload of POST /api/reminders/events. It
// carries the task fields the reminder pipeline reads. Out-of-range reminder
// minutes are accepted and treated as "no reminder".
type EmitReminderEventRequest struct {
	Action          domain.ReminderAction `json:"action"           validate:"required,oneof=upsert delete"`
	TaskID          int64                 `json:"task_id"          validate:"required,gt=0"`
	WorkspaceID     int64                 `json:"workspace_id"     validate:"required,gt=0"`
	Title           string                `json:"title"`
	Color           *string               `json:"color"`
	StartTime       string                `json:"start_time"`
	ReminderMinutes *int                  `json:"reminder_minutes"`
}

// EmitReminderEventResponse acknowledges an accepted event.
type EmitReminderEventResponse struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// CronRunResponse is returned by POST /api/cron/task-reminders.
type CronRunResponse struct {
	Success               bool   `json:"success"`
	RunID                 string `json:"runId"`
	ProcessedStreamEvents int    `json:"processedStreamEvents"`
	SentNotifications     int    `json:"sentNotifications"`
}

// LastRunResponse is returned by GET /api/cron/task-reminders. LastRun is
// null when no run was recorded in the last 24 hours.
type LastRunResponse struct {
	Success bool                `json:"success"`
	LastRun *reminder.RunReport `json:"lastRun"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
