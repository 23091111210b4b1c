package domain

import "fmt"

// Notification type and source constants used by task reminders
const (
	NotificationTypeTaskReminder = "TASK_REMINDER"
	NotificationSourceTask       = "TASK"
	TaskReminderTitle            = "Task reminder"
)

// Notification is one persisted in-app notification for a member.
type Notification struct {
	MemberID   int64          `json:"member_id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Payload    map[string]any `json:"payload,omitempty"`
	SourceType string         `json:"source_type"`
	SourceID   int64          `json:"source_id"`
}

// FormatReminderMessage renders the body of a task reminder.
func FormatReminderMessage(title string, minutes int) string {
	if minutes <= 0 {
		return fmt.Sprintf("'%s' starts now.", title)
	}
	return fmt.Sprintf("'%s' starts in %d minutes.", title, minutes)
}

// NewTaskReminderNotification builds the reminder notification for one
// member from the canonical task and the job being dispatched.
func NewTaskReminderNotification(memberID int64, task *Task, job *ScheduledJob) Notification {
	var color any
	if task.Color != nil {
		color = *task.Color
	}
	return Notification{
		MemberID: memberID,
		Type:     NotificationTypeTaskReminder,
		Title:    TaskReminderTitle,
		Message:  FormatReminderMessage(task.Title, job.ReminderMinutes),
		Payload: map[string]any{
			"task_id":          task.ID,
			"workspace_id":     task.WorkspaceID,
			"start_time":       task.StartTime,
			"end_time":         task.EndTime,
			"reminder_minutes": job.ReminderMinutes,
			"color":            color,
		},
		SourceType: NotificationSourceTask,
		SourceID:   task.ID,
	}
}
