package domain

// TaskStatus represents the workflow state of a calendar task
type TaskStatus string

// Possible task status values
const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// IsTerminal reports whether no further reminders should fire for the status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone
}

// Task is the canonical state of a calendar task as held by the relational
// task store. The reminder pipeline only reads it.
type Task struct {
	ID          int64      `json:"id"`
	WorkspaceID int64      `json:"workspace_id"`
	Title       string     `json:"title"`
	Color       *string    `json:"color"`
	Status      TaskStatus `json:"status"`
	// StartTime and EndTime are naive local timestamps
	// (NaiveTimestampLayout).
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	ReminderMinutes *int   `json:"reminder_minutes"`
}

// ReminderOccurrence returns the start time (unix seconds) and reminder
// offset the task currently asks for. ok is false when reminders are disabled
// or the start time cannot be parsed.
func (t *Task) ReminderOccurrence(offsetMinutes int) (startAt int64, minutes int, ok bool) {
	m := SanitizeReminderMinutes(t.ReminderMinutes)
	if m == nil {
		return 0, 0, false
	}
	startAt, ok = ParseNaiveTimestamp(t.StartTime, offsetMinutes)
	if !ok {
		return 0, 0, false
	}
	return startAt, *m, true
}

// Matches reports whether job still describes the task's current reminder
// occurrence.
func (t *Task) Matches(job *ScheduledJob, offsetMinutes int) bool {
	startAt, minutes, ok := t.ReminderOccurrence(offsetMinutes)
	return ok && startAt == job.StartAt && minutes == job.ReminderMinutes
}
