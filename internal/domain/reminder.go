package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxReminderMinutes is the largest reminder offset accepted (seven days).
const MaxReminderMinutes = 7 * 24 * 60

// ReminderAction identifies what a reminder event asks the schedule to do.
type ReminderAction string

// Possible reminder actions
const (
	ReminderActionUpsert ReminderAction = "upsert"
	ReminderActionDelete ReminderAction = "delete"
)

// Field names of a reminder event as stored on the event log.
const (
	FieldAction          = "action"
	FieldTaskID          = "task_id"
	FieldWorkspaceID     = "workspace_id"
	FieldReminderMinutes = "reminder_minutes"
	FieldTitle           = "title"
	FieldColor           = "color"
	FieldStartTime       = "start_time"
)

// Reminder event validation errors
var (
	ErrInvalidReminderAction = errors.New("invalid reminder action")
	ErrInvalidTaskID         = fmt.Errorf("%w: task", ErrInvalidID)
	ErrInvalidWorkspaceID    = fmt.Errorf("%w: workspace", ErrInvalidID)
)

// IsValid reports whether a is a known action.
func (a ReminderAction) IsValid() bool {
	return a == ReminderActionUpsert || a == ReminderActionDelete
}

// ReminderEvent is one immutable entry of the reminder event log. It records
// a reminder-relevant task mutation.
type ReminderEvent struct {
	// Position is the log position assigned on append; zero before that.
	Position        int64          `json:"position,omitempty"`
	Action          ReminderAction `json:"action" validate:"required,oneof=upsert delete"`
	TaskID          int64          `json:"task_id" validate:"required,gt=0"`
	WorkspaceID     int64          `json:"workspace_id" validate:"required,gt=0"`
	Title           string         `json:"title,omitempty"`
	Color           string         `json:"color,omitempty"`
	StartTime       string         `json:"start_time,omitempty"`
	ReminderMinutes *int           `json:"reminder_minutes,omitempty"`
}

// Validate checks the identifying fields of the event.
func (e *ReminderEvent) Validate() error {
	if !e.Action.IsValid() {
		return ErrInvalidReminderAction
	}
	if e.TaskID <= 0 {
		return ErrInvalidTaskID
	}
	if e.WorkspaceID <= 0 {
		return ErrInvalidWorkspaceID
	}
	return nil
}

// Fields encodes the event as the flat field set stored on the log. Absent
// optional values are encoded as empty strings, and out-of-range reminder
// minutes are dropped.
func (e *ReminderEvent) Fields() map[string]string {
	minutes := ""
	if m := SanitizeReminderMinutes(e.ReminderMinutes); m != nil {
		minutes = strconv.Itoa(*m)
	}
	return map[string]string{
		FieldAction:          string(e.Action),
		FieldTaskID:          strconv.FormatInt(e.TaskID, 10),
		FieldWorkspaceID:     strconv.FormatInt(e.WorkspaceID, 10),
		FieldReminderMinutes: minutes,
		FieldTitle:           e.Title,
		FieldColor:           e.Color,
		FieldStartTime:       e.StartTime,
	}
}

// ParseReminderEvent decodes a flat field set read back from the log. It
// fails when either id is not a positive integer or the action is unknown.
// Invalid reminder minutes are not an error; they decode as nil (disabled).
func ParseReminderEvent(position int64, fields map[string]string) (*ReminderEvent, error) {
	taskID, err := strconv.ParseInt(strings.TrimSpace(fields[FieldTaskID]), 10, 64)
	if err != nil || taskID <= 0 {
		return nil, ErrInvalidTaskID
	}
	workspaceID, err := strconv.ParseInt(strings.TrimSpace(fields[FieldWorkspaceID]), 10, 64)
	if err != nil || workspaceID <= 0 {
		return nil, ErrInvalidWorkspaceID
	}
	action := ReminderAction(fields[FieldAction])
	if !action.IsValid() {
		return nil, ErrInvalidReminderAction
	}

	event := &ReminderEvent{
		Position:    position,
		Action:      action,
		TaskID:      taskID,
		WorkspaceID: workspaceID,
		Title:       fields[FieldTitle],
		Color:       fields[FieldColor],
		StartTime:   fields[FieldStartTime],
	}
	if m, ok := ParseReminderMinutes(fields[FieldReminderMinutes]); ok {
		event.ReminderMinutes = &m
	}
	return event, nil
}

// ParseReminderMinutes parses s as an integer in [0, MaxReminderMinutes].
// Anything else, including the empty string, reports false.
func ParseReminderMinutes(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	m, err := strconv.Atoi(s)
	if err != nil || m < 0 || m > MaxReminderMinutes {
		return 0, false
	}
	return m, true
}

// SanitizeReminderMinutes returns m when it is within range, nil otherwise.
func SanitizeReminderMinutes(m *int) *int {
	if m == nil || *m < 0 || *m > MaxReminderMinutes {
		return nil
	}
	v := *m
	return &v
}

// ScheduledJob is the compiled, dispatch-ready unit of work for one task.
type ScheduledJob struct {
	TaskID          int64  `json:"taskId"`
	WorkspaceID     int64  `json:"workspaceId"`
	Title           string `json:"title"`
	Color           string `json:"color,omitempty"`
	StartAt         int64  `json:"startAtUnix"`
	ReminderMinutes int    `json:"reminderMinutes"`
}

// TriggerAt is the unix time at which the job becomes due.
func (j *ScheduledJob) TriggerAt() int64 {
	return j.StartAt - int64(j.ReminderMinutes)*60
}

// Key is the schedule and job store key of the job.
func (j *ScheduledJob) Key() string {
	return JobKey(j.TaskID)
}

// JobKey returns the schedule key of the job for taskID.
func JobKey(taskID int64) string {
	return "task:" + strconv.FormatInt(taskID, 10)
}

// DedupeKey identifies one delivery of one reminder occurrence to one member.
func DedupeKey(memberID, taskID, startAt int64, reminderMinutes int) string {
	return fmt.Sprintf("task:reminders:sent:%d:%d:%d:%d", memberID, taskID, startAt, reminderMinutes)
}
