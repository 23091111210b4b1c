package reminder

import (
	"context"
	"time"
)

// LogEntry is one raw entry read back from the event log.
type LogEntry struct {
	Position int64
	Fields   map[string]string
}

// EventLog is an append-only, ordered record of reminder events.
type EventLog interface {
	// Append adds an entry and approximately trims the log to maxLen
	// entries. A non-positive maxLen disables trimming.
	Append(ctx context.Context, fields map[string]string, maxLen int) (int64, error)

	// ReadAfter returns up to count entries with a position strictly greater
	// than after, in log order.
	ReadAfter(ctx context.Context, after int64, count int) ([]LogEntry, error)
}

// CursorStore persists the position of the last applied log entry.
type CursorStore interface {
	// LoadCursor returns 0 when no cursor was ever saved.
	LoadCursor(ctx context.Context) (int64, error)

	// SaveCursor never moves the cursor backwards.
	SaveCursor(ctx context.Context, position int64) error
}

// ScheduleStore holds the schedule index (keys scored by trigger time) and
// the job payloads. Index entry and payload for a key are written and removed
// together, but callers must tolerate one existing without the other.
type ScheduleStore interface {
	PutJob(ctx context.Context, key string, triggerAt int64, payload []byte) error
	RemoveJob(ctx context.Context, key string) error
	RemoveIndexEntry(ctx context.Context, key string) error

	// DueJobs returns up to limit keys scored at or before now, earliest first.
	DueJobs(ctx context.Context, now int64, limit int) ([]string, error)

	LoadJob(ctx context.Context, key string) ([]byte, bool, error)
	JobTriggerAt(ctx context.Context, key string) (int64, bool, error)
}

// DedupeStore provides short-lived claim flags.
type DedupeStore interface {
	// Claim atomically sets key with the given ttl if it is not already set.
	// It reports whether the caller won the claim.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// PurgeExpired drops markers whose ttl has elapsed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// RunRecorder keeps the report of the most recent pipeline run.
type RunRecorder interface {
	RecordRun(ctx context.Context, report RunReport, ttl time.Duration) error

	// LastRun returns nil when no unexpired report exists.
	LastRun(ctx context.Context) (*RunReport, error)
}

// CoordinationStore is the shared keyed store behind the whole pipeline.
type CoordinationStore interface {
	EventLog
	CursorStore
	ScheduleStore
	DedupeStore
	RunRecorder
}
