package reminder

import "time"

// Job drop reasons reported to the Observer.
const (
	DropMissingPayload = "missing_payload"
	DropBadPayload     = "bad_payload"
	DropTaskMissing    = "task_missing"
	DropTaskDone       = "task_done"
	DropStale          = "stale"
	DropNoAudience     = "no_audience"
	DropChanged        = "changed_after_claim"
	DropDispatched     = "dispatched"
)

// Pipeline stages reported to the Observer.
const (
	StageStream   = "stream"
	StageDispatch = "dispatch"
)

// Observer receives pipeline measurements.
type Observer interface {
	EventsApplied(n int)
	EventSkipped()
	EmitFailed()
	JobRetired(reason string)
	NotificationsSent(n int)
	PushDelivered(sent, invalid int, err error)
	StageCompleted(stage string, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) EventsApplied(int)                    {}
func (nopObserver) EventSkipped()                        {}
func (nopObserver) EmitFailed()                          {}
func (nopObserver) JobRetired(string)                    {}
func (nopObserver) NotificationsSent(int)                {}
func (nopObserver) PushDelivered(int, int, error)        {}
func (nopObserver) StageCompleted(string, time.Duration) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
