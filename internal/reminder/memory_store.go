package reminder

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process CoordinationStore. It is meant for tests and
// single-process development setups; state is lost on restart.
type MemoryStore struct {
	mu sync.Mutex

	events  []LogEntry
	lastPos int64
	cursor  int64

	schedule map[string]int64
	jobs     map[string][]byte

	dedupe map[string]time.Time

	lastRun        *RunReport
	lastRunExpires time.Time

	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedule: make(map[string]int64),
		jobs:     make(map[string][]byte),
		dedupe:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// SetClock replaces the clock used for TTL bookkeeping.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

var _ CoordinationStore = (*MemoryStore)(nil)

// Append implements EventLog.
func (s *MemoryStore) Append(ctx context.Context, fields map[string]string, maxLen int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.lastPos++
	s.events = append(s.events, LogEntry{Position: s.lastPos, Fields: copied})

	if maxLen > 0 && len(s.events) > maxLen {
		s.events = append([]LogEntry(nil), s.events[len(s.events)-maxLen:]...)
	}
	return s.lastPos, nil
}

// ReadAfter implements EventLog.
func (s *MemoryStore) ReadAfter(ctx context.Context, after int64, count int) ([]LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Position > after
	})
	end := start + count
	if end > len(s.events) {
		end = len(s.events)
	}
	if start >= end {
		return nil, nil
	}
	out := make([]LogEntry, end-start)
	copy(out, s.events[start:end])
	return out, nil
}

// Len returns the number of entries currently retained on the log.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// LoadCursor implements CursorStore.
func (s *MemoryStore) LoadCursor(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, nil
}

// SaveCursor implements CursorStore.
func (s *MemoryStore) SaveCursor(ctx context.Context, position int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position > s.cursor {
		s.cursor = position
	}
	return nil
}

// PutJob implements ScheduleStore.
func (s *MemoryStore) PutJob(ctx context.Context, key string, triggerAt int64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule[key] = triggerAt
	s.jobs[key] = append([]byte(nil), payload...)
	return nil
}

// RemoveJob implements ScheduleStore.
func (s *MemoryStore) RemoveJob(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedule, key)
	delete(s.jobs, key)
	return nil
}

// RemoveIndexEntry implements ScheduleStore.
func (s *MemoryStore) RemoveIndexEntry(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedule, key)
	return nil
}

// DueJobs implements ScheduleStore.
func (s *MemoryStore) DueJobs(ctx context.Context, now int64, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type scored struct {
		key   string
		score int64
	}
	var due []scored
	for key, score := range s.schedule {
		if score <= now {
			due = append(due, scored{key: key, score: score})
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].score != due[j].score {
			return due[i].score < due[j].score
		}
		return due[i].key < due[j].key
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	keys := make([]string, len(due))
	for i, d := range due {
		keys[i] = d.key
	}
	return keys, nil
}

// LoadJob implements ScheduleStore.
func (s *MemoryStore) LoadJob(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.jobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), payload...), true, nil
}

// JobTriggerAt implements ScheduleStore.
func (s *MemoryStore) JobTriggerAt(ctx context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.schedule[key]
	return score, ok, nil
}

// ScheduledKeys returns every key in the schedule index, sorted.
func (s *MemoryStore) ScheduledKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.schedule))
	for key := range s.schedule {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Claim implements DedupeStore.
func (s *MemoryStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if expires, ok := s.dedupe[key]; ok && now.Before(expires) {
		return false, nil
	}
	s.dedupe[key] = now.Add(ttl)
	return true, nil
}

// PurgeExpired implements DedupeStore.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var purged int64
	for key, expires := range s.dedupe {
		if !now.Before(expires) {
			delete(s.dedupe, key)
			purged++
		}
	}
	return purged, nil
}

// RecordRun implements RunRecorder.
func (s *MemoryStore) RecordRun(ctx context.Context, report RunReport, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := report
	s.lastRun = &r
	s.lastRunExpires = s.now().Add(ttl)
	return nil
}

// LastRun implements RunRecorder.
func (s *MemoryStore) LastRun(ctx context.Context) (*RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil || !s.now().Before(s.lastRunExpires) {
		return nil, nil
	}
	r := *s.lastRun
	return &r, nil
}
