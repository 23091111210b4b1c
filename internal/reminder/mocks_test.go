package reminder

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pecal/pecal-reminders/internal/domain"
	"github.com/pecal/pecal-reminders/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

// failingLog is an EventLog whose operations fail on demand.
type failingLog struct {
	AppendFn    func(ctx context.Context, fields map[string]string, maxLen int) (int64, error)
	ReadAfterFn func(ctx context.Context, after int64, count int) ([]LogEntry, error)
}

func (f *failingLog) Append(ctx context.Context, fields map[string]string, maxLen int) (int64, error) {
	return f.AppendFn(ctx, fields, maxLen)
}

func (f *failingLog) ReadAfter(ctx context.Context, after int64, count int) ([]LogEntry, error) {
	return f.ReadAfterFn(ctx, after, count)
}

// flakyStore wraps a MemoryStore and lets tests override single operations.
type flakyStore struct {
	*MemoryStore
	PutJobFn   func(ctx context.Context, key string, triggerAt int64, payload []byte) error
	LoadJobFn  func(ctx context.Context, key string) ([]byte, bool, error)
	ClaimFn    func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	LoadCurFn  func(ctx context.Context) (int64, error)
	SaveCurFn  func(ctx context.Context, position int64) error
	saveCalled int
}

func (f *flakyStore) PutJob(ctx context.Context, key string, triggerAt int64, payload []byte) error {
	if f.PutJobFn != nil {
		return f.PutJobFn(ctx, key, triggerAt, payload)
	}
	return f.MemoryStore.PutJob(ctx, key, triggerAt, payload)
}

func (f *flakyStore) LoadJob(ctx context.Context, key string) ([]byte, bool, error) {
	if f.LoadJobFn != nil {
		return f.LoadJobFn(ctx, key)
	}
	return f.MemoryStore.LoadJob(ctx, key)
}

func (f *flakyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.ClaimFn != nil {
		return f.ClaimFn(ctx, key, ttl)
	}
	return f.MemoryStore.Claim(ctx, key, ttl)
}

func (f *flakyStore) LoadCursor(ctx context.Context) (int64, error) {
	if f.LoadCurFn != nil {
		return f.LoadCurFn(ctx)
	}
	return f.MemoryStore.LoadCursor(ctx)
}

func (f *flakyStore) SaveCursor(ctx context.Context, position int64) error {
	f.saveCalled++
	if f.SaveCurFn != nil {
		return f.SaveCurFn(ctx, position)
	}
	return f.MemoryStore.SaveCursor(ctx, position)
}

// MockTaskStore implements store.TaskStore.
type MockTaskStore struct {
	mu    sync.Mutex
	tasks map[int64]domain.Task
	calls int

	GetTaskByIDFn func(ctx context.Context, id int64) (*domain.Task, error)
}

func newMockTaskStore(tasks ...domain.Task) *MockTaskStore {
	m := &MockTaskStore{tasks: make(map[int64]domain.Task)}
	for _, t := range tasks {
		m.tasks[t.ID] = t
	}
	return m
}

func (m *MockTaskStore) Put(task domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
}

func (m *MockTaskStore) GetTaskByID(ctx context.Context, id int64) (*domain.Task, error) {
	m.mu.Lock()
	m.calls++
	fn := m.GetTaskByIDFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return &task, nil
}

// MockDirectory implements store.MembershipDirectory.
type MockDirectory struct {
	mu         sync.Mutex
	workspaces map[int64]domain.Workspace
	teams      map[int64][]int64
	rosterHits int

	GetWorkspaceFn func(ctx context.Context, workspaceID int64) (*domain.Workspace, error)
}

func newMockDirectory() *MockDirectory {
	return &MockDirectory{
		workspaces: make(map[int64]domain.Workspace),
		teams:      make(map[int64][]int64),
	}
}

func (m *MockDirectory) personal(workspaceID, ownerID int64) *MockDirectory {
	m.workspaces[workspaceID] = domain.Workspace{ID: workspaceID, Type: domain.WorkspaceTypePersonal, OwnerID: ownerID}
	return m
}

func (m *MockDirectory) team(workspaceID, teamID int64, members ...int64) *MockDirectory {
	m.workspaces[workspaceID] = domain.Workspace{ID: workspaceID, Type: domain.WorkspaceTypeTeam, OwnerID: teamID}
	m.teams[teamID] = members
	return m
}

func (m *MockDirectory) GetWorkspace(ctx context.Context, workspaceID int64) (*domain.Workspace, error) {
	if m.GetWorkspaceFn != nil {
		return m.GetWorkspaceFn(ctx, workspaceID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[workspaceID]
	if !ok {
		return nil, store.ErrWorkspaceNotFound
	}
	return &ws, nil
}

func (m *MockDirectory) ListTeamMemberIDs(ctx context.Context, teamID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rosterHits++
	return append([]int64(nil), m.teams[teamID]...), nil
}

// MockNotificationStore implements store.NotificationStore.
type MockNotificationStore struct {
	mu      sync.Mutex
	created []domain.Notification

	CreateNotificationsBulkFn func(ctx context.Context, notifications []domain.Notification) (int, error)
}

func (m *MockNotificationStore) CreateNotificationsBulk(ctx context.Context, notifications []domain.Notification) (int, error) {
	if m.CreateNotificationsBulkFn != nil {
		return m.CreateNotificationsBulkFn(ctx, notifications)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, notifications...)
	return len(notifications), nil
}

func (m *MockNotificationStore) Created() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.created...)
}

func (m *MockNotificationStore) CountFor(memberID, taskID int64) int {
	n := 0
	for _, c := range m.Created() {
		if c.MemberID == memberID && c.SourceID == taskID {
			n++
		}
	}
	return n
}

// MockPushTokenStore implements store.PushTokenStore.
type MockPushTokenStore struct {
	mu          sync.Mutex
	tokens      []domain.PushDestination
	deactivated []string
}

func (m *MockPushTokenStore) ListActiveByMemberIDs(ctx context.Context, memberIDs []int64) ([]domain.PushDestination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[int64]bool, len(memberIDs))
	for _, id := range memberIDs {
		wanted[id] = true
	}
	inactive := make(map[string]bool, len(m.deactivated))
	for _, t := range m.deactivated {
		inactive[t] = true
	}
	var out []domain.PushDestination
	for _, d := range m.tokens {
		if wanted[d.MemberID] && !inactive[d.Token] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockPushTokenStore) DeactivateTokens(ctx context.Context, tokens []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivated = append(m.deactivated, tokens...)
	return nil
}

// MockPushGateway implements PushGateway.
type MockPushGateway struct {
	mu   sync.Mutex
	sent []domain.PushMessage

	SendFn func(ctx context.Context, messages []domain.PushMessage) (domain.PushResult, error)
}

func (m *MockPushGateway) Send(ctx context.Context, messages []domain.PushMessage) (domain.PushResult, error) {
	m.mu.Lock()
	m.sent = append(m.sent, messages...)
	m.mu.Unlock()
	if m.SendFn != nil {
		return m.SendFn(ctx, messages)
	}
	return domain.PushResult{Sent: len(messages)}, nil
}

// recordingObserver counts retirements by reason.
type recordingObserver struct {
	nopObserver
	mu      sync.Mutex
	retired map[string]int
	skipped int
	failed  int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{retired: make(map[string]int)}
}

func (o *recordingObserver) JobRetired(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retired[reason]++
}

func (o *recordingObserver) EventSkipped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped++
}

func (o *recordingObserver) EmitFailed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}
