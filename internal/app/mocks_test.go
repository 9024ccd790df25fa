package app_test

import (
	"context"
	"sync"
	"time"

	"prodmax/internal/app"
	"prodmax/internal/domain"
)

type mockXP struct {
	grantFn func(ctx context.Context, userID int64, amount int) (domain.XPGrant, error)

	mu     sync.Mutex
	grants []int
}

func (m *mockXP) GrantXP(ctx context.Context, userID int64, amount int) (domain.XPGrant, error) {
	m.mu.Lock()
	m.grants = append(m.grants, amount)
	m.mu.Unlock()
	if m.grantFn != nil {
		return m.grantFn(ctx, userID, amount)
	}
	return domain.GrantFromTotal(amount, amount), nil
}

func (m *mockXP) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, g := range m.grants {
		sum += g
	}
	return sum
}

type mockTaskRepo struct {
	createFn   func(ctx context.Context, userID int64, t domain.NewTask, createdAt time.Time) (*domain.Task, error)
	getFn      func(ctx context.Context, userID, taskID int64) (*domain.Task, error)
	listFn     func(ctx context.Context, userID int64, status string) ([]domain.Task, error)
	completeFn func(ctx context.Context, userID, taskID int64, completedAt time.Time) (*domain.Task, error)
	deleteFn   func(ctx context.Context, userID, taskID int64) (bool, error)
	statsFn    func(ctx context.Context, userID int64) (domain.TaskStats, error)
}

func (m *mockTaskRepo) CreateTask(ctx context.Context, userID int64, t domain.NewTask, createdAt time.Time) (*domain.Task, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, t, createdAt)
	}
	return &domain.Task{ID: 1, UserID: userID, Title: t.Title, Priority: t.Priority, Status: domain.TaskPending, CreatedAt: createdAt}, nil
}

func (m *mockTaskRepo) GetTask(ctx context.Context, userID, taskID int64) (*domain.Task, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, taskID)
	}
	return nil, nil
}

func (m *mockTaskRepo) ListTasks(ctx context.Context, userID int64, status string) ([]domain.Task, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, status)
	}
	return nil, nil
}

func (m *mockTaskRepo) CompleteTask(ctx context.Context, userID, taskID int64, completedAt time.Time) (*domain.Task, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, userID, taskID, completedAt)
	}
	return nil, nil
}

func (m *mockTaskRepo) DeleteTask(ctx context.Context, userID, taskID int64) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, taskID)
	}
	return false, nil
}

func (m *mockTaskRepo) TaskStats(ctx context.Context, userID int64) (domain.TaskStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, userID)
	}
	return domain.TaskStats{}, nil
}

// mockPomodoroRepo wraps a fallback repository and lets tests override single
// calls.
type mockPomodoroRepo struct {
	domain.PomodoroRepository

	createFn   func(ctx context.Context, userID int64, taskID *int64, minutes int, startedAt time.Time) (*domain.PomodoroSession, error)
	completeFn func(ctx context.Context, userID, sessionID int64, completedAt time.Time) (bool, error)
}

func (m *mockPomodoroRepo) CreateSession(ctx context.Context, userID int64, taskID *int64, minutes int, startedAt time.Time) (*domain.PomodoroSession, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, taskID, minutes, startedAt)
	}
	return m.PomodoroRepository.CreateSession(ctx, userID, taskID, minutes, startedAt)
}

func (m *mockPomodoroRepo) MarkSessionCompleted(ctx context.Context, userID, sessionID int64, completedAt time.Time) (bool, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, userID, sessionID, completedAt)
	}
	return m.PomodoroRepository.MarkSessionCompleted(ctx, userID, sessionID, completedAt)
}

type mockProfiles struct {
	lookupFn func(ctx context.Context, maxUserID int64) (string, error)
}

func (m *mockProfiles) LookupUsername(ctx context.Context, maxUserID int64) (string, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, maxUserID)
	}
	return "", nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []app.SessionEvent
	err    error
}

func (n *recordingNotifier) NotifySession(_ context.Context, ev app.SessionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) kinds() []app.SessionEventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]app.SessionEventKind, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}
