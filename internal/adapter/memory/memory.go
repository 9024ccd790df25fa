// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"prodmax/internal/clock"
	"prodmax/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	users    []domain.User
	tasks    []domain.Task
	sessions []domain.PomodoroSession
	habits   []domain.Habit
	tracking map[trackingKey]trackingRow
	goals    []domain.CareerGoal

	userIDCounter    int64
	taskIDCounter    int64
	sessionIDCounter int64
	habitIDCounter   int64
	goalIDCounter    int64
}

type trackingKey struct {
	habitID int64
	day     string
}

type trackingRow struct {
	userID    int64
	day       time.Time
	completed bool
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{tracking: make(map[trackingKey]trackingRow)}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.TaskRepository = (*DB)(nil)
var _ domain.PomodoroRepository = (*DB)(nil)
var _ domain.HabitRepository = (*DB)(nil)
var _ domain.GoalRepository = (*DB)(nil)

// --- UserRepository ---

// GetByMaxID retrieves a user by messenger id.
func (db *DB) GetByMaxID(ctx context.Context, maxUserID int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.MaxUserID == maxUserID {
			return &u, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if i := db.userIndex(id); i >= 0 {
		u := db.users[i]
		return &u, nil
	}
	return nil, nil
}

// CreateUser creates a new user at level 1.
func (db *DB) CreateUser(ctx context.Context, maxUserID int64, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.MaxUserID == maxUserID {
			return nil, errors.New("user already exists")
		}
	}

	db.userIDCounter++
	now := time.Now().UTC()
	u := domain.User{
		ID:        db.userIDCounter,
		MaxUserID: maxUserID,
		Username:  username,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	db.users = append(db.users, u)
	return &u, nil
}

// AddXP adds amount to the user's XP and recomputes the level.
func (db *DB) AddXP(ctx context.Context, userID int64, amount int) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.userIndex(userID)
	if i < 0 {
		return nil, nil
	}
	u := &db.users[i]
	u.XP += amount
	u.Level = domain.LevelForXP(u.XP)
	u.UpdatedAt = time.Now().UTC()
	out := *u
	return &out, nil
}

func (db *DB) userIndex(id int64) int {
	for i, u := range db.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// --- TaskRepository ---

// CreateTask adds a pending task.
func (db *DB) CreateTask(ctx context.Context, userID int64, t domain.NewTask, createdAt time.Time) (*domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.taskIDCounter++
	task := domain.Task{
		ID:          db.taskIDCounter,
		UserID:      userID,
		Title:       t.Title,
		Description: t.Description,
		Status:      domain.TaskPending,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		CreatedAt:   createdAt.UTC(),
	}
	db.tasks = append(db.tasks, task)
	return &task, nil
}

// GetTask retrieves a task scoped to a user.
func (db *DB) GetTask(ctx context.Context, userID, taskID int64) (*domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if i := db.taskIndex(userID, taskID); i >= 0 {
		t := db.tasks[i]
		return &t, nil
	}
	return nil, nil
}

// ListTasks lists a user's tasks, newest first.
func (db *DB) ListTasks(ctx context.Context, userID int64, status string) ([]domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []domain.Task
	for _, t := range db.tasks {
		if t.UserID == userID && (status == "" || t.Status == status) {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CompleteTask flips a pending task to completed.
func (db *DB) CompleteTask(ctx context.Context, userID, taskID int64, completedAt time.Time) (*domain.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.taskIndex(userID, taskID)
	if i < 0 || db.tasks[i].Status == domain.TaskCompleted {
		return nil, nil
	}
	at := completedAt.UTC()
	db.tasks[i].Status = domain.TaskCompleted
	db.tasks[i].CompletedAt = &at
	t := db.tasks[i]
	return &t, nil
}

// DeleteTask removes a task.
func (db *DB) DeleteTask(ctx context.Context, userID, taskID int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.taskIndex(userID, taskID)
	if i < 0 {
		return false, nil
	}
	db.tasks = append(db.tasks[:i], db.tasks[i+1:]...)
	for j := range db.sessions {
		if s := &db.sessions[j]; s.TaskID != nil && *s.TaskID == taskID {
			s.TaskID = nil
		}
	}
	return true, nil
}

// TaskStats counts a user's tasks by status.
func (db *DB) TaskStats(ctx context.Context, userID int64) (domain.TaskStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var st domain.TaskStats
	for _, t := range db.tasks {
		if t.UserID != userID {
			continue
		}
		st.Total++
		switch t.Status {
		case domain.TaskCompleted:
			st.Completed++
		case domain.TaskPending:
			st.Pending++
		}
	}
	return st, nil
}

func (db *DB) taskIndex(userID, taskID int64) int {
	for i, t := range db.tasks {
		if t.ID == taskID && t.UserID == userID {
			return i
		}
	}
	return -1
}

// --- PomodoroRepository ---

// CreateSession inserts a running session row.
func (db *DB) CreateSession(ctx context.Context, userID int64, taskID *int64, minutes int, startedAt time.Time) (*domain.PomodoroSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.sessionIDCounter++
	s := domain.PomodoroSession{
		ID:              db.sessionIDCounter,
		UserID:          userID,
		TaskID:          taskID,
		DurationMinutes: minutes,
		StartedAt:       startedAt.UTC(),
	}
	db.sessions = append(db.sessions, s)
	return &s, nil
}

// MarkSessionCompleted completes a session of userID that is neither completed
// nor aborted.
func (db *DB) MarkSessionCompleted(ctx context.Context, userID, sessionID int64, completedAt time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.sessionIndex(sessionID)
	if i < 0 {
		return false, nil
	}
	s := &db.sessions[i]
	if s.UserID != userID || s.CompletedAt != nil || s.AbortedAt != nil {
		return false, nil
	}
	at := completedAt.UTC()
	s.CompletedAt = &at
	return true, nil
}

// MarkSessionAborted records an early stop on a session that has not completed.
func (db *DB) MarkSessionAborted(ctx context.Context, sessionID int64, abortedAt time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.sessionIndex(sessionID)
	if i < 0 {
		return nil
	}
	s := &db.sessions[i]
	if s.CompletedAt == nil && s.AbortedAt == nil {
		at := abortedAt.UTC()
		s.AbortedAt = &at
	}
	return nil
}

// GetSession retrieves a session by ID.
func (db *DB) GetSession(ctx context.Context, sessionID int64) (*domain.PomodoroSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if i := db.sessionIndex(sessionID); i >= 0 {
		s := db.sessions[i]
		return &s, nil
	}
	return nil, nil
}

// AbortOrphanedSessions aborts every session with neither timestamp.
func (db *DB) AbortOrphanedSessions(ctx context.Context, abortedAt time.Time) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	at := abortedAt.UTC()
	var n int64
	for i := range db.sessions {
		s := &db.sessions[i]
		if s.CompletedAt == nil && s.AbortedAt == nil {
			s.AbortedAt = &at
			n++
		}
	}
	return n, nil
}

// PomodoroStats summarises a user's sessions.
func (db *DB) PomodoroStats(ctx context.Context, userID int64) (domain.PomodoroStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var st domain.PomodoroStats
	for _, s := range db.sessions {
		if s.UserID != userID {
			continue
		}
		st.TotalSessions++
		if s.CompletedAt == nil {
			continue
		}
		st.CompletedSessions++
		st.TotalMinutes += s.DurationMinutes
		if st.LastCompletedAt == nil || s.CompletedAt.After(*st.LastCompletedAt) {
			at := *s.CompletedAt
			st.LastCompletedAt = &at
		}
	}
	return st, nil
}

func (db *DB) sessionIndex(id int64) int {
	for i, s := range db.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// --- HabitRepository ---

// CreateHabit adds an active habit.
func (db *DB) CreateHabit(ctx context.Context, userID int64, h domain.NewHabit, createdAt time.Time) (*domain.Habit, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.habitIDCounter++
	habit := domain.Habit{
		ID:           db.habitIDCounter,
		UserID:       userID,
		Name:         h.Name,
		Description:  h.Description,
		ReminderTime: h.ReminderTime,
		Active:       true,
		CreatedAt:    createdAt.UTC(),
	}
	db.habits = append(db.habits, habit)
	return &habit, nil
}

// GetHabit retrieves a habit scoped to a user.
func (db *DB) GetHabit(ctx context.Context, userID, habitID int64) (*domain.Habit, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, h := range db.habits {
		if h.ID == habitID && h.UserID == userID {
			return &h, nil
		}
	}
	return nil, nil
}

// FindHabitByName retrieves a user's habit by exact name, preferring active ones.
func (db *DB) FindHabitByName(ctx context.Context, userID int64, name string) (*domain.Habit, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var found *domain.Habit
	for _, h := range db.habits {
		if h.UserID != userID || h.Name != name {
			continue
		}
		if found == nil || (h.Active && !found.Active) {
			h := h
			found = &h
		}
	}
	return found, nil
}

// ListHabits lists a user's habits, newest first.
func (db *DB) ListHabits(ctx context.Context, userID int64, activeOnly bool) ([]domain.Habit, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []domain.Habit
	for _, h := range db.habits {
		if h.UserID == userID && (!activeOnly || h.Active) {
			result = append(result, h)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// DeactivateHabit soft-deletes a habit.
func (db *DB) DeactivateHabit(ctx context.Context, userID, habitID int64) (*domain.Habit, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.habits {
		if h := &db.habits[i]; h.ID == habitID && h.UserID == userID {
			h.Active = false
			out := *h
			return &out, nil
		}
	}
	return nil, nil
}

// UpsertStreakEntry writes the (habit, day) entry and reports whether it changed.
func (db *DB) UpsertStreakEntry(ctx context.Context, habitID, userID int64, day time.Time, completed bool) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := trackingKey{habitID: habitID, day: clock.Format(day)}
	if row, ok := db.tracking[key]; ok && row.completed == completed {
		return false, nil
	}
	db.tracking[key] = trackingRow{userID: userID, day: day, completed: completed}
	return true, nil
}

// ReadStreakLog returns the habit's log, newest day first.
func (db *DB) ReadStreakLog(ctx context.Context, habitID int64) ([]domain.StreakEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.StreakEntry
	for k, row := range db.tracking {
		if k.habitID == habitID {
			out = append(out, domain.StreakEntry{Day: row.day, Completed: row.completed})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.After(out[j].Day) })
	return out, nil
}

// BumpStreakCounters stores the current streak and raises the best streak.
func (db *DB) BumpStreakCounters(ctx context.Context, habitID int64, current, best int) (*domain.Habit, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.habits {
		if h := &db.habits[i]; h.ID == habitID {
			h.CurrentStreak = current
			h.BestStreak = max(h.BestStreak, best, current)
			out := *h
			return &out, nil
		}
	}
	return nil, nil
}

// HabitStats summarises a user's habits.
func (db *DB) HabitStats(ctx context.Context, userID int64, since time.Time) (domain.HabitStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var st domain.HabitStats
	for _, h := range db.habits {
		if h.UserID != userID {
			continue
		}
		st.TotalHabits++
		st.TotalStreak += h.CurrentStreak
		st.BestStreak = max(st.BestStreak, h.BestStreak)
		if h.Active {
			st.ActiveHabits++
		}
	}
	for _, row := range db.tracking {
		if row.userID == userID && row.completed && !row.day.Before(since) {
			st.WeekCompleted++
		}
	}
	return st, nil
}

// --- GoalRepository ---

// CreateGoal adds an active goal at 0% progress.
func (db *DB) CreateGoal(ctx context.Context, userID int64, g domain.NewGoal, createdAt time.Time) (*domain.CareerGoal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.goalIDCounter++
	at := createdAt.UTC()
	goal := domain.CareerGoal{
		ID:          db.goalIDCounter,
		UserID:      userID,
		Title:       g.Title,
		Description: g.Description,
		TargetDate:  g.TargetDate,
		Status:      domain.GoalActive,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	db.goals = append(db.goals, goal)
	return &goal, nil
}

// GetGoal retrieves a goal scoped to a user.
func (db *DB) GetGoal(ctx context.Context, userID, goalID int64) (*domain.CareerGoal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if i := db.goalIndex(userID, goalID); i >= 0 {
		g := db.goals[i]
		return &g, nil
	}
	return nil, nil
}

// ListGoals lists a user's goals, newest first.
func (db *DB) ListGoals(ctx context.Context, userID int64, status string) ([]domain.CareerGoal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []domain.CareerGoal
	for _, g := range db.goals {
		if g.UserID == userID && (status == "" || g.Status == status) {
			result = append(result, g)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// SetGoalProgress stores progress and returns the previous and updated rows.
func (db *DB) SetGoalProgress(ctx context.Context, userID, goalID int64, progress int, updatedAt time.Time) (*domain.CareerGoal, *domain.CareerGoal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.goalIndex(userID, goalID)
	if i < 0 {
		return nil, nil, nil
	}
	prev := db.goals[i]
	db.goals[i].Progress = progress
	db.goals[i].UpdatedAt = updatedAt.UTC()
	updated := db.goals[i]
	return &prev, &updated, nil
}

// CompleteGoal marks an active goal completed at 100%.
func (db *DB) CompleteGoal(ctx context.Context, userID, goalID int64, updatedAt time.Time) (*domain.CareerGoal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	i := db.goalIndex(userID, goalID)
	if i < 0 || db.goals[i].Status != domain.GoalActive {
		return nil, nil
	}
	db.goals[i].Status = domain.GoalCompleted
	db.goals[i].Progress = 100
	db.goals[i].UpdatedAt = updatedAt.UTC()
	g := db.goals[i]
	return &g, nil
}

func (db *DB) goalIndex(userID, goalID int64) int {
	for i, g := range db.goals {
		if g.ID == goalID && g.UserID == userID {
			return i
		}
	}
	return -1
}
