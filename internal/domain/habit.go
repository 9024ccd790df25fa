package domain

import (
	"context"
	"time"
)

// Habit is a daily practice whose completions form streaks.
type Habit struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CurrentStreak int       `json:"streak"`
	BestStreak    int       `json:"bestStreak"`
	ReminderTime  string    `json:"reminderTime,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewHabit carries the user-supplied fields of a habit.
type NewHabit struct {
	Name         string
	Description  string
	ReminderTime string
}

// HabitStats summarises a user's habits.
type HabitStats struct {
	TotalHabits   int
	ActiveHabits  int
	TotalStreak   int
	BestStreak    int
	WeekCompleted int
}

// HabitRepository is the port for habit and streak-log persistence.
type HabitRepository interface {
	CreateHabit(ctx context.Context, userID int64, h NewHabit, createdAt time.Time) (*Habit, error)
	GetHabit(ctx context.Context, userID, habitID int64) (*Habit, error)
	FindHabitByName(ctx context.Context, userID int64, name string) (*Habit, error)
	ListHabits(ctx context.Context, userID int64, activeOnly bool) ([]Habit, error)
	DeactivateHabit(ctx context.Context, userID, habitID int64) (*Habit, error)

	// UpsertStreakEntry writes the (habit, day) log entry. It reports false
	// when the entry already held the requested completed value, which makes
	// a repeated same-day completion observable as a no-op.
	UpsertStreakEntry(ctx context.Context, habitID, userID int64, day time.Time, completed bool) (bool, error)
	// ReadStreakLog returns the habit's log ordered by day, newest first.
	ReadStreakLog(ctx context.Context, habitID int64) ([]StreakEntry, error)
	// BumpStreakCounters stores the current streak and raises the best
	// streak to at least best; it never lowers the stored best.
	BumpStreakCounters(ctx context.Context, habitID int64, current, best int) (*Habit, error)

	// HabitStats counts completions on or after since toward WeekCompleted.
	HabitStats(ctx context.Context, userID int64, since time.Time) (HabitStats, error)
}
