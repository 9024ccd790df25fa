// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// User is a messenger user known to the bot.
type User struct {
	ID        int64
	MaxUserID int64
	Username  string
	XP        int
	Level     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRepository defines the port for user persistence operations.
type UserRepository interface {
	GetByMaxID(ctx context.Context, maxUserID int64) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, maxUserID int64, username string) (*User, error)
	// AddXP atomically adds amount to the user's XP, recomputes the level
	// and returns the updated row.
	AddXP(ctx context.Context, userID int64, amount int) (*User, error)
}

// UserStats aggregates per-user counters shown by the stats command.
type UserStats struct {
	User     User
	Tasks    TaskStats
	Pomodoro PomodoroStats
	Habits   HabitStats
}
