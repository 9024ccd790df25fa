// Package app holds the application services and business logic.
package app

import (
	"context"
	"fmt"

	"prodmax/internal/clock"
	"prodmax/internal/domain"
)

// XPGranter awards experience points. UserService is the production
// implementation; it is the only writer of the xp and level columns.
type XPGranter interface {
	GrantXP(ctx context.Context, userID int64, amount int) (domain.XPGrant, error)
}

// ProfileLookup resolves a display name for a messenger user.
type ProfileLookup interface {
	LookupUsername(ctx context.Context, maxUserID int64) (string, error)
}

// UserService handles user registration, XP accounting and stats.
type UserService struct {
	users     domain.UserRepository
	tasks     domain.TaskRepository
	pomodoros domain.PomodoroRepository
	habits    domain.HabitRepository
	profiles  ProfileLookup
	cal       clock.Calendar
	clk       clock.Clock
}

// UserRepos groups the repositories UserService aggregates stats from.
type UserRepos struct {
	Users     domain.UserRepository
	Tasks     domain.TaskRepository
	Pomodoros domain.PomodoroRepository
	Habits    domain.HabitRepository
}

// NewUserService creates a UserService. profiles may be nil.
func NewUserService(repos UserRepos, profiles ProfileLookup, cal clock.Calendar, clk clock.Clock) *UserService {
	return &UserService{
		users:     repos.Users,
		tasks:     repos.Tasks,
		pomodoros: repos.Pomodoros,
		habits:    repos.Habits,
		profiles:  profiles,
		cal:       cal,
		clk:       clk,
	}
}

// GetOrCreate returns the user for a messenger id, registering it on first
// contact. When username is empty the profile lookup is consulted; lookup
// failures fall back to an anonymous user.
func (s *UserService) GetOrCreate(ctx context.Context, maxUserID int64, username string) (*domain.User, error) {
	user, err := s.users.GetByMaxID(ctx, maxUserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	if username == "" && s.profiles != nil {
		if name, err := s.profiles.LookupUsername(ctx, maxUserID); err == nil {
			username = name
		}
	}

	user, err = s.users.CreateUser(ctx, maxUserID, username)
	if err != nil {
		// Another message from the same user may have registered it first.
		user, getErr := s.users.GetByMaxID(ctx, maxUserID)
		if getErr != nil || user == nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return user, nil
	}
	return user, nil
}

// Get returns a user by internal id.
func (s *UserService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GrantXP adds amount to the user's total and reports the level outcome.
func (s *UserService) GrantXP(ctx context.Context, userID int64, amount int) (domain.XPGrant, error) {
	if amount <= 0 {
		return domain.XPGrant{}, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	user, err := s.users.AddXP(ctx, userID, amount)
	if err != nil {
		return domain.XPGrant{}, fmt.Errorf("add xp: %w", err)
	}
	if user == nil {
		return domain.XPGrant{}, ErrUserNotFound
	}
	return domain.GrantFromTotal(amount, user.XP), nil
}

// Stats aggregates task, pomodoro and habit counters for a user. Habit
// completions are counted over the last seven days.
func (s *UserService) Stats(ctx context.Context, userID int64) (*domain.UserStats, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.TaskStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	pomodoro, err := s.pomodoros.PomodoroStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("pomodoro stats: %w", err)
	}
	since := s.cal.Today(s.clk).AddDate(0, 0, -7)
	habits, err := s.habits.HabitStats(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("habit stats: %w", err)
	}
	return &domain.UserStats{User: *user, Tasks: tasks, Pomodoro: pomodoro, Habits: habits}, nil
}
