package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"prodmax/internal/clock"
	"prodmax/internal/domain"
)

// HabitService owns habit lifecycle and the streak engine's write path. It is
// the only writer of the streak log and the streak counters.
type HabitService struct {
	repo domain.HabitRepository
	xp   XPGranter
	cal  clock.Calendar
	clk  clock.Clock
}

// NewHabitService creates a HabitService backed by the given repository.
func NewHabitService(repo domain.HabitRepository, xp XPGranter, cal clock.Calendar, clk clock.Clock) *HabitService {
	return &HabitService{repo: repo, xp: xp, cal: cal, clk: clk}
}

// StreakResult is the outcome of recording a completion.
type StreakResult struct {
	Habit *domain.Habit
	// AlreadyRecorded is set when the day was already marked completed; the
	// streak was not recomputed and no XP was granted.
	AlreadyRecorded bool
	Streak          int
	BestStreak      int
	XP              *domain.XPGrant
}

// Create validates and stores a new active habit.
func (s *HabitService) Create(ctx context.Context, userID int64, h domain.NewHabit) (*domain.Habit, error) {
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if h.ReminderTime != "" {
		if _, err := time.Parse("15:04", h.ReminderTime); err != nil {
			return nil, &ValidationError{Field: "reminderTime", Reason: "must be HH:MM"}
		}
	}
	return s.repo.CreateHabit(ctx, userID, h, s.clk.Now())
}

// List returns the user's habits, newest first.
func (s *HabitService) List(ctx context.Context, userID int64, activeOnly bool) ([]domain.Habit, error) {
	return s.repo.ListHabits(ctx, userID, activeOnly)
}

// Resolve finds an active habit by numeric id or by exact name.
func (s *HabitService) Resolve(ctx context.Context, userID int64, ref string) (*domain.Habit, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &ValidationError{Field: "habit", Reason: "id or name required"}
	}

	var (
		habit *domain.Habit
		err   error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		habit, err = s.repo.GetHabit(ctx, userID, id)
	} else {
		habit, err = s.repo.FindHabitByName(ctx, userID, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve habit: %w", err)
	}
	if habit == nil || !habit.Active {
		return nil, ErrHabitNotFound
	}
	return habit, nil
}

// MarkToday records today's completion of the habit named by ref.
func (s *HabitService) MarkToday(ctx context.Context, userID int64, ref string) (*StreakResult, error) {
	habit, err := s.Resolve(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, habit, s.cal.Today(s.clk))
}

// RecordCompletion marks the calendar day containing the instant t (in the
// reference zone) completed and recomputes the streak. Pass an instant, not
// a stored day value: midnight UTC maps to the previous day in zones west of
// UTC. A day that is already completed is reported as AlreadyRecorded.
func (s *HabitService) RecordCompletion(ctx context.Context, userID, habitID int64, t time.Time) (*StreakResult, error) {
	habit, err := s.repo.GetHabit(ctx, userID, habitID)
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	if habit == nil || !habit.Active {
		return nil, ErrHabitNotFound
	}
	return s.record(ctx, habit, s.cal.DayOf(t))
}

func (s *HabitService) record(ctx context.Context, habit *domain.Habit, day time.Time) (*StreakResult, error) {
	// A failure after the upsert leaves the day marked with counters or XP
	// lagging; a same-day retry is then a no-op.
	changed, err := s.repo.UpsertStreakEntry(ctx, habit.ID, habit.UserID, day, true)
	if err != nil {
		return nil, fmt.Errorf("upsert streak entry: %w", err)
	}
	if !changed {
		return &StreakResult{
			Habit:           habit,
			AlreadyRecorded: true,
			Streak:          habit.CurrentStreak,
			BestStreak:      habit.BestStreak,
		}, nil
	}

	current, updated, err := s.recompute(ctx, habit)
	if err != nil {
		return nil, err
	}

	res := &StreakResult{Habit: updated, Streak: current, BestStreak: updated.BestStreak}
	grant, err := s.xp.GrantXP(ctx, habit.UserID, domain.XPHabitMarked)
	if err != nil {
		return res, fmt.Errorf("grant xp: %w", err)
	}
	res.XP = &grant
	return res, nil
}

func (s *HabitService) recompute(ctx context.Context, habit *domain.Habit) (int, *domain.Habit, error) {
	log, err := s.repo.ReadStreakLog(ctx, habit.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("read streak log: %w", err)
	}
	current := domain.ComputeStreak(s.cal.Today(s.clk), log)
	best := domain.NextBestStreak(habit.BestStreak, current)

	updated, err := s.repo.BumpStreakCounters(ctx, habit.ID, current, best)
	if err != nil {
		return 0, nil, fmt.Errorf("bump streak counters: %w", err)
	}
	if updated == nil {
		return 0, nil, ErrHabitNotFound
	}
	return current, updated, nil
}

// Delete deactivates a habit; its streak log is kept.
func (s *HabitService) Delete(ctx context.Context, userID, habitID int64) (*domain.Habit, error) {
	habit, err := s.repo.DeactivateHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if habit == nil {
		return nil, ErrHabitNotFound
	}
	return habit, nil
}

// Stats returns habit counters with completions over the last seven days.
func (s *HabitService) Stats(ctx context.Context, userID int64) (domain.HabitStats, error) {
	return s.repo.HabitStats(ctx, userID, s.cal.Today(s.clk).AddDate(0, 0, -7))
}
