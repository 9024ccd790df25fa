package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"prodmax/internal/clock"
	"prodmax/internal/domain"
)

var _ domain.HabitRepository = (*DB)(nil)

const habitColumns = "id, user_id, name, description, current_streak, best_streak, reminder_time, active, created_at"

func scanHabit(row scanner) (*domain.Habit, error) {
	var h domain.Habit
	err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &h.CurrentStreak, &h.BestStreak, &h.ReminderTime, &h.Active, &h.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// CreateHabit inserts an active habit.
func (d *DB) CreateHabit(ctx context.Context, userID int64, h domain.NewHabit, createdAt time.Time) (*domain.Habit, error) {
	return scanHabit(d.sql.QueryRowContext(ctx,
		"INSERT INTO habits (user_id, name, description, reminder_time, active, created_at) VALUES ($1, $2, $3, $4, TRUE, $5) RETURNING "+habitColumns,
		userID, h.Name, h.Description, h.ReminderTime, createdAt.UTC(),
	))
}

// GetHabit retrieves a habit scoped to a user.
func (d *DB) GetHabit(ctx context.Context, userID, habitID int64) (*domain.Habit, error) {
	return scanHabit(d.sql.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE id = $1 AND user_id = $2", habitID, userID))
}

// FindHabitByName retrieves a user's habit by exact name, preferring active ones.
func (d *DB) FindHabitByName(ctx context.Context, userID int64, name string) (*domain.Habit, error) {
	return scanHabit(d.sql.QueryRowContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE user_id = $1 AND name = $2 ORDER BY active DESC, id LIMIT 1",
		userID, name))
}

// ListHabits lists a user's habits, newest first.
func (d *DB) ListHabits(ctx context.Context, userID int64, activeOnly bool) ([]domain.Habit, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+habitColumns+" FROM habits WHERE user_id = $1 AND (NOT $2 OR active) ORDER BY created_at DESC, id DESC",
		userID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// DeactivateHabit soft-deletes a habit; its tracking rows are kept.
func (d *DB) DeactivateHabit(ctx context.Context, userID, habitID int64) (*domain.Habit, error) {
	return scanHabit(d.sql.QueryRowContext(ctx,
		"UPDATE habits SET active = FALSE WHERE id = $1 AND user_id = $2 RETURNING "+habitColumns,
		habitID, userID))
}

// UpsertStreakEntry writes the (habit, day) entry. The conditional DO UPDATE
// returns no row when the stored value already matches, which reports the
// write as unchanged.
func (d *DB) UpsertStreakEntry(ctx context.Context, habitID, userID int64, day time.Time, completed bool) (bool, error) {
	var id int64
	err := d.sql.QueryRowContext(ctx,
		`INSERT INTO habit_tracking (habit_id, user_id, date, completed, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (habit_id, date) DO UPDATE SET completed = EXCLUDED.completed
		 WHERE habit_tracking.completed IS DISTINCT FROM EXCLUDED.completed
		 RETURNING id`,
		habitID, userID, clock.Format(day), completed, time.Now().UTC(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReadStreakLog returns the habit's log, newest day first.
func (d *DB) ReadStreakLog(ctx context.Context, habitID int64) ([]domain.StreakEntry, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT to_char(date, 'YYYY-MM-DD'), completed FROM habit_tracking WHERE habit_id = $1 ORDER BY date DESC", habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.StreakEntry
	for rows.Next() {
		var (
			raw       string
			completed bool
		)
		if err := rows.Scan(&raw, &completed); err != nil {
			return nil, err
		}
		day, err := clock.ParseDay(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.StreakEntry{Day: day, Completed: completed})
	}
	return out, rows.Err()
}

// BumpStreakCounters stores the current streak; the best streak only grows.
func (d *DB) BumpStreakCounters(ctx context.Context, habitID int64, current, best int) (*domain.Habit, error) {
	return scanHabit(d.sql.QueryRowContext(ctx,
		"UPDATE habits SET current_streak = $2, best_streak = GREATEST(best_streak, $3, $2) WHERE id = $1 RETURNING "+habitColumns,
		habitID, current, best))
}

// HabitStats summarises a user's habits.
func (d *DB) HabitStats(ctx context.Context, userID int64, since time.Time) (domain.HabitStats, error) {
	var st domain.HabitStats
	err := d.sql.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE active),
		        COALESCE(SUM(current_streak), 0),
		        COALESCE(MAX(best_streak), 0)
		 FROM habits WHERE user_id = $1`, userID,
	).Scan(&st.TotalHabits, &st.ActiveHabits, &st.TotalStreak, &st.BestStreak)
	if err != nil {
		return st, err
	}
	err = d.sql.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM habit_tracking WHERE user_id = $1 AND completed AND date >= $2",
		userID, clock.Format(since),
	).Scan(&st.WeekCompleted)
	return st, err
}
