package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"prodmax/internal/domain"
)

var _ domain.PomodoroRepository = (*DB)(nil)

const sessionColumns = "id, user_id, task_id, duration_minutes, started_at, completed_at, aborted_at"

func scanSession(row scanner) (*domain.PomodoroSession, error) {
	var (
		s                  domain.PomodoroSession
		taskID             sql.NullInt64
		completed, aborted sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &taskID, &s.DurationMinutes, &s.StartedAt, &completed, &aborted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if taskID.Valid {
		s.TaskID = &taskID.Int64
	}
	s.CompletedAt = timePtr(completed)
	s.AbortedAt = timePtr(aborted)
	return &s, nil
}

// CreateSession inserts a running session row.
func (d *DB) CreateSession(ctx context.Context, userID int64, taskID *int64, minutes int, startedAt time.Time) (*domain.PomodoroSession, error) {
	return scanSession(d.sql.QueryRowContext(ctx,
		"INSERT INTO pomodoro_sessions (user_id, task_id, duration_minutes, started_at) VALUES ($1, $2, $3, $4) RETURNING "+sessionColumns,
		userID, taskID, minutes, startedAt.UTC(),
	))
}

// MarkSessionCompleted sets completed_at only on a session owned by userID
// that is neither completed nor aborted, so concurrent expiry paths change the
// row once.
func (d *DB) MarkSessionCompleted(ctx context.Context, userID, sessionID int64, completedAt time.Time) (bool, error) {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE pomodoro_sessions SET completed_at = $3 WHERE id = $1 AND user_id = $2 AND completed_at IS NULL AND aborted_at IS NULL",
		sessionID, userID, completedAt.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkSessionAborted records an early stop on a session that has not completed.
func (d *DB) MarkSessionAborted(ctx context.Context, sessionID int64, abortedAt time.Time) error {
	_, err := d.sql.ExecContext(ctx,
		"UPDATE pomodoro_sessions SET aborted_at = $2 WHERE id = $1 AND completed_at IS NULL AND aborted_at IS NULL",
		sessionID, abortedAt.UTC())
	return err
}

// GetSession retrieves a session by ID.
func (d *DB) GetSession(ctx context.Context, sessionID int64) (*domain.PomodoroSession, error) {
	return scanSession(d.sql.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM pomodoro_sessions WHERE id = $1", sessionID))
}

// AbortOrphanedSessions aborts every session with neither timestamp.
func (d *DB) AbortOrphanedSessions(ctx context.Context, abortedAt time.Time) (int64, error) {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE pomodoro_sessions SET aborted_at = $1 WHERE completed_at IS NULL AND aborted_at IS NULL",
		abortedAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PomodoroStats summarises a user's sessions.
func (d *DB) PomodoroStats(ctx context.Context, userID int64) (domain.PomodoroStats, error) {
	var (
		st   domain.PomodoroStats
		last sql.NullTime
	)
	err := d.sql.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(completed_at),
		        COALESCE(SUM(duration_minutes) FILTER (WHERE completed_at IS NOT NULL), 0),
		        MAX(completed_at)
		 FROM pomodoro_sessions WHERE user_id = $1`, userID,
	).Scan(&st.TotalSessions, &st.CompletedSessions, &st.TotalMinutes, &last)
	st.LastCompletedAt = timePtr(last)
	return st, err
}
