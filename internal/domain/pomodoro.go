package domain

import (
	"context"
	"time"
)

// DefaultSessionMinutes is the classic pomodoro length.
const DefaultSessionMinutes = 25

// SessionState is derived from the persisted timestamps and registry presence.
type SessionState string

// Session states.
const (
	SessionRunning   SessionState = "running"
	SessionCompleted SessionState = "completed"
	SessionAborted   SessionState = "aborted"
)

// PomodoroSession is one timed focus period.
type PomodoroSession struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	TaskID          *int64     `json:"taskId,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	AbortedAt       *time.Time `json:"abortedAt,omitempty"`
}

// State reports the persisted view of the session. A row with neither
// timestamp is running as far as the store knows; only the in-process
// registry can tell whether a timer still backs it.
func (s PomodoroSession) State() SessionState {
	switch {
	case s.CompletedAt != nil:
		return SessionCompleted
	case s.AbortedAt != nil:
		return SessionAborted
	default:
		return SessionRunning
	}
}

// Duration returns the planned length.
func (s PomodoroSession) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// PomodoroStats summarises a user's sessions.
type PomodoroStats struct {
	TotalSessions     int
	CompletedSessions int
	TotalMinutes      int
	LastCompletedAt   *time.Time
}

// PomodoroRepository is the port for session persistence.
type PomodoroRepository interface {
	CreateSession(ctx context.Context, userID int64, taskID *int64, minutes int, startedAt time.Time) (*PomodoroSession, error)
	// MarkSessionCompleted sets completed_at if the session is neither
	// completed nor aborted. It reports whether this call made the change.
	MarkSessionCompleted(ctx context.Context, userID, sessionID int64, completedAt time.Time) (bool, error)
	// MarkSessionAborted records an early stop; completed_at stays unset.
	MarkSessionAborted(ctx context.Context, sessionID int64, abortedAt time.Time) error
	GetSession(ctx context.Context, sessionID int64) (*PomodoroSession, error)
	// AbortOrphanedSessions marks every session with neither timestamp as
	// aborted and returns how many rows changed.
	AbortOrphanedSessions(ctx context.Context, abortedAt time.Time) (int64, error)
	PomodoroStats(ctx context.Context, userID int64) (PomodoroStats, error)
}
