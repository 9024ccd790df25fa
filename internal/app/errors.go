package app

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrTaskNotFound indicates that the task does not exist for the user.
	ErrTaskNotFound = errors.New("task not found")
	// ErrHabitNotFound indicates that the habit does not exist or is inactive.
	ErrHabitNotFound = errors.New("habit not found")
	// ErrGoalNotFound indicates that the career goal does not exist for the user.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrSessionAlreadyRunning indicates that the owner already has a running
	// session. Returned errors are *AlreadyRunningError.
	ErrSessionAlreadyRunning = errors.New("pomodoro session already running")
	// ErrSessionNotRunning indicates that the owner has no running session.
	ErrSessionNotRunning = errors.New("no running pomodoro session")
	// ErrInvalidDuration indicates a session length outside the allowed range.
	ErrInvalidDuration = errors.New("invalid session duration")
)

// AlreadyRunningError carries the remaining time of the session that blocked
// a start request.
type AlreadyRunningError struct {
	SessionID int64
	Remaining time.Duration
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("%s: session %d, %s remaining", ErrSessionAlreadyRunning, e.SessionID, e.Remaining.Round(time.Second))
}

// Unwrap lets errors.Is match ErrSessionAlreadyRunning.
func (e *AlreadyRunningError) Unwrap() error { return ErrSessionAlreadyRunning }

// ValidationError reports user input that a service rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}
