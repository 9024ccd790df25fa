package domain

import (
	"context"
	"time"
)

// Goal statuses.
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
)

// CareerGoal is a long-running objective tracked by percentage progress.
type CareerGoal struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	Progress    int        `json:"progress"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewGoal carries the user-supplied fields of a goal.
type NewGoal struct {
	Title       string
	Description string
	TargetDate  *time.Time
}

// ClampProgress bounds a progress percentage to [0, 100].
func ClampProgress(p int) int {
	return min(max(p, 0), 100)
}

// GoalRepository is the port for career goal persistence.
type GoalRepository interface {
	CreateGoal(ctx context.Context, userID int64, g NewGoal, createdAt time.Time) (*CareerGoal, error)
	GetGoal(ctx context.Context, userID, goalID int64) (*CareerGoal, error)
	ListGoals(ctx context.Context, userID int64, status string) ([]CareerGoal, error)
	// SetGoalProgress stores progress and returns the previous and updated
	// rows, or nils when the goal does not exist for the user.
	SetGoalProgress(ctx context.Context, userID, goalID int64, progress int, updatedAt time.Time) (prev, updated *CareerGoal, err error)
	// CompleteGoal marks an active goal completed at 100%. It returns nil
	// without error when no active goal with that id exists for the user.
	CompleteGoal(ctx context.Context, userID, goalID int64, updatedAt time.Time) (*CareerGoal, error)
}
