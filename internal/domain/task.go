package domain

import (
	"context"
	"time"
)

// Task statuses.
const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task is a to-do item owned by a user.
type Task struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewTask carries the user-supplied fields of a task.
type NewTask struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
}

// TaskStats counts a user's tasks by status.
type TaskStats struct {
	Total     int
	Completed int
	Pending   int
}

// TaskRepository is the port for task persistence.
type TaskRepository interface {
	CreateTask(ctx context.Context, userID int64, t NewTask, createdAt time.Time) (*Task, error)
	GetTask(ctx context.Context, userID, taskID int64) (*Task, error)
	// ListTasks returns tasks newest first; an empty status means all.
	ListTasks(ctx context.Context, userID int64, status string) ([]Task, error)
	// CompleteTask flips a pending task to completed. It returns nil without
	// error when no pending task with that id exists for the user.
	CompleteTask(ctx context.Context, userID, taskID int64, completedAt time.Time) (*Task, error)
	DeleteTask(ctx context.Context, userID, taskID int64) (bool, error)
	TaskStats(ctx context.Context, userID int64) (TaskStats, error)
}
