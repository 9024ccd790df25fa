package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"prodmax/internal/clock"
	"prodmax/internal/domain"
)

const maxTitleLen = 500

// TaskService encapsulates task use cases.
type TaskService struct {
	repo domain.TaskRepository
	xp   XPGranter
	clk  clock.Clock
}

// NewTaskService creates a TaskService backed by the given repository.
func NewTaskService(repo domain.TaskRepository, xp XPGranter, clk clock.Clock) *TaskService {
	return &TaskService{repo: repo, xp: xp, clk: clk}
}

// TaskCompletion is the outcome of completing a task.
type TaskCompletion struct {
	Task             *domain.Task
	AlreadyCompleted bool
	XP               *domain.XPGrant
}

// Create validates and stores a new pending task.
func (s *TaskService) Create(ctx context.Context, userID int64, t domain.NewTask) (*domain.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(t.Title) > maxTitleLen {
		return nil, &ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", maxTitleLen)}
	}
	switch t.Priority {
	case "":
		t.Priority = domain.PriorityMedium
	case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
	default:
		return nil, &ValidationError{Field: "priority", Reason: "must be low, medium or high"}
	}
	return s.repo.CreateTask(ctx, userID, t, s.clk.Now())
}

// List returns the user's tasks, newest first, optionally filtered by status.
func (s *TaskService) List(ctx context.Context, userID int64, status string) ([]domain.Task, error) {
	switch status {
	case "", domain.TaskPending, domain.TaskCompleted:
	default:
		return nil, &ValidationError{Field: "status", Reason: "must be pending or completed"}
	}
	return s.repo.ListTasks(ctx, userID, status)
}

// Complete marks a pending task completed and awards XP. Completing an
// already completed task is a no-op without XP.
func (s *TaskService) Complete(ctx context.Context, userID, taskID int64) (*TaskCompletion, error) {
	task, err := s.repo.CompleteTask(ctx, userID, taskID, s.clk.Now())
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if task == nil {
		existing, err := s.repo.GetTask(ctx, userID, taskID)
		if err != nil {
			return nil, fmt.Errorf("get task: %w", err)
		}
		if existing == nil {
			return nil, ErrTaskNotFound
		}
		return &TaskCompletion{Task: existing, AlreadyCompleted: true}, nil
	}

	grant, err := s.xp.GrantXP(ctx, userID, domain.XPTaskCompleted)
	if err != nil {
		return &TaskCompletion{Task: task}, fmt.Errorf("grant xp: %w", err)
	}
	return &TaskCompletion{Task: task, XP: &grant}, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, userID, taskID int64) error {
	deleted, err := s.repo.DeleteTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrTaskNotFound
	}
	return nil
}
