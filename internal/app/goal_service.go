package app

import (
	"context"
	"fmt"
	"strings"

	"prodmax/internal/clock"
	"prodmax/internal/domain"
)

// Recommendation kinds, by progress band.
const (
	RecommendStart    = "start"
	RecommendContinue = "continue"
	RecommendFinish   = "finish"
)

// GoalService encapsulates career goal use cases.
type GoalService struct {
	repo domain.GoalRepository
	xp   XPGranter
	clk  clock.Clock
}

// NewGoalService creates a GoalService backed by the given repository.
func NewGoalService(repo domain.GoalRepository, xp XPGranter, clk clock.Clock) *GoalService {
	return &GoalService{repo: repo, xp: xp, clk: clk}
}

// GoalUpdate is the outcome of a progress change or completion.
type GoalUpdate struct {
	Goal *domain.CareerGoal
	// Achieved is set when this update took the goal to 100%.
	Achieved bool
	XP       *domain.XPGrant
}

// Recommendation is a nudge for one active goal.
type Recommendation struct {
	Kind string
	Goal domain.CareerGoal
}

// Create validates and stores a new active goal at 0% progress.
func (s *GoalService) Create(ctx context.Context, userID int64, g domain.NewGoal) (*domain.CareerGoal, error) {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	return s.repo.CreateGoal(ctx, userID, g, s.clk.Now())
}

// List returns the user's goals, newest first, optionally filtered by status.
func (s *GoalService) List(ctx context.Context, userID int64, status string) ([]domain.CareerGoal, error) {
	return s.repo.ListGoals(ctx, userID, status)
}

// UpdateProgress clamps progress to [0, 100] and stores it. Crossing to 100%
// awards the goal bonus.
func (s *GoalService) UpdateProgress(ctx context.Context, userID, goalID int64, progress int) (*GoalUpdate, error) {
	progress = domain.ClampProgress(progress)
	prev, updated, err := s.repo.SetGoalProgress(ctx, userID, goalID, progress, s.clk.Now())
	if err != nil {
		return nil, fmt.Errorf("set goal progress: %w", err)
	}
	if updated == nil {
		return nil, ErrGoalNotFound
	}
	return s.award(ctx, userID, prev, updated)
}

// Complete marks an active goal completed at 100%. Completing a goal that is
// already completed is a no-op.
func (s *GoalService) Complete(ctx context.Context, userID, goalID int64) (*GoalUpdate, error) {
	existing, err := s.repo.GetGoal(ctx, userID, goalID)
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	if existing == nil {
		return nil, ErrGoalNotFound
	}
	updated, err := s.repo.CompleteGoal(ctx, userID, goalID, s.clk.Now())
	if err != nil {
		return nil, fmt.Errorf("complete goal: %w", err)
	}
	if updated == nil {
		return &GoalUpdate{Goal: existing}, nil
	}
	return s.award(ctx, userID, existing, updated)
}

func (s *GoalService) award(ctx context.Context, userID int64, prev, updated *domain.CareerGoal) (*GoalUpdate, error) {
	res := &GoalUpdate{Goal: updated}
	if updated.Progress < 100 || prev == nil || prev.Progress >= 100 {
		return res, nil
	}
	res.Achieved = true
	grant, err := s.xp.GrantXP(ctx, userID, domain.XPGoalAchieved)
	if err != nil {
		return res, fmt.Errorf("grant xp: %w", err)
	}
	res.XP = &grant
	return res, nil
}

// Recommendations returns one nudge per active goal.
func (s *GoalService) Recommendations(ctx context.Context, userID int64) ([]Recommendation, error) {
	goals, err := s.repo.ListGoals(ctx, userID, domain.GoalActive)
	if err != nil {
		return nil, err
	}
	out := make([]Recommendation, 0, len(goals))
	for _, g := range goals {
		kind := RecommendFinish
		switch {
		case g.Progress < 30:
			kind = RecommendStart
		case g.Progress < 70:
			kind = RecommendContinue
		}
		out = append(out, Recommendation{Kind: kind, Goal: g})
	}
	return out, nil
}
