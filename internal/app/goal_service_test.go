package app_test

import (
	"context"
	"errors"
	"testing"

	"prodmax/internal/adapter/memory"
	"prodmax/internal/app"
	"prodmax/internal/clock"
	"prodmax/internal/domain"
)

func TestGoalService_ProgressAwardsOnce(t *testing.T) {
	db := memory.New()
	xp := &mockXP{}
	svc := app.NewGoalService(db, xp, clock.NewFake(epoch))
	ctx := context.Background()

	g, err := svc.Create(ctx, 1, domain.NewGoal{Title: "Senior engineer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upd, err := svc.UpdateProgress(ctx, 1, g.ID, -10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.Goal.Progress != 0 || upd.Achieved {
		t.Errorf("expected clamp to 0, got %+v", upd.Goal)
	}

	upd, _ = svc.UpdateProgress(ctx, 1, g.ID, 150)
	if upd.Goal.Progress != 100 || !upd.Achieved || upd.XP == nil {
		t.Errorf("expected achievement at 100%%, got %+v", upd)
	}

	upd, _ = svc.UpdateProgress(ctx, 1, g.ID, 100)
	if upd.Achieved {
		t.Error("staying at 100% must not award again")
	}

	done, err := svc.Complete(ctx, 1, g.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Achieved || done.Goal.Status != domain.GoalCompleted {
		t.Errorf("completing a goal already at 100%% must not award: %+v", done)
	}
	if xp.total() != domain.XPGoalAchieved {
		t.Errorf("expected %d xp total, got %d", domain.XPGoalAchieved, xp.total())
	}

	again, err := svc.Complete(ctx, 1, g.ID)
	if err != nil || again.Achieved {
		t.Errorf("second complete must be a no-op: %+v, %v", again, err)
	}
}

func TestGoalService_CompleteAwards(t *testing.T) {
	db := memory.New()
	xp := &mockXP{}
	svc := app.NewGoalService(db, xp, clock.NewFake(epoch))
	ctx := context.Background()

	g, _ := svc.Create(ctx, 1, domain.NewGoal{Title: "Ship v2"})
	_, _ = svc.UpdateProgress(ctx, 1, g.ID, 60)

	res, err := svc.Complete(ctx, 1, g.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Achieved || xp.total() != domain.XPGoalAchieved {
		t.Errorf("expected award on completion, got %+v (xp %d)", res, xp.total())
	}

	if _, err := svc.Complete(ctx, 2, g.ID); !errors.Is(err, app.ErrGoalNotFound) {
		t.Errorf("expected ErrGoalNotFound for other user, got %v", err)
	}
	if _, err := svc.UpdateProgress(ctx, 1, 999, 10); !errors.Is(err, app.ErrGoalNotFound) {
		t.Errorf("expected ErrGoalNotFound, got %v", err)
	}
	if _, err := svc.Create(ctx, 1, domain.NewGoal{Title: " "}); err == nil {
		t.Error("expected validation error for blank title")
	}
}

func TestGoalService_Recommendations(t *testing.T) {
	db := memory.New()
	svc := app.NewGoalService(db, &mockXP{}, clock.NewFake(epoch))
	ctx := context.Background()

	want := map[int]string{10: app.RecommendStart, 50: app.RecommendContinue, 90: app.RecommendFinish}
	for p := range want {
		g, _ := svc.Create(ctx, 1, domain.NewGoal{Title: "goal"})
		_, _ = svc.UpdateProgress(ctx, 1, g.ID, p)
	}

	recs, err := svc.Recommendations(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Kind != want[r.Goal.Progress] {
			t.Errorf("progress %d: expected %s, got %s", r.Goal.Progress, want[r.Goal.Progress], r.Kind)
		}
	}
}
