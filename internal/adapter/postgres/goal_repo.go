package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prodmax/internal/domain"
)

var _ domain.GoalRepository = (*DB)(nil)

const goalColumns = "id, user_id, title, description, target_date, progress, status, created_at, updated_at"

func scanGoal(row scanner) (*domain.CareerGoal, error) {
	var (
		g      domain.CareerGoal
		target sql.NullTime
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &target, &g.Progress, &g.Status, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.TargetDate = timePtr(target)
	return &g, nil
}

// CreateGoal inserts an active goal at 0% progress.
func (d *DB) CreateGoal(ctx context.Context, userID int64, g domain.NewGoal, createdAt time.Time) (*domain.CareerGoal, error) {
	return scanGoal(d.sql.QueryRowContext(ctx,
		"INSERT INTO career_goals (user_id, title, description, target_date, progress, status, created_at, updated_at) VALUES ($1, $2, $3, $4, 0, 'active', $5, $5) RETURNING "+goalColumns,
		userID, g.Title, g.Description, g.TargetDate, createdAt.UTC(),
	))
}

// GetGoal retrieves a goal scoped to a user.
func (d *DB) GetGoal(ctx context.Context, userID, goalID int64) (*domain.CareerGoal, error) {
	return scanGoal(d.sql.QueryRowContext(ctx,
		"SELECT "+goalColumns+" FROM career_goals WHERE id = $1 AND user_id = $2", goalID, userID))
}

// ListGoals lists a user's goals, newest first; an empty status means all.
func (d *DB) ListGoals(ctx context.Context, userID int64, status string) ([]domain.CareerGoal, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+goalColumns+" FROM career_goals WHERE user_id = $1 AND ($2 = '' OR status = $2) ORDER BY created_at DESC, id DESC",
		userID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.CareerGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// SetGoalProgress stores progress under a row lock and returns the previous
// and updated rows.
func (d *DB) SetGoalProgress(ctx context.Context, userID, goalID int64, progress int, updatedAt time.Time) (*domain.CareerGoal, *domain.CareerGoal, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	prev, err := scanGoal(tx.QueryRowContext(ctx,
		"SELECT "+goalColumns+" FROM career_goals WHERE id = $1 AND user_id = $2 FOR UPDATE", goalID, userID))
	if err != nil || prev == nil {
		return nil, nil, err
	}
	updated, err := scanGoal(tx.QueryRowContext(ctx,
		"UPDATE career_goals SET progress = $2, updated_at = $3 WHERE id = $1 RETURNING "+goalColumns,
		goalID, progress, updatedAt.UTC()))
	if err != nil {
		return nil, nil, err
	}
	if updated == nil {
		return nil, nil, fmt.Errorf("goal %d vanished during update", goalID)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return prev, updated, nil
}

// CompleteGoal marks an active goal completed at 100%.
func (d *DB) CompleteGoal(ctx context.Context, userID, goalID int64, updatedAt time.Time) (*domain.CareerGoal, error) {
	return scanGoal(d.sql.QueryRowContext(ctx,
		"UPDATE career_goals SET status = 'completed', progress = 100, updated_at = $3 WHERE id = $1 AND user_id = $2 AND status = 'active' RETURNING "+goalColumns,
		goalID, userID, updatedAt.UTC()))
}
