package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"prodmax/internal/domain"
)

var _ domain.TaskRepository = (*DB)(nil)

const taskColumns = "id, user_id, title, description, status, priority, due_date, created_at, completed_at"

type scanner interface{ Scan(...any) error }

func scanTask(row scanner) (*domain.Task, error) {
	var (
		t              domain.Task
		due, completed sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.Priority, &due, &t.CreatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.DueDate = timePtr(due)
	t.CompletedAt = timePtr(completed)
	return &t, nil
}

// CreateTask inserts a pending task.
func (d *DB) CreateTask(ctx context.Context, userID int64, t domain.NewTask, createdAt time.Time) (*domain.Task, error) {
	return scanTask(d.sql.QueryRowContext(ctx,
		"INSERT INTO tasks (user_id, title, description, status, priority, due_date, created_at) VALUES ($1, $2, $3, 'pending', $4, $5, $6) RETURNING "+taskColumns,
		userID, t.Title, t.Description, t.Priority, t.DueDate, createdAt.UTC(),
	))
}

// GetTask retrieves a task scoped to a user.
func (d *DB) GetTask(ctx context.Context, userID, taskID int64) (*domain.Task, error) {
	return scanTask(d.sql.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND user_id = $2", taskID, userID))
}

// ListTasks returns a user's tasks, newest first; an empty status means all.
func (d *DB) ListTasks(ctx context.Context, userID int64, status string) ([]domain.Task, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = $1 AND ($2 = '' OR status = $2) ORDER BY created_at DESC, id DESC",
		userID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CompleteTask flips a pending task to completed.
func (d *DB) CompleteTask(ctx context.Context, userID, taskID int64, completedAt time.Time) (*domain.Task, error) {
	return scanTask(d.sql.QueryRowContext(ctx,
		"UPDATE tasks SET status = 'completed', completed_at = $3 WHERE id = $1 AND user_id = $2 AND status = 'pending' RETURNING "+taskColumns,
		taskID, userID, completedAt.UTC(),
	))
}

// DeleteTask removes a task scoped to a user.
func (d *DB) DeleteTask(ctx context.Context, userID, taskID int64) (bool, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1 AND user_id = $2", taskID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TaskStats counts a user's tasks by status.
func (d *DB) TaskStats(ctx context.Context, userID int64) (domain.TaskStats, error) {
	var st domain.TaskStats
	err := d.sql.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COUNT(*) FILTER (WHERE status = 'pending')
		 FROM tasks WHERE user_id = $1`, userID,
	).Scan(&st.Total, &st.Completed, &st.Pending)
	return st, err
}
