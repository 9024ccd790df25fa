package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			max_user_id BIGINT UNIQUE NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			xp INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','completed')),
			priority TEXT NOT NULL DEFAULT 'medium' CHECK(priority IN ('low','medium','high')),
			due_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		);`,
		"CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);",
		"CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);",
		`CREATE TABLE IF NOT EXISTS pomodoro_sessions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			task_id BIGINT REFERENCES tasks(id) ON DELETE SET NULL,
			duration_minutes INTEGER NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		);`,
		"CREATE INDEX IF NOT EXISTS idx_pomodoro_sessions_user_id ON pomodoro_sessions(user_id);",
		`CREATE TABLE IF NOT EXISTS habits (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			current_streak INTEGER NOT NULL DEFAULT 0,
			best_streak INTEGER NOT NULL DEFAULT 0,
			reminder_time TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_habits_user_id ON habits(user_id);",
		`CREATE TABLE IF NOT EXISTS habit_tracking (
			id BIGSERIAL PRIMARY KEY,
			habit_id BIGINT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			date DATE NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE(habit_id, date)
		);`,
		"CREATE INDEX IF NOT EXISTS idx_habit_tracking_habit_date ON habit_tracking(habit_id, date);",
		`CREATE TABLE IF NOT EXISTS career_goals (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			target_date TIMESTAMPTZ,
			progress INTEGER NOT NULL DEFAULT 0 CHECK(progress BETWEEN 0 AND 100),
			status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active','completed')),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_career_goals_user_id ON career_goals(user_id);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Early deployments only recorded completions; aborted sessions were
	// indistinguishable from running ones.
	alterStmts := []string{
		"ALTER TABLE pomodoro_sessions ADD COLUMN IF NOT EXISTS aborted_at TIMESTAMPTZ;",
		"CREATE INDEX IF NOT EXISTS idx_pomodoro_sessions_open ON pomodoro_sessions(id) WHERE completed_at IS NULL AND aborted_at IS NULL;",
	}
	for _, stmt := range alterStmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
