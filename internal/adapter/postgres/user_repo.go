// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"prodmax/internal/domain"
)

var _ domain.UserRepository = (*DB)(nil)

const userColumns = "id, max_user_id, username, xp, level, created_at, updated_at"

func scanUser(row scanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.MaxUserID, &u.Username, &u.XP, &u.Level, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByMaxID retrieves a user by messenger id.
func (d *DB) GetByMaxID(ctx context.Context, maxUserID int64) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE max_user_id = $1", maxUserID))
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// CreateUser creates a new user at level 1.
func (d *DB) CreateUser(ctx context.Context, maxUserID int64, username string) (*domain.User, error) {
	now := time.Now().UTC()
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"INSERT INTO users (max_user_id, username, xp, level, created_at, updated_at) VALUES ($1, $2, 0, 1, $3, $3) RETURNING "+userColumns,
		maxUserID, username, now,
	))
	if err == nil && u == nil {
		err = sql.ErrNoRows
	}
	return u, err
}

// AddXP atomically adds amount to the user's XP and recomputes the level in
// the same statement.
func (d *DB) AddXP(ctx context.Context, userID int64, amount int) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		`UPDATE users SET xp = xp + $2, level = (xp + $2) / 100 + 1, updated_at = $3
		 WHERE id = $1 RETURNING `+userColumns,
		userID, amount, time.Now().UTC(),
	))
}
