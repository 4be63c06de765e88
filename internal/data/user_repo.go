package data

import (
	"context"
	"database/sql"

	"sqlinsight/internal/core"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create stores an active user. passwordHash is already bcrypt-hashed.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash string) (*core.User, error) {
	u := &core.User{Username: username, PasswordHash: passwordHash, IsActive: true, CreatedAt: now()}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at, is_active) VALUES (?, ?, ?, 1)`,
		u.Username, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return u, nil
}

// GetByUsername returns core.ErrNotFound for unknown names.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*core.User, error) {
	var u core.User
	var active int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, is_active, created_at FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &active, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	u.IsActive = active == 1
	return &u, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
