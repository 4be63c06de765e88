package data

import (
	"context"
	"database/sql"

	"sqlinsight/internal/core"
)

const apiKeyColumns = `id, user_id, key_prefix, key_hash, description, created_at, last_used_at, is_active`

type ApiKeyRepo struct {
	db *sql.DB
}

func NewApiKeyRepo(db *sql.DB) *ApiKeyRepo {
	return &ApiKeyRepo{db: db}
}

func (r *ApiKeyRepo) Create(ctx context.Context, key *core.ApiKey) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (user_id, key_prefix, key_hash, description, created_at, is_active) VALUES (?, ?, ?, ?, ?, ?)`,
		key.UserID, key.KeyPrefix, key.KeyHash, key.Description, key.CreatedAt, boolToInt(key.IsActive))
	if err != nil {
		return err
	}
	key.ID, err = res.LastInsertId()
	return err
}

// ListByUser returns the user's keys, revoked ones included, newest first.
func (r *ApiKeyRepo) ListByUser(ctx context.Context, userID int64) ([]core.ApiKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []core.ApiKey{}
	for rows.Next() {
		k, err := scanApiKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

// GetActiveByHash returns core.ErrNotFound when no active key has this hash.
func (r *ApiKeyRepo) GetActiveByHash(ctx context.Context, hash string) (*core.ApiKey, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = ? AND is_active = 1`, hash)
	k, err := scanApiKey(row)
	if err != nil {
		return nil, notFound(err)
	}
	return k, nil
}

// Revoke deactivates one of the user's active keys.
func (r *ApiKeyRepo) Revoke(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET is_active = 0 WHERE id = ? AND user_id = ? AND is_active = 1`, id, userID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *ApiKeyRepo) Touch(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, now(), id)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanApiKey(s scanner) (*core.ApiKey, error) {
	var (
		k        core.ApiKey
		desc     sql.NullString
		lastUsed sql.NullTime
		active   int
	)
	if err := s.Scan(&k.ID, &k.UserID, &k.KeyPrefix, &k.KeyHash, &desc, &k.CreatedAt, &lastUsed, &active); err != nil {
		return nil, err
	}
	k.Description = desc.String
	if lastUsed.Valid {
		k.LastUsedAt = &lastUsed.Time
	}
	k.IsActive = active == 1
	return &k, nil
}
