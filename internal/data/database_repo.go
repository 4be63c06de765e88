package data

import (
	"context"
	"database/sql"

	"sqlinsight/internal/core"
)

type DatabaseRepo struct {
	db *sql.DB
}

func NewDatabaseRepo(db *sql.DB) *DatabaseRepo {
	return &DatabaseRepo{db: db}
}

const databaseColumns = `id, user_id, provider, host, port, db_name, username, password_enc,
	connection_string_enc, schema_json, is_deleted, created_at, updated_at`

func (r *DatabaseRepo) Create(ctx context.Context, c *core.DatabaseConnection) error {
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	res, err := r.db.ExecContext(ctx, `INSERT INTO databases
		(user_id, provider, host, port, db_name, username, password_enc, connection_string_enc, schema_json, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		c.UserID, string(c.Provider), c.Host, c.Port, c.DBName, c.Username, c.PasswordEnc,
		c.ConnectionStringEnc, c.SchemaJSON, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *DatabaseRepo) GetByID(ctx context.Context, userID, id int64) (*core.DatabaseConnection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+databaseColumns+` FROM databases
		WHERE id = ? AND user_id = ? AND is_deleted = 0`, id, userID)
	c, err := scanDatabase(row)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r *DatabaseRepo) ListByUser(ctx context.Context, userID int64) ([]core.DatabaseConnection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+databaseColumns+` FROM databases
		WHERE user_id = ? AND is_deleted = 0 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []core.DatabaseConnection{}
	for rows.Next() {
		c, err := scanDatabase(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

func (r *DatabaseRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM databases WHERE user_id = ? AND is_deleted = 0`, userID).Scan(&count)
	return count, err
}

// Update replaces credentials, connection string and schema, and bumps updated_at.
func (r *DatabaseRepo) Update(ctx context.Context, c *core.DatabaseConnection) error {
	c.UpdatedAt = now()
	res, err := r.db.ExecContext(ctx, `UPDATE databases SET provider=?, host=?, port=?, db_name=?, username=?,
		password_enc=?, connection_string_enc=?, schema_json=?, updated_at=?
		WHERE id=? AND user_id=? AND is_deleted=0`,
		string(c.Provider), c.Host, c.Port, c.DBName, c.Username, c.PasswordEnc,
		c.ConnectionStringEnc, c.SchemaJSON, c.UpdatedAt, c.ID, c.UserID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// SoftDelete flags the database and all of its queries in one transaction.
func (r *DatabaseRepo) SoftDelete(ctx context.Context, userID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := now()
	res, err := tx.ExecContext(ctx, `UPDATE databases SET is_deleted=1, updated_at=? WHERE id=? AND user_id=? AND is_deleted=0`, ts, id, userID)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE queries SET is_deleted=1, updated_at=? WHERE db_id=? AND is_deleted=0`, ts, id); err != nil {
		return err
	}
	return tx.Commit()
}

func scanDatabase(s scanner) (*core.DatabaseConnection, error) {
	var c core.DatabaseConnection
	var provider string
	var host, username, pwd, schema sql.NullString
	var port sql.NullInt64
	var isDeleted int
	err := s.Scan(&c.ID, &c.UserID, &provider, &host, &port, &c.DBName, &username, &pwd,
		&c.ConnectionStringEnc, &schema, &isDeleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Provider = core.Provider(provider)
	c.Host = host.String
	c.Port = int(port.Int64)
	c.Username = username.String
	c.PasswordEnc = pwd.String
	c.SchemaJSON = schema.String
	c.IsDeleted = isDeleted == 1
	return &c, nil
}
