package data

import (
	"context"
	"database/sql"

	"sqlinsight/internal/core"
)

// AuditRepo records one row per statement sent to a target database.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Create(ctx context.Context, entry *core.AuditLog) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (timestamp, user_id, database_id, query_id, duration_ms, status, error_message, statement)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UTC(), entry.UserID, entry.DatabaseID, entry.QueryID,
		entry.DurationMs, entry.Status, entry.ErrorMessage, entry.Statement)
	if err != nil {
		return err
	}
	entry.ID, err = res.LastInsertId()
	return err
}

// Recent returns at most limit entries of one user, newest first.
func (r *AuditRepo) Recent(ctx context.Context, userID int64, limit int) ([]core.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, user_id, database_id, query_id, duration_ms, status, error_message, statement
		FROM audit_logs WHERE user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []core.AuditLog{}
	for rows.Next() {
		var (
			e         core.AuditLog
			errMsg    sql.NullString
			statement sql.NullString
		)
		err := rows.Scan(&e.ID, &e.Timestamp, &e.UserID, &e.DatabaseID, &e.QueryID,
			&e.DurationMs, &e.Status, &errMsg, &statement)
		if err != nil {
			return nil, err
		}
		e.ErrorMessage, e.Statement = errMsg.String, statement.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
