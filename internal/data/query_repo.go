package data

import (
	"context"
	"database/sql"
	"strings"

	"sqlinsight/internal/core"
)

type QueryRepo struct {
	db *sql.DB
}

func NewQueryRepo(db *sql.DB) *QueryRepo {
	return &QueryRepo{db: db}
}

const queryColumns = `id, user_id, db_id, query_name, query_text, output_type, generated_sql_query, data, is_deleted, created_at, updated_at`

func (r *QueryRepo) Create(ctx context.Context, q *core.StoredQuery) error {
	q.CreatedAt = now()
	q.UpdatedAt = q.CreatedAt
	res, err := r.db.ExecContext(ctx, `INSERT INTO queries
		(user_id, db_id, query_name, query_text, output_type, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		q.UserID, q.DBID, q.Name, q.Text, q.OutputType, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	q.ID = id
	return nil
}

func (r *QueryRepo) GetByID(ctx context.Context, userID, id int64) (*core.StoredQuery, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+queryColumns+` FROM queries
		WHERE id = ? AND user_id = ? AND is_deleted = 0`, id, userID)
	q, err := scanQuery(row)
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

func (r *QueryRepo) Update(ctx context.Context, q *core.StoredQuery) error {
	q.UpdatedAt = now()
	res, err := r.db.ExecContext(ctx, `UPDATE queries SET query_name=?, query_text=?, output_type=?, updated_at=?
		WHERE id=? AND user_id=? AND is_deleted=0`,
		q.Name, q.Text, q.OutputType, q.UpdatedAt, q.ID, q.UserID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// SaveResults stores every result in a single transaction. Any failure,
// including the commit, rolls the whole batch back.
func (r *QueryRepo) SaveResults(ctx context.Context, results []core.QueryResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := now()
	for _, res := range results {
		if _, err := tx.ExecContext(ctx, `UPDATE queries SET generated_sql_query=?, data=?, updated_at=? WHERE id=? AND is_deleted=0`,
			res.GeneratedSQL, res.Data, ts, res.QueryID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SoftDelete flags the query and removes it from every dashboard.
func (r *QueryRepo) SoftDelete(ctx context.Context, userID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE queries SET is_deleted=1, updated_at=? WHERE id=? AND user_id=? AND is_deleted=0`, now(), id, userID)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dashboard_queries WHERE query_id=?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *QueryRepo) List(ctx context.Context, f core.QueryFilter) ([]core.StoredQuery, error) {
	where, args := queryWhere(f)
	stmt := `SELECT ` + queryColumns + ` FROM queries WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		stmt += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []core.StoredQuery{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

func (r *QueryRepo) Count(ctx context.Context, f core.QueryFilter) (int, error) {
	where, args := queryWhere(f)
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queries WHERE `+where, args...).Scan(&count)
	return count, err
}

func queryWhere(f core.QueryFilter) (string, []interface{}) {
	conds := []string{"is_deleted = 0"}
	var args []interface{}
	if f.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.DBID != 0 {
		conds = append(conds, "db_id = ?")
		args = append(args, f.DBID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "(query_name LIKE ? OR query_text LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	return strings.Join(conds, " AND "), args
}

func scanQuery(s scanner) (*core.StoredQuery, error) {
	var q core.StoredQuery
	var generated, data sql.NullString
	var isDeleted int
	err := s.Scan(&q.ID, &q.UserID, &q.DBID, &q.Name, &q.Text, &q.OutputType, &generated, &data,
		&isDeleted, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.GeneratedSQL = generated.String
	q.Data = data.String
	q.IsDeleted = isDeleted == 1
	return &q, nil
}
