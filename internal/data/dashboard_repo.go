package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sqlinsight/internal/core"
)

type DashboardRepo struct {
	db *sql.DB
}

func NewDashboardRepo(db *sql.DB) *DashboardRepo {
	return &DashboardRepo{db: db}
}

const dashboardColumns = `id, user_id, db_id, name, description, is_deleted, created_at, updated_at`

// Create stores the dashboard and its tags. A live dashboard with the same
// name for the same owner is a conflict.
func (r *DashboardRepo) Create(ctx context.Context, d *core.Dashboard) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := nameTaken(ctx, tx, d.UserID, 0, d.Name); err != nil {
		return err
	}

	d.CreatedAt = now()
	d.UpdatedAt = d.CreatedAt
	res, err := tx.ExecContext(ctx, `INSERT INTO dashboards (user_id, db_id, name, description, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`, d.UserID, d.DBID, d.Name, d.Description, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return err
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if err := setTags(ctx, tx, d.ID, d.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *DashboardRepo) GetByID(ctx context.Context, userID, id int64) (*core.Dashboard, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+dashboardColumns+` FROM dashboards
		WHERE id = ? AND user_id = ? AND is_deleted = 0`, id, userID)
	d, err := scanDashboard(row)
	if err != nil {
		return nil, notFound(err)
	}
	if d.Tags, err = r.tags(ctx, d.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DashboardRepo) ListByUser(ctx context.Context, userID int64) ([]core.Dashboard, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+dashboardColumns+` FROM dashboards
		WHERE user_id = ? AND is_deleted = 0 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	list := []core.Dashboard{}
	for rows.Next() {
		d, err := scanDashboard(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, *d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range list {
		if list[i].Tags, err = r.tags(ctx, list[i].ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *DashboardRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dashboards WHERE user_id = ? AND is_deleted = 0`, userID).Scan(&count)
	return count, err
}

func (r *DashboardRepo) Update(ctx context.Context, d *core.Dashboard) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := nameTaken(ctx, tx, d.UserID, d.ID, d.Name); err != nil {
		return err
	}

	d.UpdatedAt = now()
	res, err := tx.ExecContext(ctx, `UPDATE dashboards SET db_id=?, name=?, description=?, updated_at=?
		WHERE id=? AND user_id=? AND is_deleted=0`, d.DBID, d.Name, d.Description, d.UpdatedAt, d.ID, d.UserID)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dashboard_tags WHERE dashboard_id=?`, d.ID); err != nil {
		return err
	}
	if err := setTags(ctx, tx, d.ID, d.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *DashboardRepo) SoftDelete(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE dashboards SET is_deleted=1, updated_at=? WHERE id=? AND user_id=? AND is_deleted=0`,
		now(), id, userID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *DashboardRepo) LinkQuery(ctx context.Context, dashboardID, queryID int64, l core.Layout) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO dashboard_queries (dashboard_id, query_id, x, y, w, h)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(dashboard_id, query_id) DO NOTHING`,
		dashboardID, queryID, l.X, l.Y, l.W, l.H)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *DashboardRepo) UnlinkQuery(ctx context.Context, dashboardID, queryID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dashboard_queries WHERE dashboard_id=? AND query_id=?`, dashboardID, queryID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// UpdateLayouts changes positions on this dashboard only. Every query must be linked.
func (r *DashboardRepo) UpdateLayouts(ctx context.Context, dashboardID int64, layouts map[int64]core.Layout) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for queryID, l := range layouts {
		res, err := tx.ExecContext(ctx, `UPDATE dashboard_queries SET x=?, y=?, w=?, h=? WHERE dashboard_id=? AND query_id=?`,
			l.X, l.Y, l.W, l.H, dashboardID, queryID)
		if err != nil {
			return err
		}
		if err := expectAffected(res); err != nil {
			return fmt.Errorf("query %d is not on dashboard %d: %w", queryID, dashboardID, err)
		}
	}
	return tx.Commit()
}

func (r *DashboardRepo) Queries(ctx context.Context, dashboardID int64) ([]core.DashboardQuery, error) {
	cols := make([]string, 0, 11)
	for _, c := range strings.Split(queryColumns, ",") {
		cols = append(cols, "q."+strings.TrimSpace(c))
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+strings.Join(cols, ", ")+`, dq.x, dq.y, dq.w, dq.h
		FROM dashboard_queries dq
		JOIN queries q ON q.id = dq.query_id
		WHERE dq.dashboard_id = ? AND q.is_deleted = 0
		ORDER BY dq.y, dq.x, q.id`, dashboardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []core.DashboardQuery
	for rows.Next() {
		var dq core.DashboardQuery
		var generated, data sql.NullString
		var isDeleted int
		if err := rows.Scan(&dq.ID, &dq.UserID, &dq.DBID, &dq.Name, &dq.Text, &dq.OutputType, &generated, &data,
			&isDeleted, &dq.CreatedAt, &dq.UpdatedAt, &dq.Layout.X, &dq.Layout.Y, &dq.Layout.W, &dq.Layout.H); err != nil {
			return nil, err
		}
		dq.GeneratedSQL = generated.String
		dq.Data = data.String
		list = append(list, dq)
	}
	return list, rows.Err()
}

func (r *DashboardRepo) tags(ctx context.Context, dashboardID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT t.name FROM tags t
		JOIN dashboard_tags dt ON dt.tag_id = t.id WHERE dt.dashboard_id = ? ORDER BY t.name`, dashboardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

func nameTaken(ctx context.Context, tx *sql.Tx, userID, selfID int64, name string) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM dashboards
		WHERE user_id = ? AND name = ? AND id != ? AND is_deleted = 0`, userID, name, selfID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("dashboard %q: %w", name, core.ErrConflict)
	}
	return nil
}

// setTags creates missing tags and links them to the dashboard.
func setTags(ctx context.Context, tx *sql.Tx, dashboardID int64, tags []string) error {
	for _, name := range tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO dashboard_tags (dashboard_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ? ON CONFLICT DO NOTHING`, dashboardID, name); err != nil {
			return err
		}
	}
	return nil
}

func scanDashboard(s scanner) (*core.Dashboard, error) {
	var d core.Dashboard
	var dbID sql.NullInt64
	var desc sql.NullString
	var isDeleted int
	if err := s.Scan(&d.ID, &d.UserID, &dbID, &d.Name, &desc, &isDeleted, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if dbID.Valid {
		id := dbID.Int64
		d.DBID = &id
	}
	d.Description = desc.String
	d.IsDeleted = isDeleted == 1
	d.Tags = []string{}
	return &d, nil
}
