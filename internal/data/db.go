package data

import (
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"sqlinsight/internal/core"
)

// InitDB opens the SQLite metadata store at path and runs migrations
func InitDB(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		is_active INTEGER DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		key_prefix TEXT NOT NULL,
		key_hash TEXT NOT NULL UNIQUE,
		description TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME,
		is_active INTEGER DEFAULT 1,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS databases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		provider TEXT NOT NULL,
		host TEXT,
		port INTEGER,
		db_name TEXT NOT NULL,
		username TEXT,
		password_enc TEXT,
		connection_string_enc TEXT NOT NULL,
		schema_json TEXT,
		is_deleted INTEGER DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		db_id INTEGER NOT NULL,
		query_name TEXT NOT NULL,
		query_text TEXT NOT NULL,
		output_type TEXT NOT NULL,
		generated_sql_query TEXT,
		data TEXT,
		is_deleted INTEGER DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		FOREIGN KEY(user_id) REFERENCES users(id),
		FOREIGN KEY(db_id) REFERENCES databases(id)
	);
	CREATE INDEX IF NOT EXISTS idx_queries_db ON queries(db_id, is_deleted);

	CREATE TABLE IF NOT EXISTS dashboards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		db_id INTEGER,
		name TEXT NOT NULL,
		description TEXT,
		is_deleted INTEGER DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		FOREIGN KEY(user_id) REFERENCES users(id),
		FOREIGN KEY(db_id) REFERENCES databases(id)
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS dashboard_tags (
		dashboard_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		PRIMARY KEY (dashboard_id, tag_id),
		FOREIGN KEY (dashboard_id) REFERENCES dashboards(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS dashboard_queries (
		dashboard_id INTEGER NOT NULL,
		query_id INTEGER NOT NULL,
		x INTEGER NOT NULL DEFAULT 0,
		y INTEGER NOT NULL DEFAULT 0,
		w INTEGER NOT NULL DEFAULT 6,
		h INTEGER NOT NULL DEFAULT 4,
		PRIMARY KEY (dashboard_id, query_id),
		FOREIGN KEY (dashboard_id) REFERENCES dashboards(id) ON DELETE CASCADE,
		FOREIGN KEY (query_id) REFERENCES queries(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		user_id INTEGER,
		database_id INTEGER,
		query_id INTEGER,
		duration_ms INTEGER,
		status TEXT,
		error_message TEXT,
		statement TEXT
	);
	`
	_, err := db.Exec(schema)
	return err
}

// notFound maps sql.ErrNoRows to core.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

// expectAffected returns core.ErrNotFound when an update touched nothing.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() time.Time {
	return time.Now().UTC()
}
