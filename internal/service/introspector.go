package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sqlinsight/internal/core"
	"sqlinsight/internal/logger"
)

// SchemaIntrospector reads table and column metadata from a target database.
type SchemaIntrospector struct {
	open    Opener
	timeout time.Duration
}

func NewSchemaIntrospector() *SchemaIntrospector {
	return &SchemaIntrospector{open: sql.Open, timeout: DefaultTargetTimeout}
}

// SetTimeout replaces the introspection deadline. Zero disables it.
func (s *SchemaIntrospector) SetTimeout(d time.Duration) *SchemaIntrospector {
	s.timeout = d
	return s
}

// Introspect connects to the URI and returns a snapshot of every base table.
// Unreachable targets yield a ConnectionError, catalog failures an IntrospectionError.
// The connection is released on every path.
func (s *SchemaIntrospector) Introspect(ctx context.Context, uri string) (core.SchemaSnapshot, error) {
	driverName, dsn, err := ParseConnectionString(uri)
	if err != nil {
		return nil, err
	}
	provider := providerOf(uri)

	db, err := s.open(driverName, dsn)
	if err != nil {
		return nil, &core.ConnectionError{Provider: string(provider), Err: err}
	}
	defer db.Close()

	ctx, cancel := boundedContext(ctx, s.timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, &core.ConnectionError{Provider: string(provider), Err: err}
	}

	var snapshot core.SchemaSnapshot
	if provider == core.ProviderSQLite {
		snapshot, err = readSQLiteCatalog(ctx, db)
	} else {
		snapshot, err = readCatalog(ctx, db, catalogs[provider])
	}
	if err != nil {
		return nil, &core.IntrospectionError{Err: err}
	}

	logger.Debug.Printf("Introspected %d tables from %s database", len(snapshot), provider)
	return snapshot, nil
}

// TestConnection reports whether the URI can be reached and introspected.
func (s *SchemaIntrospector) TestConnection(ctx context.Context, uri string) bool {
	if _, err := s.Introspect(ctx, uri); err != nil {
		logger.Info.Printf("Connection test failed: %v", err)
		return false
	}
	return true
}

// catalog holds the information_schema queries for one engine.
// columns: table, column, data type, is_nullable ('YES'/'NO').
// primaryKeys: table, column. foreignKeys: table, column, referenced table, referenced column.
type catalog struct {
	tables      string
	columns     string
	primaryKeys string
	foreignKeys string
}

var postgresCatalog = catalog{
	tables: `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name`,
	columns: `SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns
		WHERE table_schema = current_schema() ORDER BY table_name, ordinal_position`,
	primaryKeys: `SELECT kcu.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = current_schema()`,
	foreignKeys: `SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema()`,
}

var mysqlCatalog = catalog{
	tables: `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name`,
	columns: `SELECT table_name, column_name, column_type, is_nullable FROM information_schema.columns
		WHERE table_schema = DATABASE() ORDER BY table_name, ordinal_position`,
	primaryKeys: `SELECT table_name, column_name FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND constraint_name = 'PRIMARY'`,
	foreignKeys: `SELECT table_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND referenced_table_name IS NOT NULL`,
}

var sqlServerCatalog = catalog{
	tables: `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`,
	columns: `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, IS_NULLABLE FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = SCHEMA_NAME() ORDER BY TABLE_NAME, ORDINAL_POSITION`,
	primaryKeys: `SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = SCHEMA_NAME()`,
	foreignKeys: `SELECT tp.name, cp.name, tr.name, cr.name
		FROM sys.foreign_key_columns fkc
		JOIN sys.tables tp ON fkc.parent_object_id = tp.object_id
		JOIN sys.columns cp ON fkc.parent_object_id = cp.object_id AND fkc.parent_column_id = cp.column_id
		JOIN sys.tables tr ON fkc.referenced_object_id = tr.object_id
		JOIN sys.columns cr ON fkc.referenced_object_id = cr.object_id AND fkc.referenced_column_id = cr.column_id
		WHERE SCHEMA_NAME(tp.schema_id) = SCHEMA_NAME()`,
}

var catalogs = map[core.Provider]catalog{
	core.ProviderPostgres:  postgresCatalog,
	core.ProviderMySQL:     mysqlCatalog,
	core.ProviderMariaDB:   mysqlCatalog,
	core.ProviderSQLServer: sqlServerCatalog,
}

func readCatalog(ctx context.Context, db *sql.DB, c catalog) (core.SchemaSnapshot, error) {
	snapshot := core.SchemaSnapshot{}

	err := queryStrings(ctx, db, c.tables, func(v []string) {
		snapshot[v[0]] = []core.Column{}
	})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	err = queryStrings(ctx, db, c.columns, func(v []string) {
		cols, ok := snapshot[v[0]]
		if !ok {
			return // views and other non-table relations
		}
		snapshot[v[0]] = append(cols, core.Column{
			Name:        v[1],
			Type:        strings.ToUpper(strings.TrimSpace(v[2])),
			Nullable:    strings.EqualFold(v[3], "YES"),
			ForeignKeys: []core.ForeignKey{},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	err = queryStrings(ctx, db, c.primaryKeys, func(v []string) {
		if col := findColumn(snapshot, v[0], v[1]); col != nil {
			col.PrimaryKey = true
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list primary keys: %w", err)
	}

	err = queryStrings(ctx, db, c.foreignKeys, func(v []string) {
		if col := findColumn(snapshot, v[0], v[1]); col != nil {
			col.ForeignKeys = append(col.ForeignKeys, core.ForeignKey{Table: v[2], Column: v[3]})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list foreign keys: %w", err)
	}

	return snapshot, nil
}

func readSQLiteCatalog(ctx context.Context, db *sql.DB) (core.SchemaSnapshot, error) {
	var tables []string
	err := queryStrings(ctx, db,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
		func(v []string) { tables = append(tables, v[0]) })
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	snapshot := core.SchemaSnapshot{}
	for _, table := range tables {
		cols := []core.Column{}
		err := queryStrings(ctx, db,
			`SELECT name, type, "notnull", pk FROM pragma_table_info(?)`,
			func(v []string) {
				cols = append(cols, core.Column{
					Name:        v[0],
					Type:        strings.ToUpper(strings.TrimSpace(v[1])),
					Nullable:    v[2] == "0" && v[3] == "0",
					PrimaryKey:  v[3] != "0",
					ForeignKeys: []core.ForeignKey{},
				})
			}, table)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", table, err)
		}
		snapshot[table] = cols
	}

	for _, table := range tables {
		err := queryStrings(ctx, db,
			`SELECT "table", "from", "to" FROM pragma_foreign_key_list(?)`,
			func(v []string) {
				ref := v[2]
				if ref == "" {
					// REFERENCES without a column targets the primary key
					ref = primaryKeyOf(snapshot, v[0])
				}
				if col := findColumn(snapshot, table, v[1]); col != nil {
					col.ForeignKeys = append(col.ForeignKeys, core.ForeignKey{Table: v[0], Column: ref})
				}
			}, table)
		if err != nil {
			return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
		}
	}

	return snapshot, nil
}

// queryStrings runs a catalog query and hands each row to fn as strings. NULLs become "".
func queryStrings(ctx context.Context, db *sql.DB, query string, fn func([]string), args ...interface{}) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		out := make([]string, len(columns))
		for i, v := range values {
			out[i] = v.String
		}
		fn(out)
	}
	return rows.Err()
}

func findColumn(snapshot core.SchemaSnapshot, table, column string) *core.Column {
	cols := snapshot[table]
	for i := range cols {
		if cols[i].Name == column {
			return &cols[i]
		}
	}
	return nil
}

func primaryKeyOf(snapshot core.SchemaSnapshot, table string) string {
	for _, c := range snapshot[table] {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}
