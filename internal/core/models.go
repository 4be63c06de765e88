package core

import (
	"time"
)

// Provider is the tag of a supported target database engine.
type Provider string

const (
	ProviderPostgres  Provider = "postgres"
	ProviderMySQL     Provider = "mysql"
	ProviderMariaDB   Provider = "mariadb"
	ProviderSQLite    Provider = "sqlite"
	ProviderSQLServer Provider = "sqlserver"
)

// Providers lists every provider tag accepted by the resolver.
var Providers = []Provider{ProviderPostgres, ProviderMySQL, ProviderMariaDB, ProviderSQLite, ProviderSQLServer}

func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// Output types understood by the post-processor. Anything else is a chart type.
const (
	OutputTabular     = "tabular"
	OutputDescriptive = "descriptive"
)

// BlockedSentinel replaces both the SQL and the data of a query refused by the guardrails.
const BlockedSentinel = "Query blocked by guardrails"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type ApiKey struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	KeyPrefix   string     `json:"key_prefix"`
	KeyHash     string     `json:"-"`
	Description string     `json:"description"`
	IsActive    bool       `json:"is_active"`
	LastUsedAt  *time.Time `json:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ForeignKey points a column at the table and column it references.
type ForeignKey struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

type Column struct {
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	Nullable    bool         `json:"nullable"`
	PrimaryKey  bool         `json:"primaryKey"`
	ForeignKeys []ForeignKey `json:"foreignKeys"`
}

// SchemaSnapshot maps each table name to its columns in declaration order.
type SchemaSnapshot map[string][]Column

// DatabaseConnection is a registered target database. Secrets are kept encrypted.
type DatabaseConnection struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"user_id"`
	Provider            Provider  `json:"provider"`
	Host                string    `json:"host"`
	Port                int       `json:"port"`
	DBName              string    `json:"db_name"`
	Username            string    `json:"username"`
	PasswordEnc         string    `json:"-"`
	ConnectionStringEnc string    `json:"-"`
	SchemaJSON          string    `json:"-"`
	IsDeleted           bool      `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// StoredQuery is a natural-language question saved against a database.
type StoredQuery struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	DBID         int64     `json:"db_id"`
	Name         string    `json:"query_name"`
	Text         string    `json:"query_text"`
	OutputType   string    `json:"output_type"`
	GeneratedSQL string    `json:"generated_sql_query,omitempty"`
	Data         string    `json:"data,omitempty"`
	IsDeleted    bool      `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// QueryResult is the persisted outcome of one pipeline run.
type QueryResult struct {
	QueryID      int64
	GeneratedSQL string
	Data         string
}

type Dashboard struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DBID        *int64    `json:"db_id"`
	Tags        []string  `json:"tags"`
	IsDeleted   bool      `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Layout is the grid placement of a query on one dashboard.
type Layout struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// DefaultLayout is applied when a query is linked without an explicit position.
var DefaultLayout = Layout{X: 0, Y: 0, W: 6, H: 4}

type DashboardQuery struct {
	StoredQuery
	Layout Layout `json:"layout"`
}

// Record is one result row keyed by column name.
type Record map[string]interface{}

type ExecutionResult struct {
	Statement string   `json:"generated_sql_query"`
	Columns   []string `json:"columns"`
	Rows      []Record `json:"rows"`
}

type AuditLog struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	UserID       int64     `json:"user_id"`
	DatabaseID   int64     `json:"database_id"`
	QueryID      int64     `json:"query_id"`
	DurationMs   int64     `json:"duration_ms"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message"`
	Statement    string    `json:"statement"`
}
