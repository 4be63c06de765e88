package core

import "context"

// UserRepository stores accounts. Lookups return ErrNotFound for unknown users.
type UserRepository interface {
	Create(ctx context.Context, username, passwordHash string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// ApiKeyRepository stores hashed API keys. Plain keys are never persisted.
type ApiKeyRepository interface {
	Create(ctx context.Context, key *ApiKey) error
	ListByUser(ctx context.Context, userID int64) ([]ApiKey, error)
	GetActiveByHash(ctx context.Context, hash string) (*ApiKey, error)
	Revoke(ctx context.Context, userID, id int64) error
	Touch(ctx context.Context, id int64) error
}

// DatabaseRepository stores registered target databases. Reads skip soft-deleted rows.
type DatabaseRepository interface {
	Create(ctx context.Context, conn *DatabaseConnection) error
	GetByID(ctx context.Context, userID, id int64) (*DatabaseConnection, error)
	ListByUser(ctx context.Context, userID int64) ([]DatabaseConnection, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	Update(ctx context.Context, conn *DatabaseConnection) error
	// SoftDelete flags the database and every query that belongs to it.
	SoftDelete(ctx context.Context, userID, id int64) error
}

// QueryRepository stores natural-language queries and their last results.
type QueryRepository interface {
	Create(ctx context.Context, q *StoredQuery) error
	GetByID(ctx context.Context, userID, id int64) (*StoredQuery, error)
	Update(ctx context.Context, q *StoredQuery) error
	// SaveResults writes every result in one transaction, or none of them.
	SaveResults(ctx context.Context, results []QueryResult) error
	// SoftDelete flags the query and drops its dashboard links.
	SoftDelete(ctx context.Context, userID, id int64) error
	List(ctx context.Context, filter QueryFilter) ([]StoredQuery, error)
	Count(ctx context.Context, filter QueryFilter) (int, error)
}

// QueryFilter narrows query listings. Zero values mean no constraint.
type QueryFilter struct {
	UserID int64
	DBID   int64
	Search string
	Offset int
	Limit  int
}

// DashboardRepository stores dashboards, their tags and their query links.
type DashboardRepository interface {
	Create(ctx context.Context, d *Dashboard) error
	GetByID(ctx context.Context, userID, id int64) (*Dashboard, error)
	ListByUser(ctx context.Context, userID int64) ([]Dashboard, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	Update(ctx context.Context, d *Dashboard) error
	SoftDelete(ctx context.Context, userID, id int64) error
	// LinkQuery reports false when the link already existed.
	LinkQuery(ctx context.Context, dashboardID, queryID int64, layout Layout) (bool, error)
	UnlinkQuery(ctx context.Context, dashboardID, queryID int64) error
	UpdateLayouts(ctx context.Context, dashboardID int64, layouts map[int64]Layout) error
	// Queries returns the non-deleted queries linked to the dashboard.
	Queries(ctx context.Context, dashboardID int64) ([]DashboardQuery, error)
}

type AuditRepository interface {
	Create(ctx context.Context, entry *AuditLog) error
	Recent(ctx context.Context, userID int64, limit int) ([]AuditLog, error)
}
