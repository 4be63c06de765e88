package service

import (
	"context"
	"database/sql"
	"time"

	// Target database drivers.
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Opener opens a target database handle. Swapped out in tests.
type Opener func(driverName, dsn string) (*sql.DB, error)

// DefaultTargetTimeout bounds one connect-and-run against a target database.
const DefaultTargetTimeout = 30 * time.Second

// boundedContext applies d to ctx. A zero or negative d leaves only the
// caller's own cancellation.
func boundedContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
