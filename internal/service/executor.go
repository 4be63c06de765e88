package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sqlinsight/internal/core"
	"sqlinsight/internal/logger"
)

// DefaultRowLimit caps generated SELECT statements that carry no LIMIT of their own.
const DefaultRowLimit = 100

type QueryExecutor struct {
	open      Opener
	auditRepo core.AuditRepository
	rowLimit  int
	timeout   time.Duration
}

func NewQueryExecutor(auditRepo core.AuditRepository, rowLimit int) *QueryExecutor {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	return &QueryExecutor{
		open:      sql.Open,
		auditRepo: auditRepo,
		rowLimit:  rowLimit,
		timeout:   DefaultTargetTimeout,
	}
}

// SetTimeout replaces the per-statement deadline. Zero disables it.
func (e *QueryExecutor) SetTimeout(d time.Duration) *QueryExecutor {
	e.timeout = d
	return e
}

// ExecuteSQL runs a single generated statement against the target database and
// returns JSON-safe records. The statement is row-limited first. Any failure is
// a QueryExecutionError carrying the statement. The connection is always closed.
func (e *QueryExecutor) ExecuteSQL(ctx context.Context, uri, sqlText string) (result *core.ExecutionResult, err error) {
	startTime := time.Now()
	statement := sqlText

	defer func() {
		if e.auditRepo == nil {
			return
		}
		status := "SUCCESS"
		errMsg := ""
		if err != nil {
			status = "ERROR"
			errMsg = err.Error()
		}
		info := core.AuditFrom(ctx)
		// A cancelled request still gets its audit row.
		if auditErr := e.auditRepo.Create(context.WithoutCancel(ctx), &core.AuditLog{
			Timestamp:    startTime,
			UserID:       info.UserID,
			DatabaseID:   info.DatabaseID,
			QueryID:      info.QueryID,
			DurationMs:   time.Since(startTime).Milliseconds(),
			Status:       status,
			ErrorMessage: errMsg,
			Statement:    statement,
		}); auditErr != nil {
			logger.Error.Printf("Failed to write audit log: %v", auditErr)
		}
	}()

	driverName, dsn, err := ParseConnectionString(uri)
	if err != nil {
		return nil, &core.QueryExecutionError{Statement: statement, Err: err}
	}
	statement = applyRowLimit(providerOf(uri), sqlText, e.rowLimit)

	db, err := e.open(driverName, dsn)
	if err != nil {
		return nil, &core.QueryExecutionError{Statement: statement, Err: fmt.Errorf("open %s connection: %w", driverName, err)}
	}
	defer db.Close()

	ctxTimeout, cancel := boundedContext(ctx, e.timeout)
	defer cancel()

	if err := db.PingContext(ctxTimeout); err != nil {
		return nil, &core.QueryExecutionError{Statement: statement, Err: fmt.Errorf("ping database: %w", err)}
	}

	rows, err := db.QueryContext(ctxTimeout, statement)
	if err != nil {
		return nil, &core.QueryExecutionError{Statement: statement, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &core.QueryExecutionError{Statement: statement, Err: err}
	}
	dbTypes := make([]string, len(columns))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}

	records := []core.Record{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range columns {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, &core.QueryExecutionError{Statement: statement, Err: err}
		}

		record := make(core.Record, len(columns))
		for i, col := range columns {
			record[col] = ConvertValue(values[i], dbTypes[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.QueryExecutionError{Statement: statement, Err: err}
	}

	return &core.ExecutionResult{
		Statement: statement,
		Columns:   columns,
		Rows:      records,
	}, nil
}

var limitClause = regexp.MustCompile(`\blimit\b`)

// LimitQuery appends "LIMIT n;" to a SELECT statement that has no LIMIT yet.
// Anything else is returned unchanged.
func LimitQuery(sqlText string, n int) string {
	trimmed := strings.TrimSpace(sqlText)
	lowered := strings.ToLower(trimmed)
	if !strings.HasPrefix(lowered, "select") || limitClause.MatchString(lowered) {
		return sqlText
	}
	body := strings.TrimSpace(strings.TrimRight(trimmed, "; \t\r\n"))
	return fmt.Sprintf("%s LIMIT %d;", body, n)
}

var (
	topClause   = regexp.MustCompile(`(?i)\btop\s*\(?\s*\d+`)
	selectHead  = regexp.MustCompile(`(?i)^select(\s+(distinct|all))?\s+`)
	fetchClause = regexp.MustCompile(`(?i)\bfetch\s+(first|next)\b`)
)

// applyRowLimit is LimitQuery with SQL Server's TOP syntax, which has no LIMIT.
func applyRowLimit(provider core.Provider, sqlText string, n int) string {
	if provider != core.ProviderSQLServer {
		return LimitQuery(sqlText, n)
	}
	trimmed := strings.TrimSpace(sqlText)
	if !selectHead.MatchString(trimmed) || topClause.MatchString(trimmed) || fetchClause.MatchString(trimmed) {
		return sqlText
	}
	head := selectHead.FindString(trimmed)
	return fmt.Sprintf("%sTOP %d %s", head, n, trimmed[len(head):])
}

// ConvertValue makes a scanned value JSON-safe. Temporal values become ISO-8601
// strings, fixed-point numerics become float64 and other byte slices become
// text. Already converted values pass through unchanged.
func ConvertValue(v interface{}, databaseType string) interface{} {
	switch x := v.(type) {
	case time.Time:
		if databaseType == "DATE" {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339Nano)
	case []byte:
		if isDecimalType(databaseType) {
			if f, ok := decimalToFloat(string(x)); ok {
				return f
			}
		}
		return string(x)
	case string:
		if isDecimalType(databaseType) {
			if f, ok := decimalToFloat(x); ok {
				return f
			}
		}
		return x
	case decimal.Decimal:
		f, _ := x.Float64()
		return f
	}
	return v
}

func isDecimalType(t string) bool {
	switch t {
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY", "NEWDECIMAL":
		return true
	}
	return false
}

func decimalToFloat(s string) (float64, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
