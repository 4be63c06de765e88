package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sqlinsight/internal/core"
	"sqlinsight/internal/logger"
)

// ErrNoDatabase is returned when running a dashboard that has no database attached.
var ErrNoDatabase = errors.New("dashboard has no database")

// QueryRun reports how one query of a dashboard run went.
type QueryRun struct {
	QueryID      int64  `json:"query_id"`
	GeneratedSQL string `json:"generated_sql_query,omitempty"`
	Blocked      bool   `json:"blocked"`
	Error        string `json:"error,omitempty"`
}

// DashboardRunner re-runs every query on a dashboard concurrently and
// commits the successful results together.
type DashboardRunner struct {
	dashboards  core.DashboardRepository
	queries     core.QueryRepository
	databases   *DatabaseService
	pipeline    *QueryPipeline
	concurrency int
}

func NewDashboardRunner(dashboards core.DashboardRepository, queries core.QueryRepository, databases *DatabaseService, pipeline *QueryPipeline, concurrency int) *DashboardRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DashboardRunner{
		dashboards:  dashboards,
		queries:     queries,
		databases:   databases,
		pipeline:    pipeline,
		concurrency: concurrency,
	}
}

// Run loads the dashboard's queries, schema and connection string once, runs
// the queries with bounded concurrency and stores every success in a single
// transaction. A failing query is logged and left untouched; it never stops
// the others. If the commit fails nothing is stored.
func (r *DashboardRunner) Run(ctx context.Context, userID, dashboardID int64) ([]QueryRun, error) {
	d, err := r.dashboards.GetByID(ctx, userID, dashboardID)
	if err != nil {
		return nil, err
	}
	if d.DBID == nil {
		return nil, ErrNoDatabase
	}

	linked, err := r.dashboards.Queries(ctx, dashboardID)
	if err != nil {
		return nil, err
	}
	if len(linked) == 0 {
		logger.Warn.Printf("Dashboard %d has no queries to run", dashboardID)
		return []QueryRun{}, nil
	}

	target, err := r.databases.Target(ctx, userID, *d.DBID)
	if err != nil {
		return nil, err
	}

	runs := make([]QueryRun, len(linked))
	results := make([]*core.QueryResult, len(linked))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, q := range linked {
		i, q := i, q
		g.Go(func() error {
			runs[i] = QueryRun{QueryID: q.ID}
			qctx := core.WithAudit(ctx, core.AuditInfo{UserID: userID, DatabaseID: target.DatabaseID, QueryID: q.ID})

			outcome, err := r.pipeline.Run(qctx, target, q.Text, q.OutputType)
			if err != nil {
				logger.Error.Printf("Dashboard %d: query %d failed: %v", dashboardID, q.ID, err)
				runs[i].Error = err.Error()
				if outcome != nil {
					runs[i].GeneratedSQL = outcome.GeneratedSQL
				}
				return nil
			}
			data, err := outcome.Serialize()
			if err != nil {
				logger.Error.Printf("Dashboard %d: query %d: %v", dashboardID, q.ID, err)
				runs[i].Error = err.Error()
				return nil
			}

			runs[i].GeneratedSQL = outcome.GeneratedSQL
			runs[i].Blocked = outcome.Blocked
			results[i] = &core.QueryResult{QueryID: q.ID, GeneratedSQL: outcome.GeneratedSQL, Data: data}
			return nil
		})
	}
	_ = g.Wait()

	batch := make([]core.QueryResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			batch = append(batch, *res)
		}
	}
	if len(batch) > 0 {
		if err := r.queries.SaveResults(ctx, batch); err != nil {
			return runs, fmt.Errorf("commit dashboard results: %w", err)
		}
	}

	logger.Info.Printf("Dashboard %d run: %d of %d queries stored", dashboardID, len(batch), len(linked))
	return runs, nil
}
