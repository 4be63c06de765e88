package service

import (
	"context"
	"errors"
	"fmt"

	"sqlinsight/internal/core"
	"sqlinsight/internal/logger"
)

// QueryService manages stored questions and runs them through the pipeline.
type QueryService struct {
	queries   core.QueryRepository
	databases *DatabaseService
	pipeline  *QueryPipeline
	post      *PostProcessor
}

func NewQueryService(queries core.QueryRepository, databases *DatabaseService, pipeline *QueryPipeline, post *PostProcessor) *QueryService {
	return &QueryService{queries: queries, databases: databases, pipeline: pipeline, post: post}
}

// Run answers a question against a database without storing anything.
func (s *QueryService) Run(ctx context.Context, userID, dbID int64, question, outputType string) (*Outcome, error) {
	target, err := s.databases.Target(ctx, userID, dbID)
	if err != nil {
		return nil, err
	}
	ctx = core.WithAudit(ctx, core.AuditInfo{UserID: userID, DatabaseID: dbID})
	return s.pipeline.Run(ctx, target, question, outputType)
}

func (s *QueryService) Save(ctx context.Context, q *core.StoredQuery) error {
	if _, err := s.databases.Target(ctx, q.UserID, q.DBID); err != nil {
		return err
	}
	return s.queries.Create(ctx, q)
}

// Update changes name, text or output type. The stored result is left as is
// until the query is executed again.
func (s *QueryService) Update(ctx context.Context, q *core.StoredQuery) (*core.StoredQuery, error) {
	existing, err := s.queries.GetByID(ctx, q.UserID, q.ID)
	if err != nil {
		return nil, err
	}
	if q.Name != "" {
		existing.Name = q.Name
	}
	if q.Text != "" {
		existing.Text = q.Text
	}
	if q.OutputType != "" {
		existing.OutputType = q.OutputType
	}
	if err := s.queries.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *QueryService) Delete(ctx context.Context, userID, id int64) error {
	return s.queries.SoftDelete(ctx, userID, id)
}

func (s *QueryService) Get(ctx context.Context, userID, id int64) (*core.StoredQuery, error) {
	return s.queries.GetByID(ctx, userID, id)
}

// Execute runs a stored query and persists the SQL and data together. Blocked
// outcomes persist the sentinel pair. Failures persist nothing; a
// post-processing failure still returns the outcome with its SQL.
func (s *QueryService) Execute(ctx context.Context, userID, id int64) (*Outcome, error) {
	q, err := s.queries.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	target, err := s.databases.Target(ctx, userID, q.DBID)
	if err != nil {
		return nil, err
	}

	ctx = core.WithAudit(ctx, core.AuditInfo{UserID: userID, DatabaseID: q.DBID, QueryID: q.ID})
	outcome, err := s.pipeline.Run(ctx, target, q.Text, q.OutputType)
	if err != nil {
		return outcome, err
	}

	data, err := outcome.Serialize()
	if err != nil {
		return nil, err
	}
	if err := s.queries.SaveResults(ctx, []core.QueryResult{{QueryID: q.ID, GeneratedSQL: outcome.GeneratedSQL, Data: data}}); err != nil {
		return nil, fmt.Errorf("persist query result: %w", err)
	}
	logger.Info.Printf("Executed query %d (blocked=%v)", q.ID, outcome.Blocked)
	return outcome, nil
}

// ErrNotExecuted is returned for insights on a query that has no stored result.
var ErrNotExecuted = errors.New("query has not been executed yet")

// Insights analyses the last stored result of a query.
func (s *QueryService) Insights(ctx context.Context, userID, id int64, useWeb bool, customInstructions string) (string, error) {
	q, err := s.queries.GetByID(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if q.GeneratedSQL == "" {
		return "", ErrNotExecuted
	}
	return s.post.Insights(ctx, q.Text, q.GeneratedSQL, q.Data, customInstructions, useWeb)
}

// List pages through a database's queries, optionally filtered by name or text.
func (s *QueryService) List(ctx context.Context, userID, dbID int64, page, limit int, search string) ([]core.StoredQuery, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	filter := core.QueryFilter{UserID: userID, DBID: dbID, Search: search}
	total, err := s.queries.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	filter.Offset = (page - 1) * limit
	filter.Limit = limit
	items, err := s.queries.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *QueryService) Count(ctx context.Context, userID, dbID int64) (int, error) {
	return s.queries.Count(ctx, core.QueryFilter{UserID: userID, DBID: dbID})
}
