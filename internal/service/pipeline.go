package service

import (
	"context"
	"encoding/json"
	"fmt"

	"sqlinsight/internal/core"
)

// Target is a decrypted, ready-to-use view of a registered database.
type Target struct {
	DatabaseID       int64
	Provider         core.Provider
	ConnectionString string
	Schema           core.SchemaSnapshot
}

// Outcome is what one question produced. Result is []core.Record for tabular
// output and a string otherwise (including the blocked sentinel).
type Outcome struct {
	GeneratedSQL string      `json:"generated_sql_query"`
	Result       interface{} `json:"query_result"`
	Blocked      bool        `json:"blocked"`
}

// Serialize encodes the result the way it is persisted in the data column.
func (o *Outcome) Serialize() (string, error) {
	raw, err := json.Marshal(o.Result)
	if err != nil {
		return "", fmt.Errorf("serialize result: %w", err)
	}
	return string(raw), nil
}

// QueryPipeline runs generate, execute and post-process for one question.
type QueryPipeline struct {
	generator *SQLGenerator
	executor  *QueryExecutor
	post      *PostProcessor
}

func NewQueryPipeline(generator *SQLGenerator, executor *QueryExecutor, post *PostProcessor) *QueryPipeline {
	return &QueryPipeline{generator: generator, executor: executor, post: post}
}

// Run answers question against target. A blocked generation never reaches the
// database. On a PostProcessingError the returned outcome still carries the SQL.
func (p *QueryPipeline) Run(ctx context.Context, target *Target, question, outputType string) (*Outcome, error) {
	gen, err := p.generator.Generate(ctx, question, outputType, target.Provider, target.Schema)
	if err != nil {
		return nil, err
	}
	if gen.Blocked {
		return &Outcome{GeneratedSQL: core.BlockedSentinel, Result: core.BlockedSentinel, Blocked: true}, nil
	}

	res, err := p.executor.ExecuteSQL(ctx, target.ConnectionString, gen.SQL)
	if err != nil {
		return nil, err
	}

	data, err := p.post.Process(ctx, outputType, question, res.Statement, res.Rows)
	if err != nil {
		return &Outcome{GeneratedSQL: res.Statement}, err
	}
	return &Outcome{GeneratedSQL: res.Statement, Result: data}, nil
}
