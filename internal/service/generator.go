package service

import (
	"context"
	"errors"

	"sqlinsight/internal/core"
	"sqlinsight/internal/llm"
	"sqlinsight/internal/logger"
)

// Generation is the generator's answer. Blocked outcomes carry the sentinel as SQL.
type Generation struct {
	SQL     string
	Blocked bool
}

// SQLGenerator turns a question into SQL through the guarded LLM pipeline.
type SQLGenerator struct {
	pipeline *llm.Pipeline
	prompts  *PromptAssembler
}

func NewSQLGenerator(pipeline *llm.Pipeline, prompts *PromptAssembler) *SQLGenerator {
	return &SQLGenerator{pipeline: pipeline, prompts: prompts}
}

// Generate returns SQL for the question. A guardrail refusal is not an error:
// it yields Blocked with the sentinel. Model or guardrail service failures are
// GenerationErrors and never count as blocked.
func (g *SQLGenerator) Generate(ctx context.Context, question, outputType string, provider core.Provider, schema core.SchemaSnapshot) (Generation, error) {
	system := g.prompts.SQLPrompt(outputType, provider, schema)

	res, err := g.pipeline.Run(ctx, system, g.prompts.UserPrompt(question))
	if err != nil {
		stage := "completion"
		var se *llm.StageError
		if errors.As(err, &se) {
			stage = se.Stage
			err = se.Err
		}
		return Generation{}, &core.GenerationError{Stage: stage, Err: err}
	}
	if res.Blocked {
		logger.Info.Printf("Query blocked by guardrails: %s", res.Reason)
		return Generation{SQL: core.BlockedSentinel, Blocked: true}, nil
	}

	sql := llm.StripCodeFence(res.Text)
	if sql == "" {
		return Generation{}, &core.GenerationError{Stage: "completion", Err: errors.New("model returned no SQL")}
	}
	logger.Debug.Printf("Generated SQL: %s", sql)
	return Generation{SQL: sql}, nil
}
