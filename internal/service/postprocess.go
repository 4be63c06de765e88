package service

import (
	"context"
	"strings"

	"sqlinsight/internal/core"
	"sqlinsight/internal/llm"
)

// PostProcessor shapes executed rows into the requested output type.
type PostProcessor struct {
	completer llm.Completer
	prompts   *PromptAssembler
}

func NewPostProcessor(completer llm.Completer, prompts *PromptAssembler) *PostProcessor {
	return &PostProcessor{completer: completer, prompts: prompts}
}

// Process returns the rows unchanged for tabular output, a prose answer for
// descriptive output and a chart configuration string for any chart type.
// Model failures are PostProcessingErrors that keep the SQL.
func (p *PostProcessor) Process(ctx context.Context, outputType, question, sqlText string, rows []core.Record) (interface{}, error) {
	if outputType == core.OutputTabular {
		return rows, nil
	}

	prompt := p.prompts.ResultPrompt(outputType, question, sqlText, rows)
	text, err := p.completer.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return nil, &core.PostProcessingError{OutputType: outputType, SQL: sqlText, Err: err}
	}
	return strings.TrimSpace(text), nil
}

// Insights asks the model to analyse a stored query's SQL and data.
func (p *PostProcessor) Insights(ctx context.Context, question, sqlText, data, customInstructions string, useWeb bool) (string, error) {
	prompt := p.prompts.InsightsPrompt(question, sqlText, data, customInstructions, useWeb)
	text, err := p.completer.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return "", &core.PostProcessingError{OutputType: "insights", SQL: sqlText, Err: err}
	}
	return strings.TrimSpace(text), nil
}
