package llm

import (
	"context"
	"fmt"

	"sqlinsight/internal/logger"
)

// StageError wraps a failure of one pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Result is the outcome of a guarded completion. Text is empty when Blocked.
type Result struct {
	Text    string
	Blocked bool
	Reason  string
}

// Pipeline runs input filters, the model, then output filters. The first
// refusal short-circuits the rest, so a refused input never reaches the model.
type Pipeline struct {
	completer Completer
	input     []Filter
	output    []Filter
}

func NewPipeline(completer Completer, input, output []Filter) *Pipeline {
	return &Pipeline{completer: completer, input: input, output: output}
}

func (p *Pipeline) Run(ctx context.Context, system, user string) (Result, error) {
	messages := []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}

	if res, done, err := p.check(ctx, Input, p.input, messages); done || err != nil {
		return res, err
	}

	text, err := p.completer.Complete(ctx, messages)
	if err != nil {
		return Result{}, &StageError{Stage: "completion", Err: err}
	}
	if IsRefusal(text) {
		logger.Info.Printf("Model refused the request")
		return Result{Blocked: true, Reason: "model refusal"}, nil
	}

	exchange := []Message{
		{Role: RoleUser, Content: user},
		{Role: RoleAssistant, Content: text},
	}
	if res, done, err := p.check(ctx, Output, p.output, exchange); done || err != nil {
		return res, err
	}

	return Result{Text: text}, nil
}

func (p *Pipeline) check(ctx context.Context, dir Direction, filters []Filter, messages []Message) (Result, bool, error) {
	for _, f := range filters {
		v, err := f.Check(ctx, dir, messages)
		if err != nil {
			return Result{}, true, &StageError{Stage: dir.String() + " guardrail", Err: err}
		}
		if v.Refused {
			logger.Info.Printf("Guardrail refused %s: %s", dir, v.Reason)
			return Result{Blocked: true, Reason: v.Reason}, true, nil
		}
	}
	return Result{}, false, nil
}
