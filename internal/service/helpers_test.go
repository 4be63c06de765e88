package service

import (
	"context"
	"errors"
	"sync"

	"sqlinsight/internal/config"
	"sqlinsight/internal/core"
	"sqlinsight/internal/llm"
)

var testPrompts = &config.Prompts{SystemPrompts: config.SystemPrompts{
	Primary:          "PRIMARY\n",
	Graphical:        "GRAPHICAL\n",
	Descriptive:      "DESCRIBE\n",
	ChartJSFormatter: "CHARTJS\n",
	Insights:         "INSIGHTS\n",
}}

type staticPrompts struct{ p *config.Prompts }

func (s staticPrompts) Get() *config.Prompts { return s.p }

func newAssembler() *PromptAssembler {
	return NewPromptAssembler(staticPrompts{testPrompts})
}

// scriptedCompleter answers through fn and records every call.
type scriptedCompleter struct {
	mu    sync.Mutex
	calls [][]llm.Message
	fn    func(messages []llm.Message) (string, error)
}

func (c *scriptedCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, messages)
	c.mu.Unlock()
	return c.fn(messages)
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func replyWith(text string) *scriptedCompleter {
	return &scriptedCompleter{fn: func([]llm.Message) (string, error) { return text, nil }}
}

func failWith(err error) *scriptedCompleter {
	return &scriptedCompleter{fn: func([]llm.Message) (string, error) { return "", err }}
}

type refuseAll struct{}

func (refuseAll) Check(context.Context, llm.Direction, []llm.Message) (llm.Verdict, error) {
	return llm.Verdict{Refused: true, Reason: "off topic"}, nil
}

type brokenFilter struct{}

func (brokenFilter) Check(context.Context, llm.Direction, []llm.Message) (llm.Verdict, error) {
	return llm.Verdict{}, errors.New("rails service unavailable")
}

type memoryAudit struct {
	mu   sync.Mutex
	logs []core.AuditLog
}

func (m *memoryAudit) Create(_ context.Context, l *core.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memoryAudit) Recent(_ context.Context, _ int64, _ int) ([]core.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.AuditLog(nil), m.logs...), nil
}
