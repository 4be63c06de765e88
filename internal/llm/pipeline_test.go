package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlinsight/internal/logger"
)

func init() {
	logger.Discard()
}

type stubCompleter struct {
	reply string
	err   error
	calls int
	seen  []Message
}

func (c *stubCompleter) Complete(_ context.Context, messages []Message) (string, error) {
	c.calls++
	c.seen = messages
	return c.reply, c.err
}

// recordingFilter refuses when refuse is set and remembers what it was shown.
type recordingFilter struct {
	refuse bool
	err    error
	dirs   []Direction
	seen   [][]Message
}

func (f *recordingFilter) Check(_ context.Context, dir Direction, messages []Message) (Verdict, error) {
	f.dirs = append(f.dirs, dir)
	f.seen = append(f.seen, messages)
	if f.err != nil {
		return Verdict{}, f.err
	}
	return Verdict{Refused: f.refuse, Reason: "test"}, nil
}

func TestPipelinePassesThrough(t *testing.T) {
	c := &stubCompleter{reply: "SELECT 1"}
	in, out := &recordingFilter{}, &recordingFilter{}
	p := NewPipeline(c, []Filter{in}, []Filter{out})

	res, err := p.Run(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "SELECT 1"}, res)

	assert.Equal(t, []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "question"}}, c.seen)
	assert.Equal(t, []Direction{Input}, in.dirs)
	assert.Equal(t, []Direction{Output}, out.dirs)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "question"}, {Role: RoleAssistant, Content: "SELECT 1"}}, out.seen[0])
}

func TestPipelineInputRefusalShortCircuits(t *testing.T) {
	c := &stubCompleter{reply: "SELECT 1"}
	first, second, out := &recordingFilter{refuse: true}, &recordingFilter{}, &recordingFilter{}
	p := NewPipeline(c, []Filter{first, second}, []Filter{out})

	res, err := p.Run(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Empty(t, res.Text)
	assert.Zero(t, c.calls)
	assert.Empty(t, second.dirs)
	assert.Empty(t, out.dirs)
}

func TestPipelineOutputRefusal(t *testing.T) {
	p := NewPipeline(&stubCompleter{reply: "SELECT 1"}, nil, []Filter{&recordingFilter{refuse: true}})

	res, err := p.Run(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Empty(t, res.Text)
}

func TestPipelineModelRefusalSkipsOutputFilters(t *testing.T) {
	out := &recordingFilter{}
	p := NewPipeline(&stubCompleter{reply: "  " + RefusalMessage + "\n"}, nil, []Filter{out})

	res, err := p.Run(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Empty(t, out.dirs)
}

func TestPipelineStageErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := NewPipeline(&stubCompleter{err: boom}, nil, nil).Run(context.Background(), "s", "q")
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "completion", stageErr.Stage)
	assert.ErrorIs(t, err, boom)

	_, err = NewPipeline(&stubCompleter{reply: "x"}, nil, []Filter{&recordingFilter{err: boom}}).Run(context.Background(), "s", "q")
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "output guardrail", stageErr.Stage)
}
