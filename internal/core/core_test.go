package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Sales Report ", "sales-report", "Q1!!", "--", "a  b", ""})
	assert.Equal(t, []string{"sales-report", "q1", "a-b"}, got)
	assert.Empty(t, NormalizeTags(nil))
}

func TestDescribe(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name   string
		err    error
		msg    string
		detail string
	}{
		{"unsupported", &UnsupportedProviderError{Provider: "oracle"}, `unsupported database provider "oracle"`, ""},
		{"connection", &ConnectionError{Provider: "postgres", Err: cause}, "Could not connect to the database. Check host, port and credentials.", "boom"},
		{"execution", fmt.Errorf("run: %w", &QueryExecutionError{Statement: "SELECT 1", Err: cause}), "The database rejected the generated SQL: boom", "SELECT 1"},
		{"post-processing", &PostProcessingError{OutputType: "bar", SQL: "SELECT 2", Err: cause}, "The query ran, but its result could not be formatted.", "SELECT 2"},
		{"generation", &GenerationError{Stage: "completion", Err: cause}, "The language model could not generate SQL for this question.", "boom"},
		{"not found", fmt.Errorf("query 4: %w", ErrNotFound), "Resource not found", ""},
		{"conflict", fmt.Errorf("query 2 belongs to database 3: %w", ErrConflict), "Request conflicts with existing data", "query 2 belongs to database 3: conflict"},
		{"other", cause, "boom", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, detail := Describe(tt.err)
			assert.Equal(t, tt.msg, msg)
			assert.Equal(t, tt.detail, detail)
		})
	}
}

func TestAuditContext(t *testing.T) {
	assert.Equal(t, AuditInfo{}, AuditFrom(context.Background()))

	ctx := WithAudit(context.Background(), AuditInfo{UserID: 1, QueryID: 9})
	assert.Equal(t, AuditInfo{UserID: 1, QueryID: 9}, AuditFrom(ctx))
}

func TestProviderValid(t *testing.T) {
	assert.True(t, ProviderMariaDB.Valid())
	assert.False(t, Provider("oracle").Valid())
}
