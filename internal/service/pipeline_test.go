package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlinsight/internal/core"
	"sqlinsight/internal/llm"
)

// newShopTarget creates a SQLite target database with a few orders.
func newShopTarget(t *testing.T) *Target {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE orders (id INTEGER PRIMARY KEY, region TEXT NOT NULL, total DECIMAL(10,2) NOT NULL);
		INSERT INTO orders (region, total) VALUES ('north', 10.50), ('south', 20.25), ('north', 5.00);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	uri := "sqlite://" + path
	schema, err := NewSchemaIntrospector().Introspect(context.Background(), uri)
	require.NoError(t, err)
	return &Target{DatabaseID: 1, Provider: core.ProviderSQLite, ConnectionString: uri, Schema: schema}
}

// sqlThenText answers the SQL generation call with sqlText and any later call with text.
func sqlThenText(sqlText, text string) *scriptedCompleter {
	return &scriptedCompleter{fn: func(messages []llm.Message) (string, error) {
		if messages[0].Role == llm.RoleSystem {
			return sqlText, nil
		}
		return text, nil
	}}
}

func newTestPipeline(completer llm.Completer, input []llm.Filter, audit core.AuditRepository) *QueryPipeline {
	assembler := newAssembler()
	return NewQueryPipeline(
		NewSQLGenerator(llm.NewPipeline(completer, input, nil), assembler),
		NewQueryExecutor(audit, 100),
		NewPostProcessor(completer, assembler),
	)
}

func TestPipelineTabular(t *testing.T) {
	target := newShopTarget(t)
	audit := &memoryAudit{}
	p := newTestPipeline(replyWith("SELECT region, SUM(total) AS total FROM orders GROUP BY region ORDER BY region"), nil, audit)

	out, err := p.Run(context.Background(), target, "revenue per region", core.OutputTabular)
	require.NoError(t, err)

	assert.Equal(t, "SELECT region, SUM(total) AS total FROM orders GROUP BY region ORDER BY region LIMIT 100;", out.GeneratedSQL)
	rows, ok := out.Result.([]core.Record)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, "north", rows[0]["region"])
	assert.InDelta(t, 15.5, rows[0]["total"], 0.001)

	data, err := out.Serialize()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(data, `[{"region":"north"`), data)
	assert.Len(t, audit.logs, 1)
}

func TestPipelineDescriptive(t *testing.T) {
	target := newShopTarget(t)
	completer := sqlThenText("SELECT COUNT(*) AS n FROM orders", "  There are 3 orders.\n")
	p := newTestPipeline(completer, nil, nil)

	out, err := p.Run(context.Background(), target, "how many orders?", core.OutputDescriptive)
	require.NoError(t, err)
	assert.Equal(t, "There are 3 orders.", out.Result)

	require.Equal(t, 2, completer.callCount())
	prompt := completer.calls[1][0].Content
	assert.True(t, strings.HasPrefix(prompt, "DESCRIBE\n"))
	assert.Contains(t, prompt, "User Query: how many orders?\n")
	assert.Contains(t, prompt, "Generated SQL Query: SELECT COUNT(*) AS n FROM orders LIMIT 100;\n")
	assert.Contains(t, prompt, `Query Output from database: [{"n":3}]`)
}

func TestPipelineChart(t *testing.T) {
	target := newShopTarget(t)
	chart := `{"type":"pie","data":{"labels":["north","south"]}}`
	completer := sqlThenText("SELECT region, COUNT(*) AS n FROM orders GROUP BY region", chart)
	p := newTestPipeline(completer, nil, nil)

	out, err := p.Run(context.Background(), target, "orders per region", "pie")
	require.NoError(t, err)
	assert.Equal(t, chart, out.Result)

	prompt := completer.calls[1][0].Content
	assert.True(t, strings.HasPrefix(prompt, "CHARTJS\n"))
	assert.True(t, strings.HasSuffix(prompt, "Graphical Representation type: pie"))
}

func TestPipelineBlockedNeverExecutes(t *testing.T) {
	audit := &memoryAudit{}
	completer := replyWith("SELECT 1")
	p := newTestPipeline(completer, []llm.Filter{refuseAll{}}, audit)

	target := &Target{Provider: core.ProviderSQLite, ConnectionString: "sqlite:///does/not/exist.db"}
	out, err := p.Run(context.Background(), target, "tell me a joke", core.OutputDescriptive)
	require.NoError(t, err)

	assert.True(t, out.Blocked)
	assert.Equal(t, core.BlockedSentinel, out.GeneratedSQL)
	assert.Equal(t, core.BlockedSentinel, out.Result)
	assert.Empty(t, audit.logs, "blocked questions must not touch the database")
	assert.Zero(t, completer.callCount())
}

func TestPipelineExecutionError(t *testing.T) {
	target := newShopTarget(t)
	p := newTestPipeline(replyWith("SELECT missing_column FROM orders"), nil, nil)

	out, err := p.Run(context.Background(), target, "q", core.OutputTabular)
	assert.Nil(t, out)
	var execErr *core.QueryExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "SELECT missing_column FROM orders LIMIT 100;", execErr.Statement)
}

func TestPipelinePostProcessingFailureKeepsSQL(t *testing.T) {
	target := newShopTarget(t)
	completer := &scriptedCompleter{fn: func(messages []llm.Message) (string, error) {
		if messages[0].Role == llm.RoleSystem {
			return "SELECT COUNT(*) AS n FROM orders", nil
		}
		return "", errors.New("context length exceeded")
	}}
	p := newTestPipeline(completer, nil, nil)

	out, err := p.Run(context.Background(), target, "how many?", core.OutputDescriptive)

	var postErr *core.PostProcessingError
	require.True(t, errors.As(err, &postErr))
	assert.Equal(t, "SELECT COUNT(*) AS n FROM orders LIMIT 100;", postErr.SQL)
	require.NotNil(t, out)
	assert.Equal(t, postErr.SQL, out.GeneratedSQL)
	assert.Nil(t, out.Result)
}

func TestInsights(t *testing.T) {
	completer := replyWith(" Sales are growing. ")
	post := NewPostProcessor(completer, newAssembler())

	text, err := post.Insights(context.Background(), "revenue", "SELECT 1", `[{"n":1}]`, "focus on Q4", true)
	require.NoError(t, err)
	assert.Equal(t, "Sales are growing.", text)

	prompt := completer.calls[0][0].Content
	assert.True(t, strings.HasPrefix(prompt, "INSIGHTS\n"))
	assert.Contains(t, prompt, "\nCustom User Instructions: focus on Q4")
	assert.True(t, strings.HasSuffix(prompt, webResearchSuffix))
}
