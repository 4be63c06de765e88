package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sqlinsight/internal/core"
)

func TestRenderSchema(t *testing.T) {
	schema := core.SchemaSnapshot{
		"orders": {
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "customer_id", Type: "INTEGER", Nullable: true, ForeignKeys: []core.ForeignKey{{Table: "customers", Column: "id"}}},
		},
		"customers": {
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
		},
	}

	want := "\nTable customers:\n" +
		"  - id INTEGER NOT NULL PRIMARY KEY\n" +
		"\nTable orders:\n" +
		"  - id INTEGER NOT NULL PRIMARY KEY\n" +
		"  - customer_id INTEGER REFERENCES customers(id)\n"
	assert.Equal(t, want, RenderSchema(schema))
	assert.Empty(t, RenderSchema(core.SchemaSnapshot{}))
}

func TestSQLPrompt(t *testing.T) {
	a := newAssembler()

	tabular := a.SQLPrompt(core.OutputTabular, core.ProviderSQLServer, shopSchema)
	assert.Equal(t, "PRIMARY\nDatabase provider: sqlserver\nSchema: "+RenderSchema(shopSchema)+"\n", tabular)

	descriptive := a.SQLPrompt(core.OutputDescriptive, core.ProviderSQLServer, shopSchema)
	assert.Equal(t, tabular, descriptive, "descriptive output generates SQL like tabular")

	chart := a.SQLPrompt("line", core.ProviderPostgres, shopSchema)
	assert.Contains(t, chart, "GRAPHICAL\nDatabase provider: postgres\n")
	assert.Contains(t, chart, "Graphical Representation type: line")
}

func TestSQLPromptAddsMissingNewline(t *testing.T) {
	prompts := *testPrompts
	prompts.SystemPrompts.Primary = "no newline"
	a := NewPromptAssembler(staticPrompts{&prompts})

	assert.Contains(t, a.SQLPrompt(core.OutputTabular, core.ProviderMySQL, shopSchema), "no newline\nDatabase provider: mysql\n")
}

func TestInsightsPromptWithoutExtras(t *testing.T) {
	got := newAssembler().InsightsPrompt("q", "SELECT 1", "[]", "", false)
	assert.Equal(t, "INSIGHTS\nUser Query: q\nGenerated SQL Query: SELECT 1\nQuery Output from database: []", got)
}
