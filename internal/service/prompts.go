package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"sqlinsight/internal/config"
	"sqlinsight/internal/core"
)

const webResearchSuffix = "\nUse your knowledge and reliable internet sources to analyze and compare this data. " +
	"Provide additional insights, trends, or actionable suggestions based on the query results and any " +
	"relevant external information you can find online. Ensure that your insights are well-supported " +
	"and cite credible sources where applicable."

// PromptSource supplies the current templates. *config.PromptStore satisfies it.
type PromptSource interface {
	Get() *config.Prompts
}

// PromptAssembler composes the prompts sent to the language model.
type PromptAssembler struct {
	source PromptSource
}

func NewPromptAssembler(source PromptSource) *PromptAssembler {
	return &PromptAssembler{source: source}
}

// SQLPrompt returns the system prompt for SQL generation. Tabular and
// descriptive outputs use the primary template, everything else is a chart type.
func (a *PromptAssembler) SQLPrompt(outputType string, provider core.Provider, schema core.SchemaSnapshot) string {
	sp := a.source.Get().SystemPrompts

	var b strings.Builder
	if isChart(outputType) {
		b.WriteString(sp.Graphical)
	} else {
		b.WriteString(sp.Primary)
	}
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Database provider: %s\n", provider)
	fmt.Fprintf(&b, "Schema: %s\n", RenderSchema(schema))
	if isChart(outputType) {
		fmt.Fprintf(&b, "Graphical Representation type: %s", outputType)
	}
	return b.String()
}

// UserPrompt wraps the question the way the generator sends it.
func (a *PromptAssembler) UserPrompt(question string) string {
	return "User question: \n" + question
}

// ResultPrompt builds the second-pass prompt for descriptive and chart outputs.
func (a *PromptAssembler) ResultPrompt(outputType, question, sqlText string, rows []core.Record) string {
	sp := a.source.Get().SystemPrompts
	data := renderRows(rows)

	if outputType == core.OutputDescriptive {
		return sp.Descriptive +
			fmt.Sprintf("User Query: %s\n", question) +
			fmt.Sprintf("Generated SQL Query: %s\n", sqlText) +
			fmt.Sprintf("Query Output from database: %s", data)
	}
	return sp.ChartJSFormatter +
		fmt.Sprintf("User Query: %s\n", question) +
		fmt.Sprintf("Generated SQL Query: %s\n", sqlText) +
		fmt.Sprintf("Query Output From Database: %s\n", data) +
		fmt.Sprintf("Graphical Representation type: %s", outputType)
}

// InsightsPrompt builds the analysis prompt over a stored query's last result.
func (a *PromptAssembler) InsightsPrompt(question, sqlText, data, customInstructions string, useWeb bool) string {
	prompt := a.source.Get().SystemPrompts.Insights +
		fmt.Sprintf("User Query: %s\n", question) +
		fmt.Sprintf("Generated SQL Query: %s\n", sqlText) +
		fmt.Sprintf("Query Output from database: %s", data)
	if customInstructions != "" {
		prompt += "\nCustom User Instructions: " + customInstructions
	}
	if useWeb {
		prompt += webResearchSuffix
	}
	return prompt
}

// RenderSchema prints a snapshot one table per block, tables in name order.
func RenderSchema(schema core.SchemaSnapshot) string {
	tables := make([]string, 0, len(schema))
	for t := range schema {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var b strings.Builder
	for _, t := range tables {
		fmt.Fprintf(&b, "\nTable %s:\n", t)
		for _, c := range schema[t] {
			fmt.Fprintf(&b, "  - %s %s", c.Name, c.Type)
			if !c.Nullable {
				b.WriteString(" NOT NULL")
			}
			if c.PrimaryKey {
				b.WriteString(" PRIMARY KEY")
			}
			for _, fk := range c.ForeignKeys {
				fmt.Fprintf(&b, " REFERENCES %s(%s)", fk.Table, fk.Column)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderRows(rows []core.Record) string {
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Sprintf("%v", rows)
	}
	return string(raw)
}

func isChart(outputType string) bool {
	return outputType != core.OutputTabular && outputType != core.OutputDescriptive
}
