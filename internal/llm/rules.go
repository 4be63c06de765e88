package llm

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

type ruleSet struct {
	BlockedPatterns []string `yaml:"blocked_patterns"`
}

type rulesFile struct {
	Input  ruleSet `yaml:"input"`
	Output ruleSet `yaml:"output"`
}

// RuleFilter refuses messages matching locally configured patterns.
type RuleFilter struct {
	input  []*regexp.Regexp
	output []*regexp.Regexp
}

// LoadRules reads a YAML rules file with input/output blocked_patterns lists.
func LoadRules(path string) (*RuleFilter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guardrail rules: %w", err)
	}
	var rf rulesFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parse guardrail rules %s: %w", path, err)
	}
	return NewRuleFilter(rf.Input.BlockedPatterns, rf.Output.BlockedPatterns)
}

// NewRuleFilter compiles the patterns case-insensitively.
func NewRuleFilter(input, output []string) (*RuleFilter, error) {
	in, err := compileAll(input)
	if err != nil {
		return nil, err
	}
	out, err := compileAll(output)
	if err != nil {
		return nil, err
	}
	return &RuleFilter{input: in, output: out}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("bad guardrail pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func (f *RuleFilter) Check(_ context.Context, dir Direction, messages []Message) (Verdict, error) {
	rules := f.input
	if dir == Output {
		rules = f.output
	}
	text := lastContent(messages)
	for _, re := range rules {
		if re.MatchString(text) {
			return Verdict{Refused: true, Reason: "matched rule " + re.String()}, nil
		}
	}
	return Verdict{}, nil
}
