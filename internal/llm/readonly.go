package llm

import (
	"context"
	"regexp"
	"strings"
)

var (
	fencePattern     = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*\\n?(.*?)\\s*```\\s*$")
	forbiddenPattern = regexp.MustCompile(`(?i)\b(insert|update|delete|truncate|merge|drop|create|alter|rename|grant|revoke|exec|execute|call|pragma|attach|detach)\b`)
)

// StripCodeFence removes a surrounding markdown code fence such as ```sql ... ```.
func StripCodeFence(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ReadOnlyFilter refuses generated SQL that is not a single SELECT or WITH statement.
type ReadOnlyFilter struct{}

func (ReadOnlyFilter) Check(_ context.Context, dir Direction, messages []Message) (Verdict, error) {
	if dir != Output {
		return Verdict{}, nil
	}
	sql := StripCodeFence(lastContent(messages))
	upper := strings.ToUpper(sql)

	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return Verdict{Refused: true, Reason: "statement is not a SELECT"}, nil
	}
	if strings.Contains(strings.TrimRight(sql, "; \t\r\n"), ";") {
		return Verdict{Refused: true, Reason: "multiple statements"}, nil
	}
	if strings.Contains(sql, "--") || strings.Contains(sql, "/*") {
		return Verdict{Refused: true, Reason: "comments are not allowed"}, nil
	}
	if kw := forbiddenPattern.FindString(sql); kw != "" {
		return Verdict{Refused: true, Reason: "forbidden keyword " + strings.ToUpper(kw)}, nil
	}
	return Verdict{}, nil
}
