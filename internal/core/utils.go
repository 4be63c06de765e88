package core

import (
	"context"
	"regexp"
	"strings"
)

var (
	tagInvalid = regexp.MustCompile("[^a-z0-9-]+")
	tagDashes  = regexp.MustCompile("-+")
)

// NormalizeTag lowercases a tag and reduces it to dash-separated alphanumerics.
func NormalizeTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = tagInvalid.ReplaceAllString(s, "")
	s = tagDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeTags normalizes each tag and drops empties and duplicates, keeping order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

type contextKey string

const (
	ContextKeyUserID   contextKey = "user_id"
	ContextKeyApiKeyID contextKey = "api_key_id"
	contextKeyAudit    contextKey = "audit"
)

// AuditInfo identifies what a target-database call was made for.
type AuditInfo struct {
	UserID     int64
	DatabaseID int64
	QueryID    int64
}

func WithAudit(ctx context.Context, info AuditInfo) context.Context {
	return context.WithValue(ctx, contextKeyAudit, info)
}

func AuditFrom(ctx context.Context) AuditInfo {
	info, _ := ctx.Value(contextKeyAudit).(AuditInfo)
	return info
}

func UserIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(ContextKeyUserID).(int64)
	return id
}
