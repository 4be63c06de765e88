package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RailsFilter asks a NeMo-Guardrails style server whether an exchange is allowed.
// The server answers with the refusal sentinel when one of its rails fires.
type RailsFilter struct {
	http     *resty.Client
	configID string
}

func NewRailsFilter(baseURL, configID string, timeout time.Duration) *RailsFilter {
	return &RailsFilter{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		configID: configID,
	}
}

type railsRequest struct {
	ConfigID string    `json:"config_id"`
	Messages []Message `json:"messages"`
	Options  struct {
		Rails []string `json:"rails"`
	} `json:"options"`
}

type railsResponse struct {
	Messages []Message `json:"messages"`
}

func (f *RailsFilter) Check(ctx context.Context, dir Direction, messages []Message) (Verdict, error) {
	req := railsRequest{ConfigID: f.configID}
	for _, m := range messages {
		if m.Role != RoleSystem {
			req.Messages = append(req.Messages, m)
		}
	}
	req.Options.Rails = []string{dir.String()}

	var out railsResponse
	resp, err := f.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v1/chat/completions")
	if err != nil {
		return Verdict{}, fmt.Errorf("guardrails request: %w", err)
	}
	if resp.IsError() {
		return Verdict{}, fmt.Errorf("guardrails: status %d", resp.StatusCode())
	}

	if IsRefusal(lastContent(out.Messages)) {
		return Verdict{Refused: true, Reason: "guardrails " + dir.String() + " rail"}, nil
	}
	return Verdict{}, nil
}
