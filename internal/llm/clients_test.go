package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"SELECT 1"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1/", "sk-test", "gpt-test", time.Second)
	text, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", text)
	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}}, got.Messages)
}

func TestOpenAIClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") == "" {
			w.Write([]byte(`{"choices":[]}`))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL, "sk", "m", time.Second).Complete(context.Background(), nil)
	assert.ErrorContains(t, err, "rate limited (status 429)")

	_, err = NewOpenAIClient(srv.URL, "", "m", time.Second).Complete(context.Background(), nil)
	assert.ErrorContains(t, err, "no choices")
}

func TestAnthropicClientLiftsSystemPrompt(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m",
			"content":[{"type":"text","text":"SELECT 2"}],
			"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("key", srv.URL, "")
	text, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "schema"},
		{Role: RoleUser, Content: "how many?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", text)

	assert.Equal(t, "schema", body["system"])
	assert.Equal(t, defaultAnthropicModel, body["model"])
	msgs, ok := body["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, msgs, 1)
}

func TestRailsFilter(t *testing.T) {
	var got railsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply := "ok"
		if got.Messages[len(got.Messages)-1].Content == "bad" {
			reply = RefusalMessage
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(railsResponse{Messages: []Message{{Role: RoleAssistant, Content: reply}}})
	}))
	defer srv.Close()

	f := NewRailsFilter(srv.URL, "sqlinsight", time.Second)

	v, err := f.Check(context.Background(), Input, []Message{{Role: RoleSystem, Content: "s"}, {Role: RoleUser, Content: "bad"}})
	require.NoError(t, err)
	assert.True(t, v.Refused)
	assert.Equal(t, "sqlinsight", got.ConfigID)
	assert.Equal(t, []string{"input"}, got.Options.Rails)
	assert.Len(t, got.Messages, 1, "system prompts are not sent to the rails server")

	v, err = f.Check(context.Background(), Output, []Message{{Role: RoleAssistant, Content: "fine"}})
	require.NoError(t, err)
	assert.False(t, v.Refused)
	assert.Equal(t, []string{"output"}, got.Options.Rails)
}

func TestRailsFilterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRailsFilter(srv.URL, "c", time.Second).Check(context.Background(), Input, []Message{{Content: "x"}})
	assert.ErrorContains(t, err, "status 502")
}
