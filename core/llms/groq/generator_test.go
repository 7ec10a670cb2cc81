package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/memory"
)

func TestGenerateParsesStructuredReply(t *testing.T) {
	var captured struct {
		Model          string    `json:"model"`
		Messages       []message `json:"messages"`
		ResponseFormat struct {
			Type       string `json:"type"`
			JSONSchema struct {
				Name   string         `json:"name"`
				Strict bool           `json:"strict"`
				Schema map[string]any `json:"schema"`
			} `json:"json_schema"`
		} `json:"response_format"`
	}
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeCompletion(w, `{"reply":"Nice to meet you, Alice!","confidence":0.92,"remember":[{"key":"userName","value":"Alice","persistent":false},{"key":"language","value":"en","persistent":true},{"key":" ","value":"x","persistent":false}]}`)
	}))
	defer server.Close()

	generator := NewGenerator("secret", WithBaseURL(server.URL), WithModel("test-model"), WithInstructions("Be brief."))
	response, err := generator.Generate(context.Background(), agent.Context{
		SessionID: "session",
		Input:     "my name is Alice",
		Memory:    map[string]any{"topic": "weather"},
		History: []agent.Turn{
			{Input: "hi", Response: "hello"},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if response.Text != "Nice to meet you, Alice!" || response.Confidence != 0.92 {
		t.Fatalf("expected parsed reply, got %+v", response)
	}
	if len(response.Memory) != 2 {
		t.Fatalf("expected 2 memory updates without the blank key, got %+v", response.Memory)
	}
	if response.Memory[0] != (agent.MemoryUpdate{Key: "userName", Value: "Alice", Scope: memory.ScopeSession}) {
		t.Fatalf("expected session scoped name, got %+v", response.Memory[0])
	}
	if response.Memory[1].Scope != memory.ScopePersistent {
		t.Fatalf("expected persistent language, got %+v", response.Memory[1])
	}

	if authorization != "Bearer secret" {
		t.Fatalf("expected bearer authorization, got %q", authorization)
	}
	if captured.Model != "test-model" {
		t.Fatalf("expected configured model, got %q", captured.Model)
	}
	if captured.ResponseFormat.Type != "json_schema" || captured.ResponseFormat.JSONSchema.Name != "reply" || !captured.ResponseFormat.JSONSchema.Strict {
		t.Fatalf("expected strict json schema response format, got %+v", captured.ResponseFormat)
	}
	if _, ok := captured.ResponseFormat.JSONSchema.Schema["properties"]; !ok {
		t.Fatalf("expected schema properties, got %v", captured.ResponseFormat.JSONSchema.Schema)
	}

	roles := make([]messageRole, 0, len(captured.Messages))
	for _, msg := range captured.Messages {
		roles = append(roles, msg.Role)
	}
	wantRoles := []messageRole{messageRoleSystem, messageRoleUser, messageRoleAssistant, messageRoleUser}
	if len(roles) != len(wantRoles) {
		t.Fatalf("expected roles %v, got %v", wantRoles, roles)
	}
	for i := range wantRoles {
		if roles[i] != wantRoles[i] {
			t.Fatalf("expected roles %v, got %v", wantRoles, roles)
		}
	}
	if system := captured.Messages[0].Content; !strings.HasPrefix(system, "Be brief.") || !strings.Contains(system, `"topic":"weather"`) {
		t.Fatalf("expected instructions with remembered facts, got %q", system)
	}
	if last := captured.Messages[len(captured.Messages)-1].Content; last != "my name is Alice" {
		t.Fatalf("expected input as last message, got %q", last)
	}
}

func TestGenerateAcceptsFencedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeCompletion(w, "```json\n{\"reply\":\"Sure.\",\"confidence\":1,\"remember\":[]}\n```")
	}))
	defer server.Close()

	response, err := NewGenerator("secret", WithBaseURL(server.URL)).Generate(context.Background(), agent.Context{Input: "ok?"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if response.Text != "Sure." {
		t.Fatalf("expected reply from fenced JSON, got %q", response.Text)
	}
}

func TestGenerateReportsStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewGenerator("secret", WithBaseURL(server.URL)).Generate(context.Background(), agent.Context{Input: "hello"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !statusErr.Temporary() {
		t.Fatalf("expected temporary 429, got %d", statusErr.StatusCode)
	}
}

func TestGenerateFailsWithoutChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	if _, err := NewGenerator("secret", WithBaseURL(server.URL)).Generate(context.Background(), agent.Context{Input: "hello"}); err == nil {
		t.Fatalf("expected error for a response without choices")
	}
}

func TestGenerateStopsWhenContextEnds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGenerator("secret", WithBaseURL(server.URL)).Generate(ctx, agent.Context{Input: "hello"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestWithTemperatureIsClamped(t *testing.T) {
	g := NewGenerator("secret", WithTemperature(5))
	if g.temperature == nil || *g.temperature != 2 {
		t.Fatalf("expected temperature clamped to 2, got %v", g.temperature)
	}
	if NewGenerator("secret").temperature != nil {
		t.Fatalf("expected temperature to be unset by default")
	}
}

func TestToMessagesSkipsEmptyParts(t *testing.T) {
	messages := toMessages("", agent.Context{
		Input:   "next",
		History: []agent.Turn{{Input: "interrupted question"}},
	})
	if len(messages) != 2 || messages[0].Role != messageRoleUser || messages[1].Content != "next" {
		t.Fatalf("expected only user messages, got %+v", messages)
	}
}

func writeCompletion(w http.ResponseWriter, content string) {
	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
