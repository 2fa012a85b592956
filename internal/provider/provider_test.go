package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubProvider struct {
	id    string
	reply string
	err   error
	calls int
}

func (s *stubProvider) ID() string   { return s.id }
func (s *stubProvider) Name() string { return s.id }
func (s *stubProvider) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &ChatResponse{Model: req.Model, Content: s.reply}, nil
}
func (s *stubProvider) ChatStream(context.Context, *ChatRequest) (<-chan *StreamChunk, error) {
	return nil, errors.New("not implemented")
}
func (s *stubProvider) ListModels(context.Context) ([]Model, error) { return nil, nil }
func (s *stubProvider) HealthCheck(context.Context) error           { return nil }

func TestRouterResolvesByModel(t *testing.T) {
	r := NewRouter(zap.NewNop())
	groq := &stubProvider{id: "groq", reply: "from groq"}
	ollama := &stubProvider{id: "ollama", reply: "from ollama"}
	r.Register(groq, "llama3-70b-8192")
	r.Register(ollama, "llama3.1")

	resp, err := r.Chat(context.Background(), &ChatRequest{Model: "llama3.1"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "from ollama" {
		t.Errorf("got %q, want ollama", resp.Content)
	}

	// Unbound models go to the default (first registered) provider.
	resp, err = r.Chat(context.Background(), &ChatRequest{Model: "unknown-model"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "from groq" {
		t.Errorf("got %q, want groq default", resp.Content)
	}
}

func TestRouterFallback(t *testing.T) {
	r := NewRouter(zap.NewNop())
	primary := &stubProvider{id: "groq", err: errors.New("rate limited")}
	backup := &stubProvider{id: "ollama", reply: "backup"}
	r.Register(primary, "m")
	r.Register(backup)
	r.SetFallbacks("groq", []string{"ollama"})

	resp, err := r.Chat(context.Background(), &ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "backup" || primary.calls != 1 || backup.calls != 1 {
		t.Errorf("resp=%q primary=%d backup=%d", resp.Content, primary.calls, backup.calls)
	}
}

func TestRouterNoProvider(t *testing.T) {
	r := NewRouter(zap.NewNop())
	_, err := r.Chat(context.Background(), &ChatRequest{Model: "m"})
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("got %v, want ErrNoProvider", err)
	}
}

func TestOpenAIChatToolCalls(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 {
			t.Errorf("tools not forwarded: %d", len(req.Tools))
		}
		fmt.Fprint(w, `{"id":"1","model":"llama3-70b-8192","choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"get_nba_all_time_leaders","arguments":"{\"stat_category\":\"AST\"}"}}]},"finish_reason":"tool_calls"}],"usage":{"total_tokens":12}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{ID: "groq", Endpoint: srv.URL + "/", APIKey: "k"}, zap.NewNop())
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Model:    "llama3-70b-8192",
		Messages: []Message{{Role: RoleUser, Content: "assists"}},
		Tools:    []Tool{NewFunctionTool("get_nba_all_time_leaders", "leaders", map[string]interface{}{"type": "object"})},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if gotAuth != "Bearer k" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if resp.FinishReason != FinishToolCalls || len(resp.ToolCalls) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.ToolCalls[0].Function.Name != "get_nba_all_time_leaders" {
		t.Errorf("tool = %q", resp.ToolCalls[0].Function.Name)
	}
	if resp.Usage.TotalTokens != 12 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{ID: "groq", Endpoint: srv.URL}, zap.NewNop())
	_, err := p.Chat(context.Background(), &ChatRequest{Model: "m"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got %v, want 401 APIError", err)
	}
}

func TestOpenAIChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range []string{"Why ", "did ", "the ball"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", tok)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{ID: "ollama", Endpoint: srv.URL}, zap.NewNop())
	ch, err := p.ChatStream(context.Background(), &ChatRequest{Model: "llama3.1"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	var b strings.Builder
	done := false
	for c := range ch {
		b.WriteString(c.Content)
		done = done || c.Done
	}
	if b.String() != "Why did the ball" || !done {
		t.Errorf("got %q done=%v", b.String(), done)
	}
}

func TestAnthropicConvertRequestToolRoundTrip(t *testing.T) {
	p := NewAnthropicProvider(ProviderConfig{ID: "claude"}, zap.NewNop())
	ar := p.convertRequest(&ChatRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []Message{
			{Role: RoleSystem, Content: "You are an NBA Researcher."},
			{Role: RoleUser, Content: "Lakers last night"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "t1", Function: ToolCallFunction{Name: "get_nba_game_info", Arguments: `{"team_name":"Lakers"}`}}}},
			{Role: RoleTool, ToolCallID: "t1", Content: "Game ID: 0022300001"},
		},
		Tools: []Tool{NewFunctionTool("get_nba_game_info", "game", map[string]interface{}{"type": "object"})},
	})
	if ar.System != "You are an NBA Researcher." {
		t.Errorf("system = %q", ar.System)
	}
	if len(ar.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(ar.Messages))
	}
	if ar.Messages[1].Content[0].Type != "tool_use" || ar.Messages[2].Content[0].Type != "tool_result" {
		t.Errorf("blocks = %+v", ar.Messages)
	}
	if len(ar.Tools) != 1 || ar.Tools[0].Name != "get_nba_game_info" {
		t.Errorf("tools = %+v", ar.Tools)
	}
}

func TestAnthropicConvertResponseToolUse(t *testing.T) {
	p := NewAnthropicProvider(ProviderConfig{ID: "claude"}, zap.NewNop())
	resp := p.convertResponse(&anthropicResponse{
		StopReason: "tool_use",
		Content: []anthropicBlock{
			{Type: "text", Text: "Looking it up."},
			{Type: "tool_use", ID: "t1", Name: "get_nba_all_time_leaders", Input: json.RawMessage(`{"stat_category":"PTS"}`)},
		},
	})
	if resp.FinishReason != FinishToolCalls || len(resp.ToolCalls) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.ToolCalls[0].Function.Arguments != `{"stat_category":"PTS"}` {
		t.Errorf("args = %q", resp.ToolCalls[0].Function.Arguments)
	}
}
