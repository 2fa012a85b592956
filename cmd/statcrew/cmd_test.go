package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/nidhogg/statcrew/internal/config"
	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func TestRenderChatPrompt(t *testing.T) {
	got, err := renderChatPrompt("joke", "bears")
	if err != nil || got != "Tell me a joke about bears" {
		t.Errorf("joke = %q, %v", got, err)
	}
	got, err = renderChatPrompt("Explain {topic} twice: {topic}", "the infield fly rule")
	if err != nil || got != "Explain the infield fly rule twice: the infield fly rule" {
		t.Errorf("literal = %q, %v", got, err)
	}
	if _, err := renderChatPrompt("no placeholder", "x"); err == nil {
		t.Error("template without {topic} accepted")
	}
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	task := formatEvent(&crew.Event{
		RunID: "0123456789abcdef", Graph: crew.GraphGameInfo, TaskID: "retrieve_player_stats",
		AgentID: "statistician", Status: crew.TaskCompleted, Duration: 1500 * time.Millisecond, Timestamp: ts,
	})
	if !strings.HasPrefix(task, "12:00:00 01234567 game_info") || !strings.HasSuffix(task, "completed in 1.5s") {
		t.Errorf("task line = %q", task)
	}

	run := formatEvent(&crew.Event{RunID: "r1", Graph: crew.GraphPlayerStats, Status: crew.TaskFailed, Error: "task x failed", Timestamp: ts})
	if !strings.Contains(run, "run failed: task x failed") {
		t.Errorf("run line = %q", run)
	}
}

func TestOneLine(t *testing.T) {
	if got := oneLine("Lakers\n  game   recap", 50); got != "Lakers game recap" {
		t.Errorf("got %q", got)
	}
	if got := oneLine(strings.Repeat("a", 20), 10); got != "aaaaaaa..." {
		t.Errorf("got %q", got)
	}
}

func TestNewProviderRouter(t *testing.T) {
	r := newProviderRouter([]config.ProviderConfig{
		{ID: "groq", Type: "openai", Endpoint: "https://api.groq.com/openai/v1", Models: []string{"llama3-70b-8192"}, Fallbacks: []string{"local"}},
		{ID: "local", Type: "ollama", Endpoint: "http://localhost:11434/v1"},
		{ID: "mystery", Type: "carrier-pigeon"},
	}, zap.NewNop())

	if len(r.ListProviders()) != 2 {
		t.Errorf("providers = %d", len(r.ListProviders()))
	}
	p, err := r.Resolve("llama3-70b-8192")
	if err != nil || p.ID() != "groq" {
		t.Errorf("resolve = %v, %v", p, err)
	}
	if r.DefaultID() != "groq" {
		t.Errorf("default = %s", r.DefaultID())
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := newLogger("chatty"); err == nil {
		t.Error("bad level accepted")
	}
	if _, err := newLogger("warn"); err != nil {
		t.Error(err)
	}
}

func TestReadQuestion(t *testing.T) {
	cmd := &cobra.Command{}
	var prompt bytes.Buffer
	cmd.SetErr(&prompt)

	cmd.SetIn(strings.NewReader("  Who leads all-time in assists?\nignored\n"))
	got, err := readQuestion(cmd, nil)
	if err != nil || got != "Who leads all-time in assists?" {
		t.Errorf("got %q, %v", got, err)
	}
	if !strings.Contains(prompt.String(), "question") {
		t.Errorf("no prompt written: %q", prompt.String())
	}

	cmd.SetIn(strings.NewReader("Lakers game"))
	if got, err := readQuestion(cmd, nil); err != nil || got != "Lakers game" {
		t.Errorf("unterminated line: %q, %v", got, err)
	}

	cmd.SetIn(strings.NewReader("\n"))
	if _, err := readQuestion(cmd, nil); err == nil {
		t.Error("empty question accepted")
	}

	if got, _ := readQuestion(cmd, []string{"Celtics", "recap"}); got != "Celtics recap" {
		t.Errorf("args = %q", got)
	}
}
