package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestParseSubstitutesEnv(t *testing.T) {
	t.Setenv("STATCREW_TEST_KEY", "gsk-123")

	cfg, err := Parse([]byte(`{
		"crew": {"api_key": "${STATCREW_TEST_KEY}", "default_lookback_days": 2},
		"providers": [
			{"id": "groq", "type": "openai", "endpoint": "${GROQ_ENDPOINT_UNSET:https://api.groq.com/openai/v1}"},
			{"id": "ollama", "type": "ollama", "endpoint": "http://localhost:11434/v1"}
		]
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Crew.APIKey.Reveal() != "gsk-123" {
		t.Errorf("api key = %q", cfg.Crew.APIKey.Reveal())
	}
	if cfg.Providers[0].Endpoint != "https://api.groq.com/openai/v1" {
		t.Errorf("default not applied: %q", cfg.Providers[0].Endpoint)
	}
	if cfg.Providers[0].APIKey != "gsk-123" {
		t.Errorf("groq provider should inherit crew key, got %q", cfg.Providers[0].APIKey)
	}
	if cfg.Providers[1].APIKey != "" {
		t.Errorf("ollama provider should stay keyless, got %q", cfg.Providers[1].APIKey)
	}
	if cfg.Crew.DefaultLookbackDays != 2 {
		t.Errorf("lookback = %d, want 2", cfg.Crew.DefaultLookbackDays)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{"crew": {"models": {"editor": "llama-3.3-70b-versatile"}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Crew.Models["editor"] != "llama-3.3-70b-versatile" {
		t.Errorf("override lost: %q", cfg.Crew.Models["editor"])
	}
	if cfg.Crew.Models["writer_gemma"] != "gemma2-9b-it" {
		t.Errorf("default model missing: %q", cfg.Crew.Models["writer_gemma"])
	}
	if cfg.Crew.DefaultLookbackDays != 1 {
		t.Errorf("lookback = %d, want 1", cfg.Crew.DefaultLookbackDays)
	}
	if cfg.RAG.ChunkSize != 800 || cfg.RAG.ChunkOverlap != 80 || cfg.RAG.TopK != 5 {
		t.Errorf("rag defaults = %+v", cfg.RAG)
	}
	if cfg.Crew.MaxToolRounds != 5 {
		t.Errorf("max tool rounds = %d", cfg.Crew.MaxToolRounds)
	}
}

func TestSecretRedacted(t *testing.T) {
	s := Secret("gsk-secret")
	if got := fmt.Sprint(s); got != "[redacted]" {
		t.Errorf("fmt = %q", got)
	}
	b, _ := json.Marshal(struct {
		Key Secret `json:"key"`
	}{s})
	if string(b) != `{"key":"[redacted]"}` {
		t.Errorf("json = %s", b)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statcrew.json")
	if err := os.WriteFile(path, []byte(`{"server": {"port": 9090}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}
