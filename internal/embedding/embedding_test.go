package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestAPIProviderEmbed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		// Out of order on purpose; index decides placement.
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0.4,0.5,0.6]},{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAPIProvider(Config{Endpoint: srv.URL + "/", Model: "text-embedding-3-small", APIKey: "k", Dimension: 1536})
	if p.Dimension() != 1536 {
		t.Errorf("configured dimension = %d", p.Dimension())
	}

	vectors, err := p.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 0.1 || vectors[1][0] != 0.4 {
		t.Fatalf("vectors = %v", vectors)
	}
	if p.Dimension() != 3 {
		t.Errorf("observed dimension = %d, want 3", p.Dimension())
	}
}

func TestLocalProviderEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := ollamaResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{1, 0})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewLocalProvider(Config{Endpoint: srv.URL, Model: "nomic-embed-text"})
	vectors, err := p.Embed(context.Background(), []string{"x", "y", "z"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 3 || p.Dimension() != 2 {
		t.Errorf("got %d vectors, dim %d", len(vectors), p.Dimension())
	}
}

func TestEmbedStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	p := NewLocalProvider(Config{Endpoint: srv.URL})
	if _, err := p.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewProvider(t *testing.T) {
	if _, ok := mustNew(t, Config{Provider: "api"}).(*APIProvider); !ok {
		t.Error("api provider expected")
	}
	if _, ok := mustNew(t, Config{}).(*LocalProvider); !ok {
		t.Error("local provider is the default")
	}
	if _, err := New(Config{Provider: "bogus"}); err == nil {
		t.Error("unknown provider accepted")
	}
}

func mustNew(t *testing.T, cfg Config) Provider {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

type countingProvider struct {
	calls atomic.Int32
	seen  []string
}

func (c *countingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.seen = append(c.seen, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingProvider) Dimension() int { return 1 }

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{}
	p, err := NewCachedProvider(inner, 8)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := p.Embed(ctx, []string{"salary cap", "luxury tax"}); err != nil {
		t.Fatal(err)
	}
	vectors, err := p.Embed(ctx, []string{"luxury tax", "rookie scale", "salary cap"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 2 {
		t.Errorf("inner calls = %d", inner.calls.Load())
	}
	if len(inner.seen) != 3 || inner.seen[2] != "rookie scale" {
		t.Errorf("only misses should reach the provider: %v", inner.seen)
	}
	if vectors[0][0] != 10 || vectors[1][0] != 12 || vectors[2][0] != 10 {
		t.Errorf("vectors out of order: %v", vectors)
	}
	if p.Len() != 3 {
		t.Errorf("cache len = %d", p.Len())
	}

	// Fully cached batch makes no call.
	p.Embed(ctx, []string{"salary cap"})
	if inner.calls.Load() != 2 {
		t.Error("cached text hit the provider")
	}
}
