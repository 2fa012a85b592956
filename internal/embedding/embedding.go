// Package embedding turns text into vectors for the document index.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Provider generates vector embeddings from text.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string        // "api" or "local"
	Endpoint  string
	Model     string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// New returns the provider named by cfg.Provider.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "local", "ollama":
		return NewLocalProvider(cfg), nil
	case "api", "openai":
		return NewAPIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}

// httpEmbedder is the transport shared by the HTTP providers. The observed
// vector size replaces the configured one after the first response.
type httpEmbedder struct {
	endpoint  string
	model     string
	apiKey    string
	dimension int
	observed  atomic.Int64
	client    *http.Client
}

func newHTTPEmbedder(cfg Config) *httpEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpEmbedder{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

func (h *httpEmbedder) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("embedding: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("embedding: API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("embedding: decode response: %w", err)
	}
	return nil
}

func (h *httpEmbedder) observe(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("embedding: got %d vectors for %d inputs", len(vectors), want)
	}
	if len(vectors) > 0 && len(vectors[0]) > 0 {
		h.observed.CompareAndSwap(0, int64(len(vectors[0])))
	}
	return nil
}

// Dimension returns the observed vector size, or the configured one before
// the first response.
func (h *httpEmbedder) Dimension() int {
	if d := h.observed.Load(); d > 0 {
		return int(d)
	}
	return h.dimension
}
