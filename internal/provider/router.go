package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrNoProvider is returned when no provider can serve a model.
var ErrNoProvider = errors.New("no provider available")

// Router resolves a model identifier to the provider that serves it.
type Router struct {
	providers map[string]Provider
	models    map[string]string   // model -> providerID
	fallbacks map[string][]string // providerID -> fallback provider chain
	defaults  string              // default provider ID
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		models:    make(map[string]string),
		fallbacks: make(map[string][]string),
		logger:    logger,
	}
}

// Register adds a provider and binds the models it declares.
func (r *Router) Register(p Provider, models ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	for _, m := range models {
		r.models[m] = p.ID()
	}
	r.logger.Info("registered provider",
		zap.String("id", p.ID()),
		zap.String("name", p.Name()),
		zap.Strings("models", models))
}

// SetDefault sets the provider used for models with no binding.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// DefaultID returns the current default provider ID.
func (r *Router) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// SetFallbacks configures the providers tried when providerID fails.
func (r *Router) SetFallbacks(providerID string, fallbackIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[providerID] = fallbackIDs
}

// Resolve returns the provider that serves model.
func (r *Router) Resolve(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.getProvider(model)
	if p == nil {
		return nil, fmt.Errorf("%w for model %s", ErrNoProvider, model)
	}
	return p, nil
}

// Chat sends a request to the provider bound to req.Model, walking the
// fallback chain on failure. Cancellation is never retried.
func (r *Router) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	r.mu.RLock()
	primary := r.getProvider(req.Model)
	var chain []Provider
	if primary != nil {
		for _, id := range r.fallbacks[primary.ID()] {
			if fb, ok := r.providers[id]; ok {
				chain = append(chain, fb)
			}
		}
	}
	r.mu.RUnlock()

	if primary == nil {
		return nil, fmt.Errorf("%w for model %s", ErrNoProvider, req.Model)
	}

	resp, err := primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if len(chain) > 0 {
		r.logger.Warn("primary provider failed, trying fallbacks",
			zap.String("provider", primary.ID()),
			zap.String("model", req.Model),
			zap.Error(err))
	}

	for _, fb := range chain {
		resp, err = fb.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed", zap.String("provider", fb.ID()), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("model %s: %w", req.Model, err)
}

// ChatStream sends a streaming request to the provider bound to req.Model.
func (r *Router) ChatStream(ctx context.Context, req *ChatRequest) (<-chan *StreamChunk, error) {
	p, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}
	return p.ChatStream(ctx, req)
}

func (r *Router) getProvider(model string) Provider {
	if pid, ok := r.models[model]; ok {
		if p, ok := r.providers[pid]; ok {
			return p
		}
	}
	if p, ok := r.providers[r.defaults]; ok {
		return p
	}
	return nil
}

// ListProviders returns all registered providers sorted by ID.
func (r *Router) ListProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}
