package rag

import (
	"context"

	"github.com/nidhogg/statcrew/internal/agent"
)

// ProviderAdapter exposes an Index as the agent engine's RAGProvider.
type ProviderAdapter struct {
	inner *Index
}

func NewProviderAdapter(ix *Index) *ProviderAdapter {
	return &ProviderAdapter{inner: ix}
}

func (a *ProviderAdapter) Query(ctx context.Context, query string, topK int) ([]agent.RAGQueryResult, error) {
	results, err := a.inner.Query(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	out := make([]agent.RAGQueryResult, len(results))
	for i, r := range results {
		out[i] = agent.RAGQueryResult{Content: r.Content, Source: r.Source, Score: r.Score}
	}
	return out, nil
}
