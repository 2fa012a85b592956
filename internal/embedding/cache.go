package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider memoises embeddings by text. Repeated queries and
// re-ingested chunks skip the embedding endpoint.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[[32]byte, []float32]
}

// NewCachedProvider wraps inner with an LRU cache of size entries.
func NewCachedProvider(inner Provider, size int) (*CachedProvider, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[[32]byte, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &CachedProvider{inner: inner, cache: c}, nil
}

// Embed serves cached vectors and sends only the misses upstream.
func (p *CachedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, t := range texts {
		if v, ok := p.cache.Get(sha256.Sum256([]byte(t))); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := p.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedding: got %d vectors for %d inputs", len(vectors), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		p.cache.Add(sha256.Sum256([]byte(missTexts[j])), vectors[j])
	}
	return out, nil
}

// Dimension delegates to the wrapped provider.
func (p *CachedProvider) Dimension() int { return p.inner.Dimension() }

// Len reports the number of cached vectors.
func (p *CachedProvider) Len() int { return p.cache.Len() }
