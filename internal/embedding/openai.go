package embedding

import "context"

// APIProvider calls an OpenAI-compatible /embeddings endpoint.
type APIProvider struct {
	*httpEmbedder
}

// NewAPIProvider creates a new APIProvider from the given Config.
func NewAPIProvider(cfg Config) *APIProvider {
	return &APIProvider{httpEmbedder: newHTTPEmbedder(cfg)}
}

type apiRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type apiResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per text, in input order.
func (p *APIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp apiResponse
	if err := p.post(ctx, "/embeddings", apiRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(vectors) || vectors[idx] != nil {
			idx = i
		}
		vectors[idx] = d.Embedding
	}
	if err := p.observe(vectors, len(texts)); err != nil {
		return nil, err
	}
	return vectors, nil
}
