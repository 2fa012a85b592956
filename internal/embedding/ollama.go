package embedding

import "context"

// LocalProvider calls Ollama's batch /api/embed endpoint.
type LocalProvider struct {
	*httpEmbedder
}

// NewLocalProvider creates a new LocalProvider from the given Config.
func NewLocalProvider(cfg Config) *LocalProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	return &LocalProvider{httpEmbedder: newHTTPEmbedder(cfg)}
}

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector per text, in input order.
func (p *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp ollamaResponse
	if err := p.post(ctx, "/api/embed", ollamaRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if err := p.observe(resp.Embeddings, len(texts)); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
