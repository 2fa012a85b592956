// Package rag indexes league documents in Qdrant and answers questions from
// the retrieved passages.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/nidhogg/statcrew/internal/agent"
	"github.com/nidhogg/statcrew/internal/embedding"
	"github.com/nidhogg/statcrew/internal/provider"
	"github.com/nidhogg/statcrew/internal/vectorstore"
	"go.uber.org/zap"
)

// Payload keys stored with each chunk.
const (
	KeyContent = "content"
	KeySource  = "source"
	KeyPage    = "page"
	KeyChunkID = "chunk_id"
)

// ContextSeparator joins retrieved passages in the answer prompt.
const ContextSeparator = "\n\n----\n\n"

// PromptTemplate is filled with the retrieved context and the question.
const PromptTemplate = `
Answer the question based only on the following context:

{context}

---

Answer the question based on the above context: {question}
`

// chunkNamespace seeds the UUIDv5 point IDs so re-ingesting a file
// overwrites its previous chunks.
var chunkNamespace = uuid.MustParse("6f1c2a4e-1d0b-5a43-9d5e-6c0b7b3f2a91")

// ErrNoContext is returned by Answer when the index holds nothing relevant.
var ErrNoContext = errors.New("no matching passages in the index")

// VectorStore is the subset of the Qdrant client the index uses.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, dimension uint64) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
	Search(ctx context.Context, collection string, vector []float32, topK uint64) ([]*vectorstore.SearchResult, error)
}

// Config tunes chunking and retrieval.
type Config struct {
	Collection   string
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	// Model answers questions in Answer.
	Model string
	// BatchSize bounds the chunks embedded and upserted per request.
	BatchSize int
}

// Index is a document collection backed by an embedder and a vector store.
type Index struct {
	cfg      Config
	embedder embedding.Provider
	store    VectorStore
	chat     agent.Chatter
	splitter *Splitter
	logger   *zap.Logger
}

// NewIndex creates an index. chat may be nil when Answer is not used.
func NewIndex(cfg Config, embedder embedding.Provider, store VectorStore, chat agent.Chatter, logger *zap.Logger) *Index {
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &Index{
		cfg:      cfg,
		embedder: embedder,
		store:    store,
		chat:     chat,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:   logger,
	}
}

// Collection returns the Qdrant collection name.
func (ix *Index) Collection() string { return ix.cfg.Collection }

// Chunk is one piece of a document ready for embedding.
type Chunk struct {
	ID     string
	Label  string // source:page:index
	Source string
	Page   int
	Text   string
}

// Chunks splits docs and assigns each piece a deterministic ID.
func (ix *Index) Chunks(docs []Document) []Chunk {
	var out []Chunk
	for _, d := range docs {
		for i, text := range ix.splitter.Split(d.Text) {
			label := fmt.Sprintf("%s:%d:%d", d.Source, d.Page, i)
			out = append(out, Chunk{
				ID:     uuid.NewSHA1(chunkNamespace, []byte(label)).String(),
				Label:  label,
				Source: d.Source,
				Page:   d.Page,
				Text:   text,
			})
		}
	}
	return out
}

// IngestStats summarises an ingest.
type IngestStats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// Ingest splits, embeds and upserts docs. With reset the collection is
// dropped first.
func (ix *Index) Ingest(ctx context.Context, docs []Document, reset bool) (*IngestStats, error) {
	if reset {
		if err := ix.store.DeleteCollection(ctx, ix.cfg.Collection); err != nil {
			return nil, fmt.Errorf("reset: %w", err)
		}
		ix.logger.Info("collection cleared", zap.String("collection", ix.cfg.Collection))
	}

	chunks := ix.Chunks(docs)
	stats := &IngestStats{Documents: len(docs), Chunks: len(chunks)}
	if len(chunks) == 0 {
		return stats, nil
	}

	ensured := false
	for start := 0; start < len(chunks); start += ix.cfg.BatchSize {
		end := min(start+ix.cfg.BatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(vectors))
		}

		if !ensured {
			if err := ix.store.EnsureCollection(ctx, ix.cfg.Collection, uint64(len(vectors[0]))); err != nil {
				return nil, err
			}
			ensured = true
		}

		points := make([]vectorstore.Point, len(batch))
		for i, c := range batch {
			points[i] = vectorstore.Point{
				ID:     c.ID,
				Vector: vectors[i],
				Payload: map[string]string{
					KeyContent: c.Text,
					KeySource:  c.Source,
					KeyPage:    strconv.Itoa(c.Page),
					KeyChunkID: c.Label,
				},
			}
		}
		if err := ix.store.Upsert(ctx, ix.cfg.Collection, points); err != nil {
			return nil, err
		}
		ix.logger.Debug("batch indexed", zap.Int("from", start), zap.Int("to", end))
	}

	ix.logger.Info("documents indexed",
		zap.String("collection", ix.cfg.Collection),
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks))
	return stats, nil
}

// Result is one retrieved passage.
type Result struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
}

// Query returns the topK passages closest to query, best first. topK <= 0
// uses the configured default.
func (ix *Index) Query(ctx context.Context, query string, topK int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is required")
	}
	if topK <= 0 {
		topK = ix.cfg.TopK
	}
	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	hits, err := ix.store.Search(ctx, ix.cfg.Collection, vectors[0], uint64(topK))
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		source := h.Payload[KeyChunkID]
		if source == "" {
			source = h.ID
		}
		out = append(out, Result{Content: h.Payload[KeyContent], Source: source, Score: h.Score})
	}
	return out, nil
}

// Answer is a generated reply with the passages it was built from.
type Answer struct {
	Question string         `json:"question"`
	Text     string         `json:"answer"`
	Sources  []string       `json:"sources"`
	Results  []Result       `json:"results"`
	Usage    provider.Usage `json:"usage"`
}

// BuildPrompt fills PromptTemplate.
func BuildPrompt(question string, results []Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Content
	}
	return strings.NewReplacer(
		"{context}", strings.Join(parts, ContextSeparator),
		"{question}", question,
	).Replace(PromptTemplate)
}

// Answer retrieves context for question and asks the configured model.
func (ix *Index) Answer(ctx context.Context, question string, topK int) (*Answer, error) {
	if ix.chat == nil {
		return nil, errors.New("answer: no chat model configured")
	}
	results, err := ix.Query(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoContext
	}

	resp, err := ix.chat.Chat(ctx, &provider.ChatRequest{
		Model:    ix.cfg.Model,
		Messages: []provider.Message{{Role: "user", Content: BuildPrompt(question, results)}},
	})
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}

	ans := &Answer{Question: question, Text: resp.Content, Results: results, Usage: resp.Usage}
	for _, r := range results {
		ans.Sources = append(ans.Sources, r.Source)
	}
	return ans, nil
}
