//go:build e2e

package e2e

import (
	"context"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nidhogg/statcrew/internal/provider"
	"github.com/nidhogg/statcrew/internal/rag"
	"github.com/nidhogg/statcrew/internal/vectorstore"
)

// bagOfWords embeds text as normalized hashed word counts, so passages
// sharing words with a query score higher.
type bagOfWords struct{}

const bowDim = 128

func (bagOfWords) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, bowDim)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(w, ".,?!:;()")))
			v[h.Sum32()%bowDim]++
		}
		var norm float64
		for _, x := range v {
			norm += float64(x * x)
		}
		if norm > 0 {
			for j := range v {
				v[j] /= float32(math.Sqrt(norm))
			}
		}
		out[i] = v
	}
	return out, nil
}

func (bagOfWords) Dimension() int { return bowDim }

// echoChat answers with the prompt it was given.
type echoChat struct{ prompt string }

func (e *echoChat) Chat(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	e.prompt = req.Messages[len(req.Messages)-1].Content
	return &provider.ChatResponse{Content: "The rookie scale is set by draft position.", Usage: provider.Usage{TotalTokens: 7}}, nil
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"cba.md": "# Rookie Scale\n\nFirst round picks sign rookie scale contracts set by draft position.\n\n" +
			"# Luxury Tax\n\nTeams above the tax level pay the luxury tax on every dollar over it.",
		"notes.html": "<html><head><script>var x=1;</script></head><body><nav>menu</nav>" +
			"<h1>Two-Way Contracts</h1><p>Two-way players split time between the G League and the NBA.</p></body></html>",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRAGIngestAndAnswer(t *testing.T) {
	ctx := context.Background()
	vectors, err := vectorstore.NewClient(vectorstore.QdrantConfig{Host: testQdrant.Host, Port: testQdrant.Port})
	if err != nil {
		t.Fatal(err)
	}
	defer vectors.Close()

	chat := &echoChat{}
	ix := rag.NewIndex(rag.Config{Collection: "e2e_cba", ChunkSize: 120, ChunkOverlap: 10, TopK: 2, Model: "llama3-70b-8192"},
		bagOfWords{}, vectors, chat, testLogger)

	if _, err := ix.Answer(ctx, "anything", 0); err == nil {
		t.Error("answer from a missing collection should fail")
	}

	docs, err := rag.LoadPath(writeCorpus(t))
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	st, err := ix.Ingest(ctx, docs, true)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if st.Documents != 2 || st.Chunks < 3 {
		t.Fatalf("ingest stats = %+v", st)
	}

	count, err := vectors.Count(ctx, ix.Collection())
	if err != nil {
		t.Fatal(err)
	}
	if int(count) != st.Chunks {
		t.Errorf("points = %d, chunks = %d", count, st.Chunks)
	}

	// Re-ingesting overwrites the same chunk IDs.
	if _, err := ix.Ingest(ctx, docs, false); err != nil {
		t.Fatal(err)
	}
	if again, _ := vectors.Count(ctx, ix.Collection()); again != count {
		t.Errorf("re-ingest changed point count %d -> %d", count, again)
	}

	results, err := ix.Query(ctx, "rookie scale contracts for first round picks", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 || !strings.Contains(results[0].Content, "rookie scale") {
		t.Fatalf("results = %+v", results)
	}
	if !strings.Contains(results[0].Source, "cba.md") {
		t.Errorf("source = %q", results[0].Source)
	}

	ans, err := ix.Answer(ctx, "What sets the rookie scale?", 0)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(chat.prompt, "Answer the question based only on the following context:") ||
		!strings.Contains(chat.prompt, rag.ContextSeparator) ||
		!strings.HasSuffix(strings.TrimSpace(chat.prompt), "What sets the rookie scale?") {
		t.Errorf("prompt:\n%s", chat.prompt)
	}
	if len(ans.Sources) != 2 || ans.Usage.TotalTokens != 7 {
		t.Errorf("answer = %+v", ans)
	}

	adapter := rag.NewProviderAdapter(ix)
	hits, err := adapter.Query(ctx, "two-way players G League", 1)
	if err != nil || len(hits) != 1 || !strings.Contains(hits[0].Content, "Two-way") {
		t.Errorf("adapter hits = %+v, %v", hits, err)
	}
	if strings.Contains(hits[0].Content, "menu") || strings.Contains(hits[0].Content, "var x") {
		t.Error("html boilerplate was indexed")
	}

	if err := vectors.DeleteCollection(ctx, ix.Collection()); err != nil {
		t.Fatal(err)
	}
	if err := vectors.DeleteCollection(ctx, ix.Collection()); err != nil {
		t.Errorf("dropping a missing collection: %v", err)
	}
}
