package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/statcrew/internal/provider"
)

// Built-in tool names.
const (
	ToolCurrentDate = "get_current_date"
	ToolRAGSearch   = "rag_search"
)

// RegisterBuiltinTools adds the date tool. now is injectable for tests.
func RegisterBuiltinTools(reg *ToolRegistry, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	reg.Register(provider.NewFunctionTool(ToolCurrentDate,
		"Get today's date and yesterday's date in YYYY-MM-DD form. Use it to resolve phrases like 'last night'.",
		map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	), func(ctx context.Context, args string) (string, error) {
		t := now()
		b, _ := json.Marshal(map[string]string{
			"today":     t.Format("2006-01-02"),
			"yesterday": t.AddDate(0, 0, -1).Format("2006-01-02"),
			"weekday":   t.Weekday().String(),
		})
		return string(b), nil
	})
}

// RAGProvider answers similarity queries against the document index.
type RAGProvider interface {
	Query(ctx context.Context, query string, topK int) ([]RAGQueryResult, error)
}

// RAGQueryResult is one retrieved chunk.
type RAGQueryResult struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
}

// RegisterRAGTools exposes the document index as the rag_search tool.
func RegisterRAGTools(reg *ToolRegistry, rag RAGProvider, defaultTopK int) {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	reg.Register(provider.NewFunctionTool(ToolRAGSearch,
		"Search the indexed league documents (for example the collective bargaining agreement) and return the most relevant passages.",
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]string{"type": "string", "description": "What to look for"},
				"top_k": map[string]string{"type": "integer", "description": "Number of passages (default 5)"},
			},
			"required": []string{"query"},
		},
	), func(ctx context.Context, args string) (string, error) {
		var p struct {
			Query string `json:"query"`
			TopK  int    `json:"top_k"`
		}
		if err := json.Unmarshal([]byte(args), &p); err != nil {
			return ErrorPayload(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if strings.TrimSpace(p.Query) == "" {
			return ErrorPayload("query is required"), nil
		}
		if p.TopK <= 0 {
			p.TopK = defaultTopK
		}
		results, err := rag.Query(ctx, p.Query, p.TopK)
		if err != nil {
			return "", fmt.Errorf("rag search: %w", err)
		}
		if len(results) == 0 {
			return ErrorPayload("no matching passages"), nil
		}
		b, _ := json.MarshalIndent(results, "", "  ")
		return string(b), nil
	})
}
