package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/statcrew/internal/agent"
)

// RegisterSearchCommand registers /search over the document index.
func RegisterSearchCommand(reg *Registry, searcher agent.RAGProvider, topK int) {
	if topK <= 0 {
		topK = 5
	}
	reg.Register(&Command{
		Name:        "search",
		Description: "Search the indexed league documents",
		Usage:       "/search <query>",
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			if strings.TrimSpace(args) == "" {
				return &CommandResult{Content: "Usage: /search <query>"}, nil
			}
			results, err := searcher.Query(ctx, args, topK)
			if err != nil {
				return nil, fmt.Errorf("search: %w", err)
			}
			if len(results) == 0 {
				return &CommandResult{Content: "No results found for: " + args}, nil
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "Search results for %q:\n\n", args)
			for i, r := range results {
				fmt.Fprintf(&sb, "%d. [%.2f] %s\n   %s\n\n", i+1, r.Score, r.Source, r.Content)
			}
			return &CommandResult{Content: sb.String(), Data: results}, nil
		},
	})
}
