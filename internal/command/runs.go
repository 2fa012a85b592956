package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nidhogg/statcrew/internal/store"
)

// RunLister lists recorded crew runs. *store.Store satisfies it.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*store.Run, error)
}

// RegisterRunsCommand registers /runs.
func RegisterRunsCommand(reg *Registry, runs RunLister) {
	reg.Register(&Command{
		Name:        "runs",
		Description: "Show recent crew runs",
		Usage:       "/runs [n]",
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			limit := 5
			if args != "" {
				n, err := strconv.Atoi(args)
				if err != nil || n <= 0 {
					return &CommandResult{Content: "Usage: /runs [n]"}, nil
				}
				limit = n
			}
			list, err := runs.ListRuns(ctx, limit)
			if err != nil {
				return nil, err
			}
			if len(list) == 0 {
				return &CommandResult{Content: "No runs recorded yet."}, nil
			}
			var b strings.Builder
			b.WriteString("Recent runs:\n")
			for _, r := range list {
				fmt.Fprintf(&b, "  %s %s %-9s %s %q\n",
					r.StartedAt.Format("2006-01-02 15:04"), r.ID[:min(8, len(r.ID))], r.Status,
					r.Duration.Round(time.Second), truncate(r.Request, 60))
			}
			return &CommandResult{Content: b.String(), Data: list}, nil
		},
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
