package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nidhogg/statcrew/internal/stats"
)

// LeadersFetcher looks up all-time leaderboards. *stats.NBAClient satisfies it.
type LeadersFetcher interface {
	AllTimeLeaders(ctx context.Context, category string, n int) ([]stats.Leader, error)
}

// RegisterLeadersCommand registers /leaders, which answers directly from the
// stats provider without a crew run.
func RegisterLeadersCommand(reg *Registry, nba LeadersFetcher) {
	usage := "/leaders <" + strings.Join(stats.LeaderCategories, "|") + "> [n]"
	reg.Register(&Command{
		Name:        "leaders",
		Description: "Show NBA all-time leaders in a category",
		Usage:       usage,
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			fields := strings.Fields(args)
			if len(fields) == 0 {
				return &CommandResult{Content: "Usage: " + usage}, nil
			}
			category := strings.ToUpper(fields[0])
			if !stats.ValidCategory(category) {
				return &CommandResult{Content: "Invalid stat category. Valid options are: " + strings.Join(stats.LeaderCategories, ", ")}, nil
			}
			n := stats.DefaultLeadersLimit
			if len(fields) > 1 {
				v, err := strconv.Atoi(fields[1])
				if err != nil || v <= 0 {
					return &CommandResult{Content: "top_n must be a positive integer"}, nil
				}
				n = v
			}

			leaders, err := nba.AllTimeLeaders(ctx, category, n)
			if err != nil {
				return nil, err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "All-time %s leaders:\n", category)
			for _, l := range leaders {
				fmt.Fprintf(&b, "%3d. %s %s", l.Rank, l.PlayerName, l.ValueString())
				if l.Team != "" {
					fmt.Fprintf(&b, " (%s)", l.Team)
				}
				b.WriteByte('\n')
			}
			return &CommandResult{Content: b.String(), Data: leaders}, nil
		},
	})
}
