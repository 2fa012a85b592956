package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/nidhogg/statcrew/internal/stats"
	"github.com/spf13/cobra"
)

var (
	leadersN    int
	leadersJSON bool
)

var leadersCmd = &cobra.Command{
	Use:   "leaders CATEGORY",
	Short: "Show NBA all-time leaders without an LLM",
	Long: `Query stats.nba.com for the all-time leaders in one category.

Categories: PTS, AST, REB, STL, BLK, FG_PCT, FT_PCT, FG3_PCT`,
	Args: cobra.ExactArgs(1),
	RunE: runLeaders,
}

func init() {
	leadersCmd.Flags().IntVarP(&leadersN, "n", "n", 10, "Number of players")
	leadersCmd.Flags().BoolVar(&leadersJSON, "json", false, "Print the JSON records the crew tool returns")
	rootCmd.AddCommand(leadersCmd)
}

func runLeaders(cmd *cobra.Command, args []string) error {
	category := strings.ToUpper(args[0])
	if !stats.ValidCategory(category) {
		return fmt.Errorf("invalid category %q: must be one of %s", args[0], strings.Join(stats.LeaderCategories, ", "))
	}
	if leadersN <= 0 {
		return fmt.Errorf("--n must be a positive integer")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	leaders, err := a.nba.AllTimeLeaders(cmd.Context(), category, leadersN)
	if err != nil {
		return err
	}

	if leadersJSON {
		out, err := stats.FormatLeaders(leaders)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tPLAYER\t%s\tTEAM\n", category)
	for _, l := range leaders {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l.Rank, l.PlayerName, l.ValueString(), l.Team)
	}
	return w.Flush()
}
