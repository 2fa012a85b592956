package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nidhogg/statcrew/internal/store"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "List recorded crew runs or show one run",
	Long: `Without arguments, list the most recent runs stored in Postgres.
With a run ID, show that run's tasks in execution order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of runs to list")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	runs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if runs == nil {
		return errors.New("run history needs database.postgres.dsn in the config")
	}
	defer runs.Close()

	if len(args) == 1 {
		r, err := runs.GetRun(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("run %s not found", args[0])
		}
		if err != nil {
			return err
		}
		if historyJSON {
			return printJSON(r)
		}
		printRun(r)
		return nil
	}

	list, err := runs.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tGRAPH\tSTATUS\tDURATION\tTOKENS\tREQUEST")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.ID, r.Graph, r.Status,
			r.Duration.Round(time.Second), r.TotalTokens, oneLine(r.Request, 50))
	}
	return w.Flush()
}

func printRun(r *store.Run) {
	fmt.Printf("Run %s (%s) %s in %s, %d tokens\n", r.ID, r.Graph, r.Status, r.Duration.Round(time.Millisecond), r.TotalTokens)
	fmt.Printf("Request: %s\n", r.Request)
	if r.Error != "" {
		fmt.Printf("Error: %s\n", r.Error)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tAGENT\tMODEL\tSTATUS\tDURATION\tTOOLS")
	for _, t := range r.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.TaskID, t.AgentID, t.Model, t.Status, t.Duration.Round(time.Millisecond), strings.Join(t.ToolCalls, ","))
	}
	w.Flush()

	if r.Output != "" {
		fmt.Printf("\n%s\n", r.Output)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// oneLine flattens s and cuts it to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
