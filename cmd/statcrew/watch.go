package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/statcrew/internal/bus"
	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/spf13/cobra"
)

var (
	watchRun       string
	watchFromStart bool
	watchJSON      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow crew task events as they happen",
	Long: `Tail the Redis event stream and print task state changes from every
process running crews against the same Redis.

Examples:
  statcrew watch
  statcrew watch --run 3f0c... --from-start`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRun, "run", "", "Only show events of this run")
	watchCmd.Flags().BoolVar(&watchFromStart, "from-start", false, "Replay the retained stream first")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print raw JSON events")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	events, err := a.openBus(ctx)
	if err != nil {
		return err
	}
	if events == nil {
		return errors.New("watch needs database.redis.url in the config")
	}
	defer events.Close()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", events.Stream())
	for ev := range events.Subscribe(ctx, bus.SubscribeOptions{RunID: watchRun, FromStart: watchFromStart}) {
		if watchJSON {
			if err := printJSON(ev); err != nil {
				return err
			}
			continue
		}
		fmt.Println(formatEvent(ev))
	}
	return nil
}

// formatEvent renders one event as a log line.
func formatEvent(ev *crew.Event) string {
	run := ev.RunID
	if len(run) > 8 {
		run = run[:8]
	}
	ts := ev.Timestamp.Local().Format("15:04:05")
	if ev.TaskID == "" {
		line := fmt.Sprintf("%s %s %-14s run %s", ts, run, ev.Graph, ev.Status)
		if ev.Duration > 0 {
			line += " in " + ev.Duration.Round(time.Millisecond).String()
		}
		if ev.Error != "" {
			line += ": " + ev.Error
		}
		return line
	}
	line := fmt.Sprintf("%s %s %-14s %-22s %-14s %s", ts, run, ev.Graph, ev.TaskID, ev.AgentID, ev.Status)
	if ev.Status == crew.TaskCompleted {
		line += " in " + ev.Duration.Round(time.Millisecond).String()
	}
	if ev.Error != "" {
		line += ": " + ev.Error
	}
	return line
}
