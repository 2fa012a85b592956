package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	askGraph string
	askDate  string
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [QUESTION]",
	Short: "Answer a stats question with an LLM crew",
	Long: `Route a question to the game recap or all-time leaders crew and run it.

Questions that mention all-time, leaders, records, history or careers go to
the player_stats crew; everything else is a game recap.

With no argument the question is read as one line from stdin.

Examples:
  statcrew ask
  statcrew ask "How did the Warriors do last night?"
  statcrew ask --date 2024-02-28 "Celtics game recap"
  statcrew ask --graph mlb_game_recap "Yankees game yesterday"
  statcrew ask --json "Who has the most career blocks?"`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askGraph, "graph", "g", "", "Run this graph instead of routing by keyword")
	askCmd.Flags().StringVarP(&askDate, "date", "d", "", "Fallback game date (YYYY-MM-DD) when the question names none")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full run result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	text, err := readQuestion(cmd, args)
	if err != nil {
		return err
	}
	req := crew.AskRequest{Text: text, Graph: crew.GraphName(askGraph)}
	if askDate != "" {
		d, err := time.Parse("2006-01-02", askDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", askDate)
		}
		req.FallbackDate = d
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	var recorder crew.RunRecorder
	runs, err := a.openStore(ctx)
	if err != nil {
		a.logger.Warn("PostgreSQL unavailable, run will not be recorded", zap.Error(err))
	} else if runs != nil {
		defer runs.Close()
		recorder = runs
	}

	var sink crew.EventSink
	events, err := a.openBus(ctx)
	if err != nil {
		a.logger.Warn("Redis unavailable, task events will not be streamed", zap.Error(err))
	} else if events != nil {
		defer events.Close()
		sink = events
	}

	svc := crew.NewService(a.builder, a.runner(sink), recorder, a.logger)
	ans, err := svc.Ask(ctx, req)
	if err != nil {
		return err
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}
	fmt.Println(ans.Display)
	return nil
}

// readQuestion joins args, or prompts for one line on stdin when there are
// none.
func readQuestion(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Enter your sports question: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read question: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no question given")
	}
	return line, nil
}
