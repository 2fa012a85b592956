package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "statcrew",
	Short: "statcrew - LLM crews that answer NBA and MLB stats questions",
	Long: `statcrew routes a sports question to a crew of LLM agents, runs the
crew's task graph against the NBA and MLB stats APIs and prints the answer.

Examples:
  statcrew ask "How did the Lakers do last night?"
  statcrew ask "Who are the all-time assists leaders?"
  statcrew leaders PTS --n 5
  statcrew serve`,
	SilenceUsage: true,
}

func init() {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/statcrew.json"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "Path to the JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
