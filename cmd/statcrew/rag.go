package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nidhogg/statcrew/internal/rag"
	"github.com/spf13/cobra"
)

var (
	ragTopK int
	ragJSON bool
)

var ragCmd = &cobra.Command{
	Use:   "rag QUESTION",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieve the passages closest to the question and have the RAG model
answer from them alone. Sources are printed below the answer.

Example:
  statcrew rag "What is the rookie scale for first-round picks?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRAG,
}

func init() {
	ragCmd.Flags().IntVarP(&ragTopK, "top-k", "k", 0, "Number of passages to retrieve (default from config)")
	ragCmd.Flags().BoolVar(&ragJSON, "json", false, "Print the answer with its passages as JSON")
	rootCmd.AddCommand(ragCmd)
}

func runRAG(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ans, err := a.index.Answer(cmd.Context(), strings.Join(args, " "), ragTopK)
	if errors.Is(err, rag.ErrNoContext) {
		return fmt.Errorf("%w; run `statcrew ingest` first", err)
	}
	if err != nil {
		return err
	}

	if ragJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}
	fmt.Println(ans.Text)
	fmt.Printf("\nSources: %v\n", ans.Sources)
	return nil
}
