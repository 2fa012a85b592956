package main

import (
	"fmt"

	"github.com/nidhogg/statcrew/internal/rag"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestReset bool

var ingestCmd = &cobra.Command{
	Use:   "ingest PATH...",
	Short: "Index documents for the rulebook search",
	Long: `Load PDF, HTML, markdown and text files, split them into overlapping
chunks, embed them and upsert them into the Qdrant collection.

Chunk IDs are derived from source, page and position, so ingesting the same
file twice overwrites its chunks instead of duplicating them.

Examples:
  statcrew ingest data/nba_cba_2023.pdf
  statcrew ingest --reset data/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "Drop the collection before ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	var docs []rag.Document
	for _, p := range args {
		d, err := rag.LoadPath(p)
		if err != nil {
			return err
		}
		docs = append(docs, d...)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no supported documents under %v", args)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.index.Ingest(cmd.Context(), docs, ingestReset)
	if err != nil {
		return err
	}
	a.logger.Info("ingest complete",
		zap.String("collection", a.index.Collection()),
		zap.Int("documents", st.Documents),
		zap.Int("chunks", st.Chunks))
	fmt.Printf("Indexed %d chunks from %d documents into %s\n", st.Chunks, st.Documents, a.index.Collection())
	return nil
}
