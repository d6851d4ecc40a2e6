package main

import (
	"fmt"
	"strings"

	"github.com/minitru/bunnyAI/pkg/query"

	"github.com/spf13/cobra"
)

var (
	askBook        string
	askChunks      int
	askNoKnowledge bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about one or all books",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askBook, "book", "b", "", "restrict the search to one book id")
	askCmd.Flags().IntVarP(&askChunks, "chunks", "n", 0, "number of context chunks (default 80)")
	askCmd.Flags().BoolVar(&askNoKnowledge, "no-knowledge", false, "skip the cached book analyses")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	res, err := app.Pipeline.Query(cmd.Context(), query.Request{
		Question:         strings.Join(args, " "),
		BookID:           askBook,
		ContextChunks:    askChunks,
		UseBookKnowledge: !askNoKnowledge,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, res)
	}

	cmd.Println(res.Answer)
	cmd.Println()
	cmd.Printf("books: %s | chunks: %d | context: %d chars | %.2fs",
		strings.Join(res.BooksSearched, ", "), res.ChunksUsed, res.ContextLength, res.ProcessingTime)
	if res.Degraded {
		cmd.Print(" | degraded")
	}
	cmd.Println()
	return nil
}
