package main

import (
	"errors"
	"fmt"

	"github.com/minitru/bunnyAI/pkg/ingest"

	"github.com/spf13/cobra"
)

var (
	ingestID        string
	ingestTitle     string
	ingestAuthor    string
	ingestMaxTokens int
	ingestOverlap   int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file|url|s3://key]...",
	Short: "Chunk books and store them in the chunk store",
	Long: `Loads each source, splits it into sentence aligned chunks under a token
budget and upserts them. Re-ingesting a book replaces chunks with the same ids.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "book id (single source only)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "book title (single source only)")
	ingestCmd.Flags().StringVar(&ingestAuthor, "author", "", "book author (single source only)")
	ingestCmd.Flags().IntVar(&ingestMaxTokens, "max-tokens", ingest.DefaultMaxTokens, "token budget per chunk")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", ingest.DefaultOverlapSentences, "sentences repeated between chunks")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	override := ingest.BookInfo{BookID: ingestID, Title: ingestTitle, Author: ingestAuthor}
	if len(args) > 1 && override != (ingest.BookInfo{}) {
		return errors.New("--id, --title and --author need a single source")
	}

	ing, err := app.NewIngester(ingestMaxTokens, ingestOverlap)
	if err != nil {
		return err
	}

	var results []ingest.Result
	for _, source := range args {
		res, err := ing.Ingest(cmd.Context(), source, override)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		results = append(results, res)
		if !outputJSON {
			cmd.Printf("  %s: %s by %s (%d chunks)\n", res.Book.BookID, res.Book.Title, res.Book.Author, res.Chunks)
		}
	}
	if outputJSON {
		return printJSON(cmd, results)
	}
	return nil
}
