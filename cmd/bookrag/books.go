package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "List the books in the chunk store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		books, err := app.Store.ListBooks(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list books: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, books)
		}
		if len(books) == 0 {
			cmd.Println("No books loaded.")
			return nil
		}
		for _, b := range books {
			cmd.Printf("  %-24s %s by %s (%d chunks)\n", b.BookID, b.BookTitle, b.Author, b.ChunkCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(booksCmd)
}
