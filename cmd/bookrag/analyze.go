package main

import (
	"fmt"

	"github.com/minitru/bunnyAI/pkg/common"

	"github.com/spf13/cobra"
)

var analyzeForce bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [book_id]",
	Short: "Build the book analysis, or every analysis plus the comparison",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVarP(&analyzeForce, "force", "f", false, "regenerate even when a valid analysis is cached")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if len(args) == 0 {
		all, err := app.Analysis.AnalyzeAll(ctx, analyzeForce)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, all)
		}
		for _, a := range all.Books {
			printAnalysis(cmd, a)
		}
		cmd.Printf("=== Comparative analysis (%d books) ===\n%s\n", all.Combined.BooksAnalyzed, all.Combined.Analysis)
		return nil
	}

	var (
		a   common.BookAnalysis
		err error
	)
	if analyzeForce {
		a, err = app.Refresher.RefreshAnalysis(ctx, args[0])
	} else {
		a, err = app.Analysis.Analyze(ctx, args[0], false)
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, a)
	}
	printAnalysis(cmd, a)
	return nil
}

func printAnalysis(cmd *cobra.Command, a common.BookAnalysis) {
	cmd.Printf("=== %s ===\n", a.BookTitle)
	cmd.Printf("Summary:\n%s\n\n", a.BookSummary)
	cmd.Printf("Characters:\n%s\n\n", a.CharacterAnalysis)
	cmd.Printf("Plot:\n%s\n\n", a.PlotAnalysis)
	cmd.Printf("(%d of %d chunks, %s)\n\n", a.ChunksAnalyzed, a.TotalChunks, a.Model)
}
