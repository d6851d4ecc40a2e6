package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/minitru/bunnyAI/pkg/common"

	"github.com/spf13/cobra"
)

var (
	graphRefresh bool
	graphView    bool
	searchBook   string
	searchLimit  int
)

var graphCmd = &cobra.Command{
	Use:   "graph [book_id]",
	Short: "Show, extract or refresh the knowledge graph of a book",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraph,
}

var graphSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed entities",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGraphSearch,
}

func init() {
	graphCmd.Flags().BoolVarP(&graphRefresh, "refresh", "r", false, "re-extract even when a valid graph is cached")
	graphCmd.Flags().BoolVar(&graphView, "force-graph", false, "print the force graph view instead of the graph")
	graphSearchCmd.Flags().StringVarP(&searchBook, "book", "b", "", "restrict the search to one book id")
	graphSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of matches")
	graphCmd.AddCommand(graphSearchCmd)
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	bookID := args[0]

	var err error
	if graphRefresh {
		_, err = app.Refresher.Refresh(ctx, bookID)
	} else {
		_, err = app.Graph.ExtractBook(ctx, bookID, false)
	}
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	if graphView {
		view, err := app.Graph.ToForceGraph(ctx, bookID)
		if err != nil {
			return err
		}
		return printJSON(cmd, view)
	}

	g, err := app.Graph.ValidateAndClean(ctx, bookID)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(cmd, g)
	}
	printGraph(cmd, g)
	return nil
}

func printGraph(cmd *cobra.Command, g common.KnowledgeGraph) {
	ids := make([]string, 0, len(g.Entities))
	for id := range g.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cmd.Printf("Entities (%d):\n", len(ids))
	for _, id := range ids {
		e := g.Entities[id]
		cmd.Printf("  %-20s %-10s %s\n", id, e.Type, e.Name)
	}
	cmd.Printf("Relationships (%d):\n", len(g.Relationships))
	for _, r := range g.Relationships {
		cmd.Printf("  %s -[%s]-> %s\n", r.From, r.Type, r.To)
	}
}

func runGraphSearch(cmd *cobra.Command, args []string) error {
	matches, err := app.Graph.SearchEntities(cmd.Context(), strings.Join(args, " "), searchBook, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if outputJSON {
		return printJSON(cmd, matches)
	}
	if len(matches) == 0 {
		cmd.Println("No entities found.")
		return nil
	}
	for i, m := range matches {
		cmd.Printf("  [%d] %s (%s, %s) %.3f\n", i+1, m.Name, m.Type, m.BookID, m.Distance)
	}
	return nil
}
