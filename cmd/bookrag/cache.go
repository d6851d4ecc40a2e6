package main

import (
	"fmt"
	"time"

	"github.com/minitru/bunnyAI/pkg/cache"

	"github.com/spf13/cobra"
)

var (
	cacheKind string
	cacheID   string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and invalidate cached analyses and graphs",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List cached artifacts and whether they are still valid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		entries, err := cache.Inspect(cmd.Context(), app.Cache, cacheKind, time.Now())
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, entries)
		}
		if len(entries) == 0 {
			cmd.Println("Cache is empty.")
			return nil
		}
		for _, e := range entries {
			state := "valid"
			if !e.Valid {
				state = "expired"
			}
			cmd.Printf("  %-40s %-8s %-32s %d bytes\n", e.Key, state, e.Metadata.CreatedAt, e.SizeBytes)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached artifacts, optionally of one kind or book",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		entries, err := cache.Inspect(ctx, app.Cache, cacheKind, time.Now())
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}

		removed := 0
		for _, e := range entries {
			if cacheID != "" && e.ID != cacheID {
				continue
			}
			if err := app.Cache.Delete(ctx, e.Key); err != nil {
				return fmt.Errorf("failed to delete %s: %w", e.Key, err)
			}
			removed++
		}
		cmd.Printf("Removed %d cached artifacts.\n", removed)
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheKind, "kind", "", "artifact kind (analysis or kg)")
	cacheClearCmd.Flags().StringVar(&cacheID, "id", "", "book id")
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
