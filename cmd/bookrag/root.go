package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/minitru/bunnyAI/internal/bootstrap"
	"github.com/minitru/bunnyAI/internal/config"
	"github.com/minitru/bunnyAI/internal/util"
	"github.com/minitru/bunnyAI/pkg/logger"
	"github.com/minitru/bunnyAI/pkg/logger/console"

	"github.com/spf13/cobra"
)

var (
	outputJSON bool
	verbose    bool

	app *bootstrap.App
)

// loadApp builds the components for a command. Tests replace it.
var loadApp = func(ctx context.Context) (*bootstrap.App, error) {
	cfg := config.Load()
	// the CLI runs refreshes itself
	cfg.RefreshMode = config.RefreshInline
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg)
}

var rootCmd = &cobra.Command{
	Use:   "bookrag",
	Short: "Operate the bunnyAI book library",
	Long: `bookrag asks questions about the library, ingests books and manages
the cached analyses and knowledge graphs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		util.LoadEnv()
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
			Debug:  verbose || util.GetEnvBool("DEBUG", false),
			JSON:   util.GetEnv("LOG_FORMAT") == "json",
			Output: cmd.ErrOrStderr(),
		}))

		a, err := loadApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialise: %w", err)
		}
		app = a
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if app != nil {
			app.Close()
			app = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
