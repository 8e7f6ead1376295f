// Package main provides the retail assistant CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/app"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/config"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
)

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	verbose    bool
	devMode    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "assistant-cli",
	Short: "Retail assistant CLI for catalog vectorization, search and carts",
	Long: `Retail assistant CLI exercises the same tools the conversational agent uses.

Use this tool to:
- Vectorize the product catalog into the hybrid search index
- Search products the way the agent does
- Inspect and edit customer carts, and submit orders
- Preview the fallback reply built from raw tool outputs

All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}
		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      logFormat,
			ServiceName: "assistant-cli",
		})
		ui = NewUI(cmd.OutOrStdout(), outputJSON, false)

		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", os.Getenv("ASSISTANT_DEV") == "1", "use the mock embedder and in-process stores")

	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newCartCmd())
	rootCmd.AddCommand(newCheckoutCmd())
	rootCmd.AddCommand(newVectorizeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newFallbackCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp wires the application for one command.
func openApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, cfg, logger, app.Options{Dev: devMode})
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return a, nil
}
