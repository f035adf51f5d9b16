// Package cli implements the arquery command line: the HTTP service plus a
// few operator commands that reuse its wiring.
package cli

import (
	"fmt"
	"os"

	"github.com/arquery/arquery/internal/config"
	"github.com/arquery/arquery/internal/handler"
	"github.com/arquery/arquery/internal/observability"
	"github.com/spf13/cobra"
)

// Version is set at build time using -ldflags.
var Version = "0.0.0-dev"

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "arquery",
	Short:         "Natural-language questions over the AR invoice table",
	Long:          `arquery turns plain-English questions about accounts-receivable invoices into a single SELECT statement, runs it against the warehouse and returns the rows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		handler.Version = Version
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd, schemaCmd, askCmd, versionCmd)
}

// loadConfig reads configuration and installs the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	observability.SetupLogger(cfg.LogLevel, cfg.Environment)
	return cfg, nil
}
