package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - request admission and usage governance service",
	Long: `Warden protects a multi-tenant API with two stacked admission layers:

  - Per-client request rate limiting over an in-memory sliding window,
    keyed by authenticated user or client address
  - Tier-based monthly usage quotas (uploads, rows, analyses, chat
    messages, AI tokens) evaluated from an append-only usage event log

It serves usage reporting endpoints and exposes Prometheus metrics.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
