// Package cli implements the filoctl operator commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dbPath string

// NewRootCommand builds the filoctl command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "filoctl",
		Short: "Operator tooling for the Filo portal",
		Long: `filoctl inspects document checklists and manages legacy requests
stored by the portal's local request store.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOr("LEGACY_DB_PATH", "filo-legacy.db"), "Path to the legacy request database")

	rootCmd.AddCommand(
		NewChecklistCommand(),
		NewRequestsCommand(),
	)

	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
