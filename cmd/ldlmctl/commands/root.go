// Package commands implements the ldlmctl CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ldlmctl",
	Short: "Inspect and demo the client-side DLM request engine",
	Long: `ldlmctl drives the client-side distributed lock manager request
engine (enqueue, cancel, LRU eviction, replay) against an in-memory
gateway, for inspection and demonstration without a real lock server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to engine config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(demoCmd)
}
