// Package cli implements faucetctl, the operator tool for the faucet ledger.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "faucetctl",
	Short:         "Operator tooling for the faucet ledger",
	Long:          "Mints caller tokens, hashes client keys and applies journal migrations for a faucet-ledger deployment.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
