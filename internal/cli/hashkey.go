package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/faucet-ledger/internal/handler"
)

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <client-key>",
	Short: "Hash a client key for TOKEN_CLIENT_KEY_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := handler.HashClientKey(args[0])
		if err != nil {
			return fmt.Errorf("failed to hash key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
