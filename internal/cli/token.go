package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/josh-kwaku/faucet-ledger/internal/auth"
)

var (
	tokenSecret string
	tokenExpiry time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "HMAC secret (defaults to $JWT_SECRET)")
	tokenCmd.Flags().DurationVar(&tokenExpiry, "expiry", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token <identity>",
	Short: "Mint a bearer token for an identity",
	Long:  "Signs a token whose subject is the given identity uuid. Use the administrator's uuid to mint an admin token.",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	identity, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid identity %q: %w", args[0], err)
	}

	secret := tokenSecret
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		return errors.New("no secret: pass --secret or set JWT_SECRET")
	}

	token, err := auth.GenerateToken(identity, secret, tokenExpiry)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
