package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/faucet-ledger/internal/repository"
)

var (
	migrateDSN string
	migrateDir string
)

func init() {
	migrateCmd.Flags().StringVar(&migrateDSN, "database-url", "", "postgres DSN (defaults to $DATABASE_URL)")
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "", "migrations directory (defaults to the nearest ./migrations)")
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply journal migrations to postgres",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dsn := migrateDSN
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return errors.New("no database: pass --database-url or set DATABASE_URL")
	}

	dir := migrateDir
	if dir == "" {
		dir = repository.FindMigrationsDir()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	db, err := repository.NewPostgresDB(ctx, dsn, repository.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := repository.Migrate(ctx, db, dir)
	if err != nil {
		return err
	}

	for _, f := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", f)
	}
	return nil
}
