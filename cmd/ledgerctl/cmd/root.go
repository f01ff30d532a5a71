package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"truledgr/backend/internal/config"
	"truledgr/backend/internal/db"
)

var (
	envFile string

	cfg   *config.Config
	bunDB *bun.DB
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "TruLedgr admin CLI",
	Long: `ledgerctl manages TruLedgr user accounts (create, promote, demote, deactivate)
and lists audit log entries. It connects to DATABASE_URL directly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadFile(envFile); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		}
		if bunDB, err = db.NewDB(cmd.Context(), cfg.DatabaseURL); err != nil {
			return fmt.Errorf("db: %w", err)
		}
		if cfg.DBAutoMigrate {
			return db.EnsureSchema(cmd.Context(), bunDB)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if bunDB == nil {
			return nil
		}
		return db.Close(bunDB)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an env file (missing files are ignored)")
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(auditCmd)
}
