// Package dbcmd holds the commands that talk to the database directly instead
// of going through the API. They read the same environment as the API server.
package dbcmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crucial707/audit-search/internal/config"
	"github.com/crucial707/audit-search/internal/db"
)

// InitDB registers search and migrate on the root command.
func InitDB(rootCmd *cobra.Command) {
	rootCmd.AddCommand(searchCmd(), migrateCmd())
}

func connect(cfg config.Config) (*sql.DB, error) {
	database, err := db.Connect(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass, 2, 1)
	if err != nil {
		return nil, fmt.Errorf("connect to %s@%s/%s: %w", cfg.DBUser, cfg.DBHost, cfg.DBName, err)
	}
	return database, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := db.Run(cfg.DatabaseURL()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
