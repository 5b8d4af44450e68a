package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/socialagent/internal/config"
	"github.com/nextlevelbuilder/socialagent/internal/history"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations for managed (Postgres) mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(resolveConfigPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if !cfg.Database.IsManagedMode() {
			fmt.Println("standalone mode (sqlite): schema is applied automatically on startup, nothing to migrate")
			return nil
		}
		rec, err := history.OpenPostgres(cfg.Database.PostgresDSN)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		defer rec.Close()
		fmt.Println("migrations applied")
		return nil
	},
}
