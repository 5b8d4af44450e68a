package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/socialagent/internal/config"
)

func cleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete recorded history older than the given number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if days <= 0 {
				days = cfg.Retention.Days
			}
			rec, err := openRecorder(cfg)
			if err != nil {
				return fmt.Errorf("open history recorder: %w", err)
			}
			defer rec.Close()

			olderThan := time.Now().AddDate(0, 0, -days)
			deleted, err := rec.Cleanup(cmd.Context(), olderThan)
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			fmt.Printf("deleted %d rows older than %s\n", deleted, olderThan.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention window in days (default: config's retention.days)")
	return cmd
}
