package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/socialagent/internal/config"
	"github.com/nextlevelbuilder/socialagent/internal/history"
)

func exportTrainingCmd() *cobra.Command {
	var out string
	var sinceStr string

	cmd := &cobra.Command{
		Use:   "export-training",
		Short: "Export recorded cycles as JSON-lines training examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			since := time.Time{}
			if sinceStr != "" {
				parsed, err := time.Parse(time.RFC3339, sinceStr)
				if err != nil {
					return fmt.Errorf("parse --since: %w", err)
				}
				since = parsed
			}

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rec, err := openRecorder(cfg)
			if err != nil {
				return fmt.Errorf("open history recorder: %w", err)
			}
			defer rec.Close()

			rows, err := rec.ExportTraining(cmd.Context(), since)
			if err != nil {
				return fmt.Errorf("export training rows: %w", err)
			}
			return writeTrainingRows(out, rows)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file path (required)")
	cmd.Flags().StringVar(&sinceStr, "since", "", "only export rows created at or after this RFC3339 timestamp")
	cmd.MarkFlagRequired("out")
	return cmd
}

func writeTrainingRows(path string, rows []history.TrainingRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode training row: %w", err)
		}
	}
	fmt.Printf("exported %d training rows to %s\n", len(rows), path)
	return nil
}
