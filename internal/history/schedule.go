package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleCleanup registers a daily job that deletes rows older than
// retentionDays, using robfig/cron/v3 the same way the rest of the pack
// schedules periodic maintenance work. Returns the cron.Cron so callers
// control its lifecycle (Start/Stop).
func ScheduleCleanup(rec Recorder, retentionDays int) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		deleted, err := rec.Cleanup(ctx, cutoff)
		if err != nil {
			slog.Warn("scheduled cleanup failed", "error", err)
			return
		}
		slog.Info("scheduled cleanup complete", "deleted_rows", deleted, "cutoff", cutoff)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
