package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	rec, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	return rec
}

func TestRecordAndExportTraining(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := rec.RecordStateChange(ctx, &worldstate.StateChangeBlock{
		ID: "sc1", Type: worldstate.ChangeMessageAdded, EntityID: "cycle-1", CreatedAt: now,
	}); err != nil {
		t.Fatalf("RecordStateChange: %v", err)
	}

	if err := rec.RecordAction(ctx, &worldstate.ActionRecord{
		ID: "a1", CycleID: "cycle-1", Kind: worldstate.ActionWait,
		Parameters: map[string]interface{}{"reason": "quiet"}, CreatedAt: now,
	}); err != nil {
		t.Fatalf("RecordAction: %v", err)
	}

	rows, err := rec.ExportTraining(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ExportTraining: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 training row, got %d", len(rows))
	}
	if rows[0].Action.ID != "a1" {
		t.Fatalf("expected action a1, got %q", rows[0].Action.ID)
	}
	if len(rows[0].Context) != 1 || rows[0].Context[0].ID != "sc1" {
		t.Fatalf("expected joined context state change sc1, got %+v", rows[0].Context)
	}
}

func TestCleanupDeletesOldRows(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	rec.RecordMessage(ctx, &worldstate.Message{ID: "old", ChannelID: "c1", Content: "x", Timestamp: old})
	rec.RecordMessage(ctx, &worldstate.Message{ID: "new", ChannelID: "c1", Content: "y", Timestamp: recent})

	deleted, err := rec.Cleanup(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted < 1 {
		t.Fatalf("expected at least one row deleted, got %d", deleted)
	}
}

func TestRecordMessageDedupOnConflict(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()
	msg := &worldstate.Message{ID: "dup", ChannelID: "c1", Content: "x", Timestamp: time.Now()}
	if err := rec.RecordMessage(ctx, msg); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := rec.RecordMessage(ctx, msg); err != nil {
		t.Fatalf("expected duplicate insert to be a no-op, got error: %v", err)
	}
}
