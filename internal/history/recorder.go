// Package history is the durable recorder (C2): every mutation the
// orchestrator applies to the in-process world state is also persisted
// here, append-only, so the bot's behavior can be audited and replayed
// and so export-training can turn the recorded actions into a
// fine-tuning corpus. Two backends implement the same Recorder
// interface, selected by config.DatabaseConfig.Mode: an embedded
// modernc.org/sqlite store for standalone mode, and a jackc/pgx/v5 +
// golang-migrate managed store for multi-instance deployments —
// mirroring the teacher's store/pg factory split.
package history

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// Recorder is the durable persistence contract both backends implement.
type Recorder interface {
	RecordStateChange(ctx context.Context, block *worldstate.StateChangeBlock) error
	RecordMessage(ctx context.Context, msg *worldstate.Message) error
	RecordAction(ctx context.Context, action *worldstate.ActionRecord) error
	RecordUndecryptableEvent(ctx context.Context, ev *worldstate.UndecryptableEvent) error
	RecordMemory(ctx context.Context, key, value string) error

	// GetMemories returns up to limit stored memories, most recently
	// updated first.
	GetMemories(ctx context.Context, limit int) ([]MemoryEntry, error)

	// ExportTraining returns one TrainingRow per ActionRecord with
	// CreatedAt >= since, carrying the StateChangeBlocks whose entity_id
	// equals that action's cycle id (the cycle's action_applied block).
	ExportTraining(ctx context.Context, since time.Time) ([]TrainingRow, error)

	// Cleanup deletes state_changes, messages, and undecryptable_events
	// rows older than olderThan, per retention.days.
	Cleanup(ctx context.Context, olderThan time.Time) (deleted int64, err error)

	Close() error
}

// MemoryEntry is one key/value fact the AI decision service chose to
// persist via the store_memory action.
type MemoryEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrainingRow is one exported training example: the context the model
// saw (as recorded in state changes) paired with the action it chose.
type TrainingRow struct {
	CycleID   string    `json:"cycle_id"`
	Action    worldstate.ActionRecord `json:"action"`
	Context   []worldstate.StateChangeBlock `json:"context"`
	CreatedAt time.Time `json:"created_at"`
}
