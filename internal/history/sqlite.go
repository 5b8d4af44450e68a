package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

const sqliteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS state_changes (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	raw_content TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_state_changes_created_at ON state_changes(created_at);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	platform TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	author_id TEXT NOT NULL,
	content TEXT NOT NULL,
	is_from_bot BOOLEAN NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, created_at);
CREATE TABLE IF NOT EXISTS actions (
	id TEXT PRIMARY KEY,
	cycle_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	channel_id TEXT,
	parameters TEXT NOT NULL,
	result TEXT,
	error TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions(created_at);
CREATE TABLE IF NOT EXISTS memories (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS undecryptable_events (
	event_id TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	first_seen DATETIME NOT NULL,
	retry_count INTEGER NOT NULL,
	resolved BOOLEAN NOT NULL
);
`

// SQLiteRecorder is the default, embedded Recorder backend for
// standalone-mode deployments — no external database dependency.
type SQLiteRecorder struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the SQLite database at path
// and applies the idempotent schema above.
func OpenSQLite(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer discipline

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := recordSchemaVersion(db, sqliteSchemaVersion); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteRecorder{db: db}, nil
}

func recordSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`INSERT INTO config(key, value) VALUES('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, fmt.Sprintf("%d", version))
	return err
}

func (r *SQLiteRecorder) RecordStateChange(ctx context.Context, b *worldstate.StateChangeBlock) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO state_changes(id, type, entity_id, raw_content, created_at) VALUES(?,?,?,?,?)`,
		b.ID, string(b.Type), b.EntityID, b.RawContent, b.CreatedAt)
	return err
}

func (r *SQLiteRecorder) RecordMessage(ctx context.Context, m *worldstate.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages(id, platform, channel_id, author_id, content, is_from_bot, created_at) VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		m.ID, string(m.Platform), m.ChannelID, m.AuthorID, m.Content, m.IsFromBot, m.Timestamp)
	return err
}

func (r *SQLiteRecorder) RecordAction(ctx context.Context, a *worldstate.ActionRecord) error {
	params, err := json.Marshal(a.Parameters)
	if err != nil {
		return fmt.Errorf("marshal action parameters: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO actions(id, cycle_id, kind, channel_id, parameters, result, error, created_at) VALUES(?,?,?,?,?,?,?,?)`,
		a.ID, a.CycleID, string(a.Kind), a.ChannelID, string(params), a.Result, a.Error, a.CreatedAt)
	return err
}

func (r *SQLiteRecorder) RecordUndecryptableEvent(ctx context.Context, ev *worldstate.UndecryptableEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO undecryptable_events(event_id, channel_id, sender_id, first_seen, retry_count, resolved) VALUES(?,?,?,?,?,?)
		 ON CONFLICT(event_id) DO UPDATE SET retry_count=excluded.retry_count, resolved=excluded.resolved`,
		ev.EventID, ev.ChannelID, ev.SenderID, ev.FirstSeen, ev.RetryCount, ev.Resolved)
	return err
}

func (r *SQLiteRecorder) RecordMemory(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memories(key, value, updated_at) VALUES(?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now())
	return err
}

func (r *SQLiteRecorder) GetMemories(ctx context.Context, limit int) ([]MemoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM memories ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()
	var out []MemoryEntry
	for rows.Next() {
		var m MemoryEntry
		if err := rows.Scan(&m.Key, &m.Value, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) ExportTraining(ctx context.Context, since time.Time) ([]TrainingRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, cycle_id, kind, channel_id, parameters, result, error, created_at
		 FROM actions WHERE created_at >= ? ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []TrainingRow
	for rows.Next() {
		var a worldstate.ActionRecord
		var params string
		var channelID, result, errMsg sql.NullString
		if err := rows.Scan(&a.ID, &a.CycleID, &a.Kind, &channelID, &params, &result, &errMsg, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.ChannelID = channelID.String
		a.Result = result.String
		a.Error = errMsg.String
		_ = json.Unmarshal([]byte(params), &a.Parameters)

		ctxRows, err := r.stateChangesForCycle(ctx, a.CycleID)
		if err != nil {
			return nil, err
		}
		out = append(out, TrainingRow{CycleID: a.CycleID, Action: a, Context: ctxRows, CreatedAt: a.CreatedAt})
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) stateChangesForCycle(ctx context.Context, cycleID string) ([]worldstate.StateChangeBlock, error) {
	// state_changes aren't cycle-scoped in the schema; entity_id carries
	// the cycle id for action_applied rows, so rows whose entity_id equals
	// the cycle id are selected.
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, entity_id, raw_content, created_at FROM state_changes WHERE entity_id = ? ORDER BY created_at ASC`,
		cycleID)
	if err != nil {
		return nil, fmt.Errorf("query state_changes: %w", err)
	}
	defer rows.Close()
	var out []worldstate.StateChangeBlock
	for rows.Next() {
		var b worldstate.StateChangeBlock
		var raw sql.NullString
		if err := rows.Scan(&b.ID, &b.Type, &b.EntityID, &raw, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan state_change: %w", err)
		}
		b.RawContent = raw.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"state_changes", "messages", "undecryptable_events"} {
		col := "created_at"
		if table == "undecryptable_events" {
			col = "first_seen"
		}
		res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s < ?`, table, col), olderThan)
		if err != nil {
			return total, fmt.Errorf("cleanup %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (r *SQLiteRecorder) Close() error { return r.db.Close() }
