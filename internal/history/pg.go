package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PGRecorder is the managed-mode Recorder backend, used when
// config.DatabaseConfig.Mode is "managed": schema migrations run via
// golang-migrate against the configured Postgres DSN, exactly matching
// the teacher's migrate.go driving golang-migrate at startup.
type PGRecorder struct {
	db *sql.DB
}

// OpenPostgres opens dsn and runs pending migrations to the latest version.
func OpenPostgres(dsn string) (*PGRecorder, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PGRecorder{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (r *PGRecorder) RecordStateChange(ctx context.Context, b *worldstate.StateChangeBlock) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO state_changes(id, type, entity_id, raw_content, created_at) VALUES($1,$2,$3,$4,$5)
		 ON CONFLICT (id) DO NOTHING`,
		b.ID, string(b.Type), b.EntityID, b.RawContent, b.CreatedAt)
	return err
}

func (r *PGRecorder) RecordMessage(ctx context.Context, m *worldstate.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages(id, platform, channel_id, author_id, content, is_from_bot, created_at) VALUES($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO NOTHING`,
		m.ID, string(m.Platform), m.ChannelID, m.AuthorID, m.Content, m.IsFromBot, m.Timestamp)
	return err
}

func (r *PGRecorder) RecordAction(ctx context.Context, a *worldstate.ActionRecord) error {
	params, err := json.Marshal(a.Parameters)
	if err != nil {
		return fmt.Errorf("marshal action parameters: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO actions(id, cycle_id, kind, channel_id, parameters, result, error, created_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.CycleID, string(a.Kind), a.ChannelID, params, a.Result, a.Error, a.CreatedAt)
	return err
}

func (r *PGRecorder) RecordUndecryptableEvent(ctx context.Context, ev *worldstate.UndecryptableEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO undecryptable_events(event_id, channel_id, sender_id, first_seen, retry_count, resolved) VALUES($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (event_id) DO UPDATE SET retry_count=excluded.retry_count, resolved=excluded.resolved`,
		ev.EventID, ev.ChannelID, ev.SenderID, ev.FirstSeen, ev.RetryCount, ev.Resolved)
	return err
}

func (r *PGRecorder) RecordMemory(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memories(key, value, updated_at) VALUES($1,$2,$3)
		 ON CONFLICT (key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now())
	return err
}

func (r *PGRecorder) GetMemories(ctx context.Context, limit int) ([]MemoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM memories ORDER BY updated_at DESC LIMIT $1`, limit)
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

func (r *PGRecorder) ExportTraining(ctx context.Context, since time.Time) ([]TrainingRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, cycle_id, kind, channel_id, parameters, result, error, created_at
		 FROM actions WHERE created_at >= $1 ORDER BY created_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []TrainingRow
	for rows.Next() {
		var a worldstate.ActionRecord
		var params []byte
		var channelID, result, errMsg sql.NullString
		if err := rows.Scan(&a.ID, &a.CycleID, &a.Kind, &channelID, &params, &result, &errMsg, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.ChannelID = channelID.String
		a.Result = result.String
		a.Error = errMsg.String
		_ = json.Unmarshal(params, &a.Parameters)

		ctxRows, err := r.stateChangesForCycle(ctx, a.CycleID)
		if err != nil {
			return nil, err
		}
		out = append(out, TrainingRow{CycleID: a.CycleID, Action: a, Context: ctxRows, CreatedAt: a.CreatedAt})
	}
	return out, rows.Err()
}

func (r *PGRecorder) stateChangesForCycle(ctx context.Context, cycleID string) ([]worldstate.StateChangeBlock, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, entity_id, raw_content, created_at FROM state_changes WHERE entity_id = $1 ORDER BY created_at ASC`,
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

func (r *PGRecorder) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	var total int64
	for _, spec := range []struct{ table, col string }{
		{"state_changes", "created_at"},
		{"messages", "created_at"},
		{"undecryptable_events", "first_seen"},
	} {
		res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`, spec.table, spec.col), olderThan)
		if err != nil {
			return total, fmt.Errorf("cleanup %s: %w", spec.table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (r *PGRecorder) Close() error { return r.db.Close() }
