package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/profilesync/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on pending_appends(namespace, item_hash)
const currentSchemaVersion = 1

// SQLiteBackend persists pending queue snapshots in SQLite.
// Uses WAL mode so inspection tools can read while a client writes.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Load reads the snapshot for namespace. Appends come back in seq order.
func (b *SQLiteBackend) Load(ctx context.Context, namespace string) (Snapshot, error) {
	snap := Snapshot{Merged: make(map[model.ActionKind]model.Object)}

	rows, err := b.db.QueryContext(ctx, `
		SELECT kind, payload FROM pending_queues
		WHERE namespace = ?
		ORDER BY kind ASC
	`, namespace)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load pending queues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return Snapshot{}, fmt.Errorf("load pending queues: scan: %w", err)
		}
		var obj model.Object
		if err := json.Unmarshal([]byte(payload), &obj); err != nil {
			return Snapshot{}, fmt.Errorf("load pending queues: kind %s: %w", kind, err)
		}
		snap.Merged[model.ActionKind(kind)] = obj
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("load pending queues: %w", err)
	}

	appendRows, err := b.db.QueryContext(ctx, `
		SELECT payload FROM pending_appends
		WHERE namespace = ?
		ORDER BY seq ASC
	`, namespace)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load pending appends: %w", err)
	}
	defer appendRows.Close()

	for appendRows.Next() {
		var payload string
		if err := appendRows.Scan(&payload); err != nil {
			return Snapshot{}, fmt.Errorf("load pending appends: scan: %w", err)
		}
		var obj model.Object
		if err := json.Unmarshal([]byte(payload), &obj); err != nil {
			return Snapshot{}, fmt.Errorf("load pending appends: %w", err)
		}
		snap.Appends = append(snap.Appends, obj)
	}
	if err := appendRows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("load pending appends: %w", err)
	}

	return snap, nil
}

// Save replaces the stored snapshot for namespace in a single transaction,
// so a crash leaves either the old or the new snapshot, never a mix.
func (b *SQLiteBackend) Save(ctx context.Context, namespace string, snap Snapshot) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_queues WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("save snapshot: clear queues: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_appends WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("save snapshot: clear appends: %w", err)
	}

	for _, kind := range model.MergedKinds {
		obj := snap.Merged[kind]
		if len(obj) == 0 {
			continue
		}
		payload, err := model.MarshalCanonical(obj)
		if err != nil {
			return fmt.Errorf("save snapshot: kind %s: %w", kind, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pending_queues (namespace, kind, payload)
			VALUES (?, ?, ?)
		`, namespace, string(kind), string(payload)); err != nil {
			return fmt.Errorf("save snapshot: insert %s: %w", kind, err)
		}
	}

	for i, item := range snap.Appends {
		payload, err := model.MarshalCanonical(item)
		if err != nil {
			return fmt.Errorf("save snapshot: append[%d]: %w", i, err)
		}
		h, err := model.AppendHash(item)
		if err != nil {
			return fmt.Errorf("save snapshot: append[%d]: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pending_appends (namespace, seq, item_hash, payload)
			VALUES (?, ?, ?, ?)
		`, namespace, i+1, h, string(payload)); err != nil {
			return fmt.Errorf("save snapshot: insert append[%d]: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot: commit: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes append entries by content hash for inspection queries.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_pending_appends_hash
		ON pending_appends(namespace, item_hash)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (b *SQLiteBackend) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := b.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
