// Package storage keeps a journal of log lines and active-pair changes in
// SQLite. Probe latencies are never stored.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazz-dev/dnsswitch/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    kind        TEXT    NOT NULL CHECK(kind IN ('log', 'status')),
    text        TEXT    NOT NULL DEFAULT '',
    primary_dns TEXT    NOT NULL DEFAULT '',
    secondary_dns TEXT  NOT NULL DEFAULT '',
    created_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_kind ON journal(kind, id DESC);
`

// Entry is a stored journal entry.
type Entry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Primary   string    `json:"primary,omitempty"`
	Secondary string    `json:"secondary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DB wraps a SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertEvent journals LogLine and StatusChanged events. Other kinds are
// ignored.
func (d *DB) InsertEvent(ctx context.Context, e events.Event) error {
	if e.Kind != events.LogLine && e.Kind != events.StatusChanged {
		return nil
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO journal (kind, text, primary_dns, secondary_dns, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(e.Kind),
		e.Text,
		e.Primary,
		e.Secondary,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting %s entry: %w", e.Kind, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (d *DB) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, kind, text, primary_dns, secondary_dns, created_at FROM journal ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// LastStatus returns the most recent active-pair change, or nil if none.
func (d *DB) LastStatus(ctx context.Context) (*Entry, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, kind, text, primary_dns, secondary_dns, created_at FROM journal WHERE kind = 'status' ORDER BY id DESC LIMIT 1`,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last status: %w", err)
	}
	return e, nil
}

// Prune deletes all but the newest keep entries and returns how many were
// removed.
func (d *DB) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM journal WHERE id NOT IN (SELECT id FROM journal ORDER BY id DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var createdAt string
	err := row.Scan(&e.ID, &e.Kind, &e.Text, &e.Primary, &e.Secondary, &createdAt)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal rows: %w", err)
	}
	return entries, nil
}
