package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps SQLite database operations
type DB struct {
	db *sql.DB
}

// Options tunes the connection.
type Options struct {
	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration
}

// Open opens or creates a SQLite database. ":memory:" yields a private
// in-memory database.
func Open(path string, opts Options) (*DB, error) {
	db, err := sql.Open("sqlite3", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if path == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	storage := &DB{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return storage, nil
}

// dsn enables foreign keys and immediate write transactions on every
// connection; file databases also get WAL and a busy timeout.
func dsn(path string, opts Options) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_txlock", "immediate")
	if path != ":memory:" {
		q.Set("_journal_mode", "WAL")
		if opts.BusyTimeout > 0 {
			q.Set("_busy_timeout", fmt.Sprint(opts.BusyTimeout.Milliseconds()))
		}
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + q.Encode()
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// initSchema creates tables if they don't exist
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_records (
		id INTEGER PRIMARY KEY,
		body TEXT NOT NULL,
		decision TEXT CHECK (decision IN ('yes', 'no')),
		decided_at TIMESTAMP,
		imported_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_raw_decision ON raw_records(decision, id);

	CREATE TABLE IF NOT EXISTS derived_records (
		id INTEGER PRIMARY KEY,
		source_raw_id INTEGER NOT NULL REFERENCES raw_records(id),
		shape TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_derived_source ON derived_records(source_raw_id);
	`

	_, err := d.db.Exec(schema)
	return err
}
