package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

//go:embed schema.sql
var schema string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps a single-connection SQLite handle
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (creating when needed) the database at path and applies the schema.
// The store is single-writer: one connection serializes every transaction.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path +
			"?_pragma=foreign_keys(1)" +
			"&_pragma=journal_mode(WAL)" +
			"&_pragma=synchronous(FULL)" +
			"&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// an in-memory database lives exactly as long as its connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the file the database was opened from
func (db *DB) Path() string {
	return db.path
}

// Ping checks the database connection health
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}
