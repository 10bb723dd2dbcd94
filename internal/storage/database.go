package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// SQLite is a Backend storing the document in a single sqlite row.
type SQLite struct {
	conn *sql.DB
	key  string
}

// OpenSQLite opens (creating if needed) the database at dsn and applies the
// schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{conn: db, key: DocumentKey}, nil
}

// Close closes the database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// Load returns the stored document, or nil when nothing has been saved yet.
func (db *SQLite) Load(ctx context.Context) ([]byte, error) {
	var value []byte
	row := db.conn.QueryRowContext(ctx, `
		SELECT value FROM documents WHERE key = ?
	`, db.key)

	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Nothing saved yet
		}
		return nil, fmt.Errorf("failed to load document %s: %w", db.key, err)
	}
	return value, nil
}

// Save replaces the stored document.
func (db *SQLite) Save(ctx context.Context, data []byte) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO documents (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`,
		db.key,
		data,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", db.key, err)
	}
	return nil
}
