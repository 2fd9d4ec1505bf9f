package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// InitDB opens the SQLite database at dbPath, creating its directory and the
// schema when missing.
func InitDB(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openDB opens and pings a connection pool. SQLite allows a single writer, so
// the pool is limited to one connection and waits on busy locks.
func openDB(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// CreateSchema creates all tables and indexes if they don't exist.
func CreateSchema(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS server (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			vendor_uid TEXT NOT NULL,
			vendor TEXT NOT NULL,
			tier TEXT NOT NULL DEFAULT 'free',
			tier_valid_until INTEGER,
			status TEXT NOT NULL DEFAULT 'active',
			prefix TEXT NOT NULL DEFAULT '.',
			created INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS server_integration (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			server_id INTEGER NOT NULL REFERENCES server(id),
			integration TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			post_format TEXT,
			UNIQUE(server_id, integration)
		);`,
		`CREATE TABLE IF NOT EXISTS post (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			integration TEXT NOT NULL,
			integration_uid TEXT NOT NULL,
			integration_index INTEGER NOT NULL DEFAULT 0,
			author TEXT,
			description TEXT,
			views INTEGER,
			likes INTEGER,
			spoiler BOOLEAN NOT NULL DEFAULT FALSE,
			posted_at INTEGER,
			blob BLOB,
			UNIQUE(integration, integration_uid, integration_index)
		);`,
		`CREATE TABLE IF NOT EXISTS server_post (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server_id INTEGER NOT NULL REFERENCES server(id),
			post_id INTEGER NOT NULL REFERENCES post(id),
			author_uid TEXT NOT NULL,
			url TEXT NOT NULL,
			created INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS server_member (
			server_id INTEGER NOT NULL REFERENCES server(id),
			member_uid TEXT NOT NULL,
			banned BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (server_id, member_uid)
		);`,
	}
	for _, query := range tables {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_server_active_vendor ON server(vendor, vendor_uid) WHERE status = 'active';",
		"CREATE INDEX IF NOT EXISTS idx_server_post_server_created ON server_post(server_id, created);",
	}
	for _, query := range indexes {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
