// Package store persists subscribers, watches, the notified-signature
// ledger, and runtime settings in one sqlite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite handle. The daemon and the offline cli share the
// same file; WAL mode plus the busy timeout keeps that workable.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	chat_id INTEGER PRIMARY KEY,
	username TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS monitored_wallets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER NOT NULL,
	wallet_address TEXT NOT NULL,
	private_key_encrypted TEXT NOT NULL,
	nickname TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	last_signature TEXT NOT NULL DEFAULT '',
	monitoring_start_time INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (chat_id, wallet_address)
)`,
	`CREATE INDEX IF NOT EXISTS monitored_wallets_address
	ON monitored_wallets (wallet_address)`,
	`CREATE TABLE IF NOT EXISTS transaction_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	wallet_address TEXT NOT NULL,
	chat_id INTEGER NOT NULL DEFAULT 0,
	signature TEXT NOT NULL UNIQUE,
	amount REAL NOT NULL DEFAULT 0,
	tx_type TEXT NOT NULL,
	timestamp TEXT NOT NULL DEFAULT '',
	block_time INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'confirmed',
	notified INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS settings (
	setting_key TEXT PRIMARY KEY,
	setting_value TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
