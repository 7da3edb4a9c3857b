// Package store provides a local sqlite-backed cache of the wallet's known
// vtxos, boarding UTXOs, and the outcome of its last settlement round. None
// of this is protocol state — it is bookkeeping the wallet keeps about
// values the Ark server and chain indexer already consider authoritative,
// so a restarted process can answer "what do I own" before its next sync.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a single sqlite connection used as the wallet's local cache.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Config holds store configuration.
type Config struct {
	DataDir string
}

// New opens (creating if needed) the cache database under cfg.DataDir.
func New(cfg *Config) (*Store, error) {
	dataDir := expandPath(cfg.DataDir)

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "arkwalletd.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}

	db.SetMaxOpenConns(1) // sqlite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, path: dbPath}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initializing schema: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection, for callers that need raw
// access (migrations, ad-hoc inspection tooling).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vtxos (
		txid TEXT NOT NULL,
		vout INTEGER NOT NULL,

		value INTEGER NOT NULL,
		script TEXT NOT NULL,
		tapscripts TEXT NOT NULL,

		status TEXT NOT NULL DEFAULT 'pending',

		batch_txid TEXT,
		has_batch INTEGER NOT NULL DEFAULT 0,
		batch_expiry INTEGER NOT NULL DEFAULT 0,
		has_expiry INTEGER NOT NULL DEFAULT 0,

		updated_at INTEGER NOT NULL,

		PRIMARY KEY (txid, vout)
	);

	CREATE INDEX IF NOT EXISTS idx_vtxos_status ON vtxos(status);

	CREATE TABLE IF NOT EXISTS boarding_utxos (
		txid TEXT NOT NULL,
		vout INTEGER NOT NULL,

		value INTEGER NOT NULL,
		script TEXT NOT NULL,
		tapscripts TEXT NOT NULL,

		updated_at INTEGER NOT NULL,

		PRIMARY KEY (txid, vout)
	);

	CREATE TABLE IF NOT EXISTS settlement_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,

		round_txid         TEXT NOT NULL,
		forfeits_submitted INTEGER NOT NULL DEFAULT 0,
		settlement_signed  INTEGER NOT NULL DEFAULT 0,

		completed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlement_outcomes_completed ON settlement_outcomes(completed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
