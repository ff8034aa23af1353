package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/chatrouter/imessage-channel/internal/biz/repo"
)

// stateStore persists router state as key/value pairs in SQLite. The store
// outlives the channel: it is opened once at process start and shared.
type stateStore struct {
	db *sql.DB
}

// NewStateStore opens (creating if needed) the durable state database.
func NewStateStore(dbPath string) (repo.StateRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS router_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create router_state table: %w", err)
	}

	return &stateStore{db: db}, nil
}

// Get returns the stored value for key, or "" when the key is absent.
func (s *stateStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM router_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query state %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *stateStore) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO router_state (key, value, updated_at)
		VALUES (?, ?, strftime('%s', 'now'))
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *stateStore) Close() error {
	return s.db.Close()
}
