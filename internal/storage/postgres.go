package storage

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore keeps each key as a row in a kv table. It exists for
// operators who already run a database; the file store remains the
// on-device default.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the kv table if it does not exist.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	query := `
		CREATE TABLE IF NOT EXISTS kassa_records (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create kassa_records table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Get retrieves the value stored at key.
func (s *PostgresStore) Get(key string) (string, bool, error) {
	var value string
	query := `SELECT value FROM kassa_records WHERE key = $1`
	err := s.db.QueryRow(query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the value at key. Disk-full server errors map to
// ErrQuotaExceeded so the caller's truncation retry applies.
func (s *PostgresStore) Set(key, value string) error {
	query := `
		INSERT INTO kassa_records (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.Exec(query, key, value); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "53100" {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Remove deletes the key's row.
func (s *PostgresStore) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kassa_records WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}
