package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KVStore implements the per-browser key-value store backed by SQLite.
type KVStore struct {
	db *DB
}

// NewKVStore creates a new SQLite-backed key-value store.
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the value of key for the browser. ok is false when the key
// has never been set or was deleted.
func (s *KVStore) Get(ctx context.Context, browserID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE browser_id = ? AND key = ?", browserID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key for the browser (insert or update).
func (s *KVStore) Set(ctx context.Context, browserID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (browser_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(browser_id, key) DO UPDATE SET
			value=excluded.value, updated_at=excluded.updated_at`,
		browserID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key for the browser. Deleting a missing key is not an error.
func (s *KVStore) Delete(ctx context.Context, browserID, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM kv WHERE browser_id = ? AND key = ?", browserID, key,
	); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Purge removes every key not written since the cutoff. Returns the number
// of rows removed.
func (s *KVStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE updated_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge kv: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
