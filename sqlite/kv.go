package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fwojciec/modharvest"
)

// Compile-time interface verification.
var _ modharvest.KeyValueStore = (*KeyValueStore)(nil)

// KeyValueStore implements modharvest.KeyValueStore using SQLite.
type KeyValueStore struct {
	db *DB
}

// NewKeyValueStore creates a new KeyValueStore.
func NewKeyValueStore(db *DB) *KeyValueStore {
	return &KeyValueStore{db: db}
}

// Get returns the value stored at key.
func (s *KeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, modharvest.Errorf(modharvest.ENOTFOUND, "key %q not found", key)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value at key, replacing any previous value.
func (s *KeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return modharvest.Errorf(modharvest.EINVALID, "key required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(time.Now()))
	return err
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	return err
}
