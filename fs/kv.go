// Package fs provides file-based checkpoint storage and output export.
package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fwojciec/modharvest"
)

// Ensure KeyValueStore implements modharvest.KeyValueStore at compile time.
var _ modharvest.KeyValueStore = (*KeyValueStore)(nil)

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// KeyValueStore stores each key as a JSON file in a directory. Writes go to
// a temporary file that is renamed over the target, so a crash mid-write
// leaves the previous value intact.
type KeyValueStore struct {
	dir string
}

// NewKeyValueStore creates a KeyValueStore rooted at dir. The directory is
// created on first write.
func NewKeyValueStore(dir string) *KeyValueStore {
	return &KeyValueStore{dir: dir}
}

func (s *KeyValueStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", modharvest.Errorf(modharvest.EINVALID, "invalid key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Get returns the value stored at key.
func (s *KeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, modharvest.Errorf(modharvest.ENOTFOUND, "key %q not found", key)
	}
	return data, err
}

// Set atomically replaces the value stored at key.
func (s *KeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, value, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
