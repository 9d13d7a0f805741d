package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/modharvest"
)

// DefaultCheckpointKey is the key under which checkpoints are stored.
const DefaultCheckpointKey = "HARVEST_STATE"

// DefaultFreshness is how long a checkpoint stays eligible for resumption.
// Older snapshots are treated as absent because the browser session they
// describe cannot outlive it.
const DefaultFreshness = time.Hour

// CheckpointStore persists checkpoints as JSON in a key/value store and
// applies a freshness window on load.
type CheckpointStore struct {
	KV        modharvest.KeyValueStore
	Key       string
	Freshness time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewCheckpointStore creates a CheckpointStore with default key and freshness.
func NewCheckpointStore(kv modharvest.KeyValueStore) *CheckpointStore {
	return &CheckpointStore{
		KV:        kv,
		Key:       DefaultCheckpointKey,
		Freshness: DefaultFreshness,
		Now:       time.Now,
	}
}

func (s *CheckpointStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *CheckpointStore) key() string {
	if s.Key == "" {
		return DefaultCheckpointKey
	}
	return s.Key
}

// Save stamps the checkpoint's SavedAt and writes it.
func (s *CheckpointStore) Save(ctx context.Context, cp *modharvest.Checkpoint) error {
	cp.State.SavedAt = s.now().UTC()
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	if err := s.KV.Set(ctx, s.key(), data); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	return nil
}

// Peek reads the checkpoint without applying the freshness window.
// Returns ENOTFOUND if none is stored and EINVALID if it cannot be decoded
// or violates its invariants.
func (s *CheckpointStore) Peek(ctx context.Context) (*modharvest.Checkpoint, error) {
	data, err := s.KV.Get(ctx, s.key())
	if err != nil {
		return nil, err
	}
	var cp modharvest.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, modharvest.Errorf(modharvest.EINVALID, "corrupt checkpoint: %v", err)
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Load returns the stored checkpoint if it is fresh. A checkpoint older
// than the freshness window is reported as ENOTFOUND, exactly as if none
// existed. Returns EINVALID for undecodable or inconsistent snapshots.
func (s *CheckpointStore) Load(ctx context.Context) (*modharvest.Checkpoint, error) {
	cp, err := s.Peek(ctx)
	if err != nil {
		return nil, err
	}
	if s.IsStale(cp) {
		return nil, modharvest.Errorf(modharvest.ENOTFOUND, "checkpoint saved at %s is stale", cp.State.SavedAt.Format(time.RFC3339))
	}
	return cp, nil
}

// IsStale reports whether cp falls outside the freshness window.
func (s *CheckpointStore) IsStale(cp *modharvest.Checkpoint) bool {
	if s.Freshness <= 0 {
		return false
	}
	return s.now().Sub(cp.State.SavedAt) > s.Freshness
}

// Clear removes the stored checkpoint.
func (s *CheckpointStore) Clear(ctx context.Context) error {
	return s.KV.Delete(ctx, s.key())
}
