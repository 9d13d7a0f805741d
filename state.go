package modharvest

import (
	"context"
	"time"
)

// Phase is the coarse position of a harvest run in its lifecycle.
type Phase string

// Phases in lifecycle order.
const (
	PhaseInitializing   Phase = "initializing"
	PhaseAuthenticated  Phase = "authenticated"
	PhaseTreeDiscovered Phase = "tree_discovered"
	PhaseHarvesting     Phase = "harvesting"
	PhaseCompleted      Phase = "completed"
)

var phaseOrder = map[Phase]int{
	PhaseInitializing:   0,
	PhaseAuthenticated:  1,
	PhaseTreeDiscovered: 2,
	PhaseHarvesting:     3,
	PhaseCompleted:      4,
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// Before reports whether p precedes other in lifecycle order.
func (p Phase) Before(other Phase) bool {
	return phaseOrder[p] < phaseOrder[other]
}

// HarvestState is the resumable progress record of a run.
type HarvestState struct {
	RunID            string    `json:"runId"`
	Phase            Phase     `json:"phase"`
	Cursor           int       `json:"cursor"`
	TotalNodes       int       `json:"totalNodes"`
	CurrentNodeTitle string    `json:"currentNodeTitle,omitempty"`
	SavedAt          time.Time `json:"savedAt"`
}

// Validate returns an error if the state violates its invariants.
func (s *HarvestState) Validate() error {
	if !s.Phase.Valid() {
		return Errorf(EINVALID, "unknown phase %q", s.Phase)
	}
	if s.Cursor < 0 || s.Cursor > s.TotalNodes {
		return Errorf(EINVALID, "cursor %d out of range [0, %d]", s.Cursor, s.TotalNodes)
	}
	if s.Phase == PhaseCompleted && s.Cursor != s.TotalNodes {
		return Errorf(EINVALID, "completed state with cursor %d of %d", s.Cursor, s.TotalNodes)
	}
	return nil
}

// Advance moves the phase forward. Moving backwards is a no-op so that
// resumed runs keep the phase they were saved in.
func (s *HarvestState) Advance(p Phase) {
	if s.Phase.Before(p) {
		s.Phase = p
	}
}

// Checkpoint is the durable snapshot of a run: its state, the raw tree as
// discovered, and the partially populated flattened nodes.
type Checkpoint struct {
	State    HarvestState `json:"state"`
	Sections []*Section   `json:"sections,omitempty"`
	Nodes    []*Node      `json:"nodes,omitempty"`
}

// Validate returns an error if the checkpoint is internally inconsistent.
func (c *Checkpoint) Validate() error {
	if err := c.State.Validate(); err != nil {
		return err
	}
	if !c.State.Phase.Before(PhaseTreeDiscovered) && len(c.Nodes) != c.State.TotalNodes {
		return Errorf(EINVALID, "checkpoint has %d nodes, state expects %d", len(c.Nodes), c.State.TotalNodes)
	}
	for i, n := range c.Nodes {
		if n == nil {
			return Errorf(EINVALID, "checkpoint node %d is null", i)
		}
		if n.Position != i {
			return Errorf(EINVALID, "checkpoint node %d has position %d", i, n.Position)
		}
	}
	return nil
}

// KeyValueStore is the persistence collaborator backing checkpoints.
type KeyValueStore interface {
	// Get returns the value stored at key.
	// Returns ENOTFOUND if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
