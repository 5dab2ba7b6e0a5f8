// Package store archives scheduling runs.
//
// A [Run] bundles a [kahn.Result] with the inputs that produced it, so a
// history can be replayed or served later without recomputation. Backends:
//   - [MemoryStore]: in-process, the default for the API server
//   - [FileStore]: one JSON file per run, used by the CLI archive
//   - [github.com/matzehuels/kahnsched/pkg/store/mongo.Store]: MongoDB, for
//     shared API deployments
//
// All backends return [ErrNotFound] for unknown IDs and list runs newest
// first.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/kahnsched/pkg/kahn"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 20

// Edge is a dependency removed before scheduling.
type Edge struct {
	From string `json:"from" bson:"from"`
	To   string `json:"to" bson:"to"`
}

// Run is an archived scheduling run.
type Run struct {
	ID           string        `json:"id" bson:"_id"`
	GraphHash    string        `json:"graph_hash" bson:"graph_hash"`
	NodeIDs      []string      `json:"node_ids" bson:"node_ids"`
	TieBreak     string        `json:"tie_break" bson:"tie_break"`
	Deadlock     string        `json:"deadlock" bson:"deadlock"`
	BreakCycles  bool          `json:"break_cycles" bson:"break_cycles"`
	RemovedEdges []Edge        `json:"removed_edges,omitempty" bson:"removed_edges,omitempty"`
	Result       *kahn.Result  `json:"result" bson:"result"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
	Duration     time.Duration `json:"duration_ns" bson:"duration_ns"`
}

// NewRun returns a Run with a fresh random ID and the current time.
func NewRun() *Run {
	return &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// Store persists runs. Implementations must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]*Run, error)
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
