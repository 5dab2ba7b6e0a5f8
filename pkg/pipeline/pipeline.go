// Package pipeline runs the scheduler with caching, archiving and
// instrumentation.
//
// The CLI and the API server share this package so that both apply the
// same defaults, cache keys and cycle handling.
//
// # Stages
//
//  1. Prepare: optionally break cycles on a copy of the input graph
//  2. Schedule: run the scheduler, or load the result from the cache
//  3. Archive: optionally persist the run in a [store.Store]
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	result, err := runner.Schedule(ctx, g, pipeline.Options{Deadlock: "fail"})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Run.FinalLabels)
//
// Many graphs can be scheduled concurrently with [Runner.Batch].
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/kahnsched/pkg/cache"
	"github.com/matzehuels/kahnsched/pkg/dag"
	apperrors "github.com/matzehuels/kahnsched/pkg/errors"
	kio "github.com/matzehuels/kahnsched/pkg/io"
	"github.com/matzehuels/kahnsched/pkg/kahn"
	"github.com/matzehuels/kahnsched/pkg/store"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	DefaultTieBreak = "ascending"
	DefaultDeadlock = "force"
	DefaultFormat   = string(kio.FormatJSON)

	// DefaultWorkers bounds concurrent runs in Batch when no limit is given.
	DefaultWorkers = 4
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures a scheduling run. It supports JSON for API requests.
type Options struct {
	TieBreak    string `json:"tie_break,omitempty"`
	Deadlock    string `json:"deadlock,omitempty"`
	BreakCycles bool   `json:"break_cycles,omitempty"`
	Format      string `json:"format,omitempty"`

	// Refresh bypasses the cache lookup; the fresh result is still stored.
	Refresh bool `json:"refresh,omitempty"`

	// Archive saves the run in the runner's store.
	Archive bool `json:"archive,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	sched     kahn.Options
	validated bool
}

// ValidateAndSetDefaults checks option values and applies defaults.
// It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	tb, err := kahn.ParseTieBreak(o.TieBreak)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "tie_break")
	}
	dp, err := kahn.ParseDeadlockPolicy(o.Deadlock)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "deadlock")
	}
	f, err := kio.ParseFormat(o.Format)
	if err != nil {
		return err
	}
	o.sched = kahn.Options{TieBreak: tb, Deadlock: dp}
	o.TieBreak = tb.String()
	o.Deadlock = dp.String()
	o.Format = string(f)
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// KahnOptions returns the scheduler options. Call ValidateAndSetDefaults
// first.
func (o *Options) KahnOptions() kahn.Options { return o.sched }

// RunKeyOpts returns cache key options for a run.
func (o *Options) RunKeyOpts() cache.RunKeyOpts {
	return cache.RunKeyOpts{
		TieBreak:    o.TieBreak,
		Deadlock:    o.Deadlock,
		BreakCycles: o.BreakCycles,
	}
}

// =============================================================================
// Result
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the graph that was scheduled, after cycle breaking.
	Graph *dag.DAG

	// GraphHash is the content hash of the input graph.
	GraphHash string

	// Run is the scheduler output.
	Run *kahn.Result

	// RemovedEdges lists edges dropped by cycle breaking.
	RemovedEdges []dag.Edge

	// Archived is the stored run, when archiving was requested.
	Archived *store.Run

	Options  Options
	Stats    Stats
	CacheHit bool
}

// Stats contains run statistics.
type Stats struct {
	NodeCount    int
	EdgeCount    int
	ScheduleTime time.Duration
}

// NodeIDs returns the scheduled graph's node IDs in index order.
func (r *Result) NodeIDs() []string {
	return dag.NodeIDs(r.Graph.Nodes())
}

// ToRun converts r into an archive record with a fresh ID.
func (r *Result) ToRun() *store.Run {
	run := store.NewRun()
	run.GraphHash = r.GraphHash
	run.NodeIDs = r.NodeIDs()
	run.TieBreak = r.Options.TieBreak
	run.Deadlock = r.Options.Deadlock
	run.BreakCycles = r.Options.BreakCycles
	run.Result = r.Run
	run.Duration = r.Stats.ScheduleTime
	for _, e := range r.RemovedEdges {
		run.RemovedEdges = append(run.RemovedEdges, store.Edge{From: e.From, To: e.To})
	}
	return run
}

// Encode writes the scheduler output in the configured format.
func (r *Result) Encode() ([]byte, error) {
	f, err := kio.ParseFormat(r.Options.Format)
	if err != nil {
		return nil, err
	}
	data, err := kio.MarshalResult(r.Run, r.NodeIDs(), f)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}
