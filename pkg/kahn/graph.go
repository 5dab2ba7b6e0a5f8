package kahn

import (
	"math"

	apperrors "github.com/matzehuels/kahnsched/pkg/errors"
)

// Graph is the read-only view of a dependency graph consumed by the
// scheduler. Nodes are addressed by index in [0, NodeCount()).
//
// Implementations must answer consistently for the duration of a run:
// DependsOn and Priority must be free of side effects and stable.
// [github.com/matzehuels/kahnsched/pkg/dag.DAG] and
// [github.com/matzehuels/kahnsched/pkg/dag.Matrix] implement Graph.
type Graph interface {
	// NodeCount returns the number of nodes.
	NodeCount() int

	// DependsOn reports whether the edge i → j exists, i.e. j cannot
	// become eligible before i is finalized.
	DependsOn(i, j int) bool

	// Priority returns the tie-break key of node i. Under the default
	// Ascending order lower values are scheduled first. Values must be
	// finite: NaN has no order, and ±Inf cannot be written to the JSON
	// graph, result and cache formats, so Run rejects both.
	Priority(i int) float64
}

// validateGraph rejects graphs the scheduler cannot run on.
func validateGraph(g Graph) error {
	if g == nil {
		return apperrors.New(apperrors.ErrCodeInvalidGraph, "graph is nil")
	}
	n := g.NodeCount()
	if n <= 0 {
		return apperrors.New(apperrors.ErrCodeInvalidGraph, "graph has %d nodes, need at least 1", n)
	}
	for i := 0; i < n; i++ {
		if p := g.Priority(i); math.IsNaN(p) || math.IsInf(p, 0) {
			return apperrors.New(apperrors.ErrCodeInvalidGraph, "priority of node %d must be finite, got %v", i, p)
		}
	}
	return nil
}
