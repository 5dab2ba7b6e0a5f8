// Package transform provides optional graph preprocessing applied before
// scheduling.
//
// The scheduler never fails on a cyclic graph: under the default policy it
// force-terminates the nodes caught in (or behind) a cycle and reports a
// deadlock. Callers that would rather schedule every node can run
// [BreakCycles] first, which removes DFS back edges and returns them so the
// caller can record what was dropped.
package transform
