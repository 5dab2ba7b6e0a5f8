// Package dag provides the dependency graph consumed by the scheduler.
//
// # Overview
//
// A graph is a set of nodes, each with a unique string ID and a float64
// scheduling priority, connected by dependency edges. An edge From → To
// means To cannot become eligible before From is finalized.
//
// Nodes are numbered in insertion order. The scheduler in package kahn
// addresses nodes purely by these indices, so [DAG] exposes the scheduler's
// graph view directly:
//
//   - [DAG.NodeCount]: number of nodes
//   - [DAG.DependsOn]: edge query by index
//   - [DAG.Priority]: tie-break key by index
//
// # Basic Usage
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "fetch", Priority: 0})
//	g.AddNode(dag.Node{ID: "build", Priority: 1})
//	g.AddEdge(dag.Edge{From: "fetch", To: "build"})
//
// Query the structure with [DAG.Children], [DAG.Parents] and [DAG.Index].
// [DAG.Validate] reports cycles; cyclic graphs are still accepted by the
// scheduler, which surfaces them as deadlocks.
//
// # Matrix
//
// [Matrix] is an index-only adjacency matrix implementing the same view.
// Use [MatrixOf] to freeze a DAG before sharing it between goroutines.
//
// # Concurrency
//
// DAG is not safe for concurrent mutation. Concurrent reads (for example
// several schedulers running over the same graph) are safe as long as no
// goroutine modifies it.
package dag
