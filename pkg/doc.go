// Package pkg provides the libraries behind kahnsched.
//
// # Overview
//
// kahnsched orders the nodes of a dependency graph with a priority-constrained
// variant of Kahn's algorithm. Nodes whose dependencies are all finalized are
// labeled in priority order when they become ready, and each step finalizes
// the ready node with the smallest label. Every intermediate state is kept,
// so a schedule can be replayed or used as training data.
//
// # Architecture
//
//	graph JSON
//	     ↓
//	[io] package (decode, validate)
//	     ↓
//	[dag] package (graph structure, optional cycle breaking)
//	     ↓
//	[kahn] package (initialize, step, run, history)
//	     ↓
//	[pipeline] package (cache, archive, batch)
//	     ↓
//	CLI (internal/cli) or HTTP API ([api])
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/kahnsched/pkg/dag"
//	    "github.com/matzehuels/kahnsched/pkg/kahn"
//	)
//
//	g := dag.NewMatrix(3).Set(0, 1).Set(0, 2)
//	g.SetPriority(1, 2).SetPriority(2, 1)
//
//	res, err := kahn.Run(g, kahn.Options{})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.FinalLabels) // [1 3 2]
//
// # Main Packages
//
// [kahn] - The scheduler: state vector, step engine, driver and history.
//
// [dag] - Named graphs with priorities, plus the dense [dag.Matrix] view.
//
// [io] - JSON graph input and result output (json and tensor formats).
//
// [pipeline] - Scheduling with caching, archiving and concurrent batches.
//
// [cache] - Result caches: file, Redis and no-op.
//
// [store] - Run archive: memory, file and MongoDB.
//
// [api] - HTTP API built on chi.
//
// [errors] - Structured error codes shared by all layers.
//
// [observability] - Hooks for scheduler, cache and HTTP events.
package pkg
