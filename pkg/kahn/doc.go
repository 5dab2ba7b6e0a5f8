// Package kahn implements a priority-constrained topological scheduler that
// records its complete trajectory.
//
// # Overview
//
// Given a [Graph] whose nodes carry a tie-break priority, [Run] computes a
// deterministic total execution order consistent with the dependency edges
// (Kahn's algorithm) and returns every intermediate scheduling state as a
// [History]. Downstream consumers replay the history step by step, for
// example as supervision data for a model that imitates the scheduler.
//
// # State Vector
//
// The scheduler's entire working memory is a [State]: one [Entry] per node
// holding the remaining constraint count (unsatisfied incoming edges), the
// label (order of issuance, [NoLabel] until the node first becomes
// eligible) and the [Lifecycle] (Blocked, Ready, Done).
//
// # Algorithm
//
//  1. [Initialize] counts in-degrees, collects the nodes with no incoming
//     edge, sorts them by priority (node index breaks ties) and labels them
//     1..k as Ready.
//  2. [Step] finalizes the Ready node with the smallest label, decrements
//     the constraint count of each Blocked dependent, and labels the
//     dependents that reached zero as one priority-ordered batch, continuing
//     from the largest label issued so far.
//  3. [Run] repeats Step, appending a snapshot after each call, until every
//     node is Done or no node is Ready while some remain Blocked.
//
// # Deadlock
//
// A graph with a cycle (or a node behind one) runs out of Ready nodes. Under
// the default [ForceTerminate] policy the remaining nodes are marked Done
// with [Entry.Forced] set and no label, the result reports [Deadlocked],
// and the history is still returned. Under [Fail] the run aborts with a
// DEADLOCK error and no partial result.
//
// # Determinism
//
// Run has no hidden inputs: the same graph and [Options] always produce the
// same History and final labels. Each run owns its state exclusively, so
// independent graphs can be scheduled on separate goroutines without
// synchronization. The Graph must not be mutated during a run.
//
// # Complexity
//
// Each step scans every node once (O(n) adjacency queries), and a run takes
// at most n steps, so a run costs O(n²). The engine targets small graphs
// (tens to hundreds of nodes).
package kahn
