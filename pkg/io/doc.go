// Package io reads and writes scheduler inputs and outputs.
//
// # Graph Format
//
// Graphs are JSON objects with "nodes" and "edges" arrays. A node's index
// is its position in "nodes"; priority defaults to 0.
//
//	{
//	  "nodes": [
//	    {"id": "fetch", "priority": 0},
//	    {"id": "build", "priority": 1, "meta": {"owner": "ci"}},
//	    {"id": "test"}
//	  ],
//	  "edges": [
//	    {"from": "fetch", "to": "build"},
//	    {"from": "build", "to": "test"}
//	  ]
//	}
//
// Cycles are accepted: the scheduler reports them as deadlocks. Duplicate
// node IDs, dangling edges, and non-finite priorities are rejected.
//
// # Result Formats
//
// [FormatJSON] writes the full result, one object per node per snapshot:
//
//	{"status": "complete", "steps": 3, "node_ids": [...],
//	 "final_labels": [1, 2, 3], "finalized": [0, 1, 2],
//	 "history": [[{"remaining": 0, "label": 1, "lifecycle": "ready"}, ...], ...]}
//
// [FormatTensor] writes the history as integer triples
// (remaining, label, state) with label -1 while unset and state -1, 0, 1 for
// blocked, ready, done. Forced nodes carry final label -1.
//
// [ReadResult] accepts both formats and validates the history it decodes.
package io
