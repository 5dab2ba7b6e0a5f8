package kahn

import (
	"fmt"
)

// Lifecycle is the scheduling phase of a node.
type Lifecycle int8

const (
	// Blocked nodes still have unsatisfied incoming dependencies.
	Blocked Lifecycle = iota
	// Ready nodes are eligible and hold a label.
	Ready
	// Done nodes have been finalized (or force-terminated).
	Done
)

// NoLabel is the label of a node that has not yet become eligible.
const NoLabel = 0

func (l Lifecycle) String() string {
	switch l {
	case Blocked:
		return "blocked"
	case Ready:
		return "ready"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int8(l))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifecycle) MarshalText() ([]byte, error) {
	switch l {
	case Blocked, Ready, Done:
		return []byte(l.String()), nil
	}
	return nil, fmt.Errorf("invalid lifecycle %d", int8(l))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifecycle) UnmarshalText(b []byte) error {
	switch string(b) {
	case "blocked":
		*l = Blocked
	case "ready":
		*l = Ready
	case "done":
		*l = Done
	default:
		return fmt.Errorf("invalid lifecycle %q", b)
	}
	return nil
}

// Entry is the per-node scheduling record.
type Entry struct {
	Remaining int       `json:"remaining"`
	Label     int       `json:"label"`
	Lifecycle Lifecycle `json:"lifecycle"`
	Forced    bool      `json:"forced,omitempty"`
}

// Labeled reports whether the entry holds a label.
func (e Entry) Labeled() bool { return e.Label != NoLabel }

// State is the scheduler's working memory, indexed by node id.
type State []Entry

// Clone returns an independent copy of s.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	c := make(State, len(s))
	copy(c, s)
	return c
}

// Ready returns the ids of Ready nodes in index order.
func (s State) Ready() []int {
	return s.indices(Ready)
}

// Count returns the number of nodes in lifecycle l.
func (s State) Count(l Lifecycle) int {
	n := 0
	for _, e := range s {
		if e.Lifecycle == l {
			n++
		}
	}
	return n
}

// MaxLabel returns the largest label issued so far, or NoLabel.
func (s State) MaxLabel() int {
	m := NoLabel
	for _, e := range s {
		if e.Label > m {
			m = e.Label
		}
	}
	return m
}

func (s State) indices(l Lifecycle) []int {
	var ids []int
	for i, e := range s {
		if e.Lifecycle == l {
			ids = append(ids, i)
		}
	}
	return ids
}

// Verify checks the invariants that must hold within a single snapshot:
// remaining counts are non-negative, a node is unblocked exactly when its
// count is zero and it holds a label, and no two nodes share a label.
// Force-terminated entries are exempt from the unblocked rules.
func (s State) Verify() error {
	seen := make(map[int]int, len(s))
	for i, e := range s {
		if e.Remaining < 0 {
			return invariantViolation(-1, i, "remaining constraints %d below zero", e.Remaining)
		}
		if e.Label < 0 {
			return invariantViolation(-1, i, "negative label %d", e.Label)
		}
		if e.Forced {
			if e.Lifecycle != Done {
				return invariantViolation(-1, i, "forced node is %s", e.Lifecycle)
			}
			continue
		}
		switch e.Lifecycle {
		case Blocked:
			if e.Remaining == 0 {
				return invariantViolation(-1, i, "blocked with no remaining constraints")
			}
			if e.Labeled() {
				return invariantViolation(-1, i, "blocked node holds label %d", e.Label)
			}
		case Ready, Done:
			if e.Remaining != 0 {
				return invariantViolation(-1, i, "%s with %d remaining constraints", e.Lifecycle, e.Remaining)
			}
			if !e.Labeled() {
				return invariantViolation(-1, i, "%s node has no label", e.Lifecycle)
			}
		default:
			return invariantViolation(-1, i, "unknown lifecycle %d", int8(e.Lifecycle))
		}
		if e.Labeled() {
			if other, dup := seen[e.Label]; dup {
				return invariantViolation(-1, i, "label %d already held by node %d", e.Label, other)
			}
			seen[e.Label] = i
		}
	}
	return nil
}
