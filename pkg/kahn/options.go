package kahn

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// TieBreak fixes the priority direction used when several nodes become
// eligible together. Node index breaks remaining ties in both directions.
type TieBreak int8

const (
	// Ascending schedules lower priority values first (default).
	Ascending TieBreak = iota
	// Descending schedules higher priority values first.
	Descending
)

func (t TieBreak) String() string {
	if t == Descending {
		return "descending"
	}
	return "ascending"
}

// ParseTieBreak parses "ascending" or "descending" (case-insensitive).
// The empty string yields Ascending.
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascending", "asc":
		return Ascending, nil
	case "descending", "desc":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("unknown tie-break %q (want ascending or descending)", s)
}

// DeadlockPolicy selects how a run ends when no node is Ready while some
// remain Blocked.
type DeadlockPolicy int8

const (
	// ForceTerminate marks the stuck nodes Done without labels and returns
	// the result with Status Deadlocked (default).
	ForceTerminate DeadlockPolicy = iota
	// Fail aborts the run with a DEADLOCK error.
	Fail
)

func (p DeadlockPolicy) String() string {
	if p == Fail {
		return "fail"
	}
	return "force"
}

// ParseDeadlockPolicy parses "force" or "fail" (case-insensitive).
// The empty string yields ForceTerminate.
func ParseDeadlockPolicy(s string) (DeadlockPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "force", "force-terminate":
		return ForceTerminate, nil
	case "fail", "strict":
		return Fail, nil
	}
	return ForceTerminate, fmt.Errorf("unknown deadlock policy %q (want force or fail)", s)
}

// Options configures a run. The zero value is the default configuration.
type Options struct {
	TieBreak TieBreak
	Deadlock DeadlockPolicy

	// SkipInvariantChecks disables the per-step consistency checks in Run.
	SkipInvariantChecks bool
}

// sortBatch orders a batch of newly eligible nodes for labeling.
func (o Options) sortBatch(g Graph, batch []int) {
	slices.SortStableFunc(batch, func(a, b int) int {
		c := cmp.Compare(g.Priority(a), g.Priority(b))
		if o.TieBreak == Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
}
