package kahn

import (
	"slices"
)

// History is the ordered sequence of snapshots recorded by [Run]: the
// initial state followed by one snapshot per step. Snapshots are
// independent copies and are never mutated after being appended.
type History []State

// Steps returns the number of steps the history covers.
func (h History) Steps() int {
	if len(h) == 0 {
		return 0
	}
	return len(h) - 1
}

// Validate re-checks every snapshot and every transition between
// consecutive snapshots. It is used on histories read back from storage.
func (h History) Validate() error {
	if len(h) == 0 {
		return invariantViolation(-1, -1, "empty history")
	}
	if err := h[0].Verify(); err != nil {
		return atStep(err, 0)
	}
	for t := 1; t < len(h); t++ {
		if err := checkTransition(h[t-1], h[t], t); err != nil {
			return err
		}
	}
	return nil
}

// checkTransition verifies that next follows from prev by exactly one step.
func checkTransition(prev, next State, step int) error {
	if len(prev) != len(next) {
		return invariantViolation(step, -1, "snapshot has %d entries, previous had %d", len(next), len(prev))
	}
	if err := next.Verify(); err != nil {
		return atStep(err, step)
	}

	finalized := -1
	var promoted []int
	for i := range next {
		p, q := prev[i], next[i]
		if q.Remaining > p.Remaining {
			return invariantViolation(step, i, "remaining constraints rose from %d to %d", p.Remaining, q.Remaining)
		}
		if q.Lifecycle < p.Lifecycle {
			return invariantViolation(step, i, "lifecycle went back from %s to %s", p.Lifecycle, q.Lifecycle)
		}
		if p.Labeled() && q.Label != p.Label {
			return invariantViolation(step, i, "label changed from %d to %d", p.Label, q.Label)
		}
		switch {
		case p.Lifecycle == Ready && q.Lifecycle == Done:
			if finalized >= 0 {
				return invariantViolation(step, i, "second node finalized in one step (first %d)", finalized)
			}
			finalized = i
		case p.Lifecycle == Blocked && q.Lifecycle == Done:
			return invariantViolation(step, i, "blocked node finalized without becoming ready")
		case p.Lifecycle == Blocked && q.Lifecycle == Ready:
			promoted = append(promoted, i)
		}
	}
	if finalized < 0 {
		return invariantViolation(step, -1, "no node finalized")
	}

	// Newly issued labels continue the previous run without gaps.
	labels := make([]int, len(promoted))
	for k, i := range promoted {
		labels[k] = next[i].Label
	}
	slices.Sort(labels)
	base := prev.MaxLabel()
	for k, l := range labels {
		if l != base+1+k {
			return invariantViolation(step, -1, "issued labels %v do not continue from %d", labels, base)
		}
	}
	return nil
}

// Tensor encodes the history as [step][node][remaining, label, lifecycle]
// integers. Unset labels are -1; lifecycles map Blocked, Ready and Done to
// -1, 0 and 1.
func (h History) Tensor() [][][3]int {
	out := make([][][3]int, len(h))
	for t, s := range h {
		out[t] = s.Tensor()
	}
	return out
}

// Tensor encodes one snapshot; see [History.Tensor].
func (s State) Tensor() [][3]int {
	rows := make([][3]int, len(s))
	for i, e := range s {
		rows[i] = e.Tensor()
	}
	return rows
}

// Tensor encodes one entry; see [History.Tensor].
func (e Entry) Tensor() [3]int {
	label := e.Label
	if !e.Labeled() {
		label = -1
	}
	return [3]int{e.Remaining, label, int(e.Lifecycle) - 1}
}

// EntryFromTensor decodes a row produced by [Entry.Tensor].
func EntryFromTensor(row [3]int) (Entry, error) {
	e := Entry{Remaining: row[0], Label: row[1], Lifecycle: Lifecycle(row[2] + 1)}
	if row[1] == -1 {
		e.Label = NoLabel
	}
	if row[2] < -1 || row[2] > 1 {
		return Entry{}, invariantViolation(-1, -1, "lifecycle code %d out of range", row[2])
	}
	return e, nil
}
