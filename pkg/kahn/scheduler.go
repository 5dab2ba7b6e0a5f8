package kahn

import (
	"fmt"
	"slices"

	apperrors "github.com/matzehuels/kahnsched/pkg/errors"
)

// Status is the driver state of a run.
type Status int8

const (
	Running Status = iota
	Complete
	Deadlocked
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Complete:
		return "complete"
	case Deadlocked:
		return "deadlocked"
	default:
		return fmt.Sprintf("Status(%d)", int8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case Running, Complete, Deadlocked:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("invalid status %d", int8(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "running":
		*s = Running
	case "complete":
		*s = Complete
	case "deadlocked":
		*s = Deadlocked
	default:
		return fmt.Errorf("invalid status %q", b)
	}
	return nil
}

// Result is the outcome of a run.
type Result struct {
	Status Status `json:"status"`
	Steps  int    `json:"steps"`

	// History holds the initial snapshot and one snapshot per step.
	History History `json:"history"`

	// Final is the state after the run ended. It differs from the last
	// History snapshot only when nodes were force-terminated.
	Final State `json:"final"`

	// FinalLabels maps node id to label; NoLabel marks forced nodes.
	FinalLabels []int `json:"final_labels"`

	// Finalized lists node ids in the order Step finalized them.
	Finalized []int `json:"finalized"`

	// Forced lists the node ids force-terminated on deadlock.
	Forced []int `json:"forced,omitempty"`
}

// Deadlocked reports whether the run ended by force termination.
func (r *Result) Deadlocked() bool { return r.Status == Deadlocked }

// Order returns the legitimately scheduled node ids sorted by final label.
func (r *Result) Order() []int {
	var ids []int
	for i, l := range r.FinalLabels {
		if l != NoLabel {
			ids = append(ids, i)
		}
	}
	slices.SortFunc(ids, func(a, b int) int { return r.FinalLabels[a] - r.FinalLabels[b] })
	return ids
}

// Run schedules g to completion and records its trajectory.
//
// On deadlock the [DeadlockPolicy] in opts decides: ForceTerminate returns
// a Result with Status Deadlocked, Fail returns a DEADLOCK error wrapping a
// [*DeadlockError]. INVALID_GRAPH and INVARIANT_VIOLATION errors never
// come with a partial result.
func Run(g Graph, opts Options) (*Result, error) {
	s, err := Initialize(g, opts)
	if err != nil {
		return nil, err
	}
	if !opts.SkipInvariantChecks {
		if err := s.Verify(); err != nil {
			return nil, atStep(err, 0)
		}
	}

	n := len(s)
	r := &Result{
		Status:  Running,
		History: History{s.Clone()},
	}
	for r.Status == Running {
		if s.Count(Ready) == 0 {
			blocked := s.indices(Blocked)
			if len(blocked) == 0 {
				r.Status = Complete
				break
			}
			if opts.Deadlock == Fail {
				return nil, apperrors.Wrap(apperrors.ErrCodeDeadlock,
					&DeadlockError{Step: r.Steps, Blocked: blocked},
					"%d of %d nodes can never become ready", len(blocked), n)
			}
			for _, i := range blocked {
				s[i].Lifecycle = Done
				s[i].Forced = true
			}
			r.Forced = blocked
			r.Status = Deadlocked
			break
		}
		if r.Steps >= n {
			return nil, invariantViolation(r.Steps, -1, "run exceeded %d steps", n)
		}

		node, err := Step(g, s, opts)
		r.Steps++
		if err != nil {
			return nil, atStep(err, r.Steps)
		}
		r.Finalized = append(r.Finalized, node)
		if !opts.SkipInvariantChecks {
			if err := checkTransition(r.History[len(r.History)-1], s, r.Steps); err != nil {
				return nil, err
			}
		}
		r.History = append(r.History, s.Clone())
	}

	r.Final = s
	r.FinalLabels = DecodeLabels(s)
	return r, nil
}
