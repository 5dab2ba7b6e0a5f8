package kahn

import (
	"errors"
	"fmt"

	apperrors "github.com/matzehuels/kahnsched/pkg/errors"
)

// DeadlockError describes a run that ran out of Ready nodes.
type DeadlockError struct {
	Step    int   // steps completed before detection
	Blocked []int // ids still Blocked
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("deadlock after step %d: nodes %v blocked", e.Step, e.Blocked)
}

// InvariantError describes an internal consistency failure. Step is -1
// when the check ran outside a driver loop, Node is -1 when no single node
// is at fault.
type InvariantError struct {
	Step   int
	Node   int
	Reason string
}

func (e *InvariantError) Error() string {
	switch {
	case e.Step < 0 && e.Node < 0:
		return e.Reason
	case e.Step < 0:
		return fmt.Sprintf("node %d: %s", e.Node, e.Reason)
	case e.Node < 0:
		return fmt.Sprintf("step %d: %s", e.Step, e.Reason)
	}
	return fmt.Sprintf("step %d, node %d: %s", e.Step, e.Node, e.Reason)
}

func invariantViolation(step, node int, format string, args ...any) error {
	cause := &InvariantError{Step: step, Node: node, Reason: fmt.Sprintf(format, args...)}
	return apperrors.Wrap(apperrors.ErrCodeInvariantViolation, cause, "scheduler state inconsistent")
}

// atStep stamps the step number on an invariant error raised without one.
func atStep(err error, step int) error {
	var ie *InvariantError
	if errors.As(err, &ie) && ie.Step < 0 {
		ie.Step = step
	}
	return err
}
