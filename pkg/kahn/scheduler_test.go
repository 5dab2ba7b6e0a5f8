package kahn_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/kahnsched/pkg/dag"
	apperrors "github.com/matzehuels/kahnsched/pkg/errors"
	"github.com/matzehuels/kahnsched/pkg/kahn"
)

func chain() *dag.Matrix {
	return dag.NewMatrix(3).Set(0, 1).Set(1, 2)
}

func diamond() *dag.Matrix {
	m := dag.NewMatrix(4).Set(0, 1).Set(0, 2).Set(1, 3).Set(2, 3)
	m.SetPriority(1, 0).SetPriority(2, 1)
	return m
}

func twoCycle() *dag.Matrix {
	return dag.NewMatrix(2).Set(0, 1).Set(1, 0)
}

func TestRun_Chain(t *testing.T) {
	res, err := kahn.Run(chain(), kahn.Options{})
	require.NoError(t, err)

	assert.Equal(t, kahn.Complete, res.Status)
	assert.Equal(t, []int{1, 2, 3}, res.FinalLabels)
	assert.Equal(t, 3, res.Steps)
	assert.Len(t, res.History, 4)
	assert.Empty(t, res.Forced)
	assert.Equal(t, []int{0, 1, 2}, res.Order())
}

func TestRun_Diamond(t *testing.T) {
	res, err := kahn.Run(diamond(), kahn.Options{})
	require.NoError(t, err)

	assert.Equal(t, kahn.Complete, res.Status)
	assert.Equal(t, []int{1, 2, 3, 4}, res.FinalLabels)
	assert.Equal(t, []int{0, 1, 2, 3}, res.Finalized)

	// After the first step nodes 1 and 2 are promoted together.
	s1 := res.History[1]
	assert.Equal(t, kahn.Done, s1[0].Lifecycle)
	assert.Equal(t, kahn.Entry{Remaining: 0, Label: 2, Lifecycle: kahn.Ready}, s1[1])
	assert.Equal(t, kahn.Entry{Remaining: 0, Label: 3, Lifecycle: kahn.Ready}, s1[2])
	assert.Equal(t, kahn.Entry{Remaining: 2, Label: kahn.NoLabel, Lifecycle: kahn.Blocked}, s1[3])
}

func TestRun_DiamondDescending(t *testing.T) {
	res, err := kahn.Run(diamond(), kahn.Options{TieBreak: kahn.Descending})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 2, 4}, res.FinalLabels)
	assert.Equal(t, []int{0, 2, 1, 3}, res.Order())
}

func TestRun_CycleForced(t *testing.T) {
	res, err := kahn.Run(twoCycle(), kahn.Options{})
	require.NoError(t, err)

	assert.Equal(t, kahn.Deadlocked, res.Status)
	assert.True(t, res.Deadlocked())
	assert.Equal(t, 0, res.Steps)
	assert.Len(t, res.History, 1)
	assert.Equal(t, []int{0, 1}, res.Forced)
	assert.Equal(t, []int{kahn.NoLabel, kahn.NoLabel}, res.FinalLabels)
	assert.Empty(t, res.Order())

	for i, e := range res.Final {
		assert.Equal(t, kahn.Done, e.Lifecycle, "node %d", i)
		assert.True(t, e.Forced, "node %d", i)
	}
	// The recorded snapshot keeps the pre-termination state.
	for i, e := range res.History[0] {
		assert.Equal(t, kahn.Blocked, e.Lifecycle, "node %d", i)
		assert.Equal(t, 1, e.Remaining, "node %d", i)
	}
}

func TestRun_CycleFail(t *testing.T) {
	res, err := kahn.Run(twoCycle(), kahn.Options{Deadlock: kahn.Fail})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeDeadlock))

	var de *kahn.DeadlockError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 0, de.Step)
	assert.Equal(t, []int{0, 1}, de.Blocked)
}

func TestRun_SingleNode(t *testing.T) {
	for _, policy := range []kahn.DeadlockPolicy{kahn.ForceTerminate, kahn.Fail} {
		t.Run(policy.String(), func(t *testing.T) {
			res, err := kahn.Run(dag.NewMatrix(1), kahn.Options{Deadlock: policy})
			require.NoError(t, err)

			assert.Equal(t, kahn.Complete, res.Status)
			assert.Equal(t, []int{1}, res.FinalLabels)
			assert.Len(t, res.History, 2)
			assert.Equal(t, kahn.Ready, res.History[0][0].Lifecycle)
			assert.Equal(t, kahn.Done, res.History[1][0].Lifecycle)
		})
	}
}

func TestRun_PartialDeadlock(t *testing.T) {
	// 0 → 1 is schedulable; 2 ⇄ 3 is a cycle fed by 1.
	m := dag.NewMatrix(4).Set(0, 1).Set(1, 2).Set(2, 3).Set(3, 2)

	res, err := kahn.Run(m, kahn.Options{})
	require.NoError(t, err)
	assert.Equal(t, kahn.Deadlocked, res.Status)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, []int{2, 3}, res.Forced)
	assert.Equal(t, []int{1, 2, kahn.NoLabel, kahn.NoLabel}, res.FinalLabels)
	assert.NoError(t, res.History.Validate())

	_, err = kahn.Run(m, kahn.Options{Deadlock: kahn.Fail})
	var de *kahn.DeadlockError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 2, de.Step)
}

func TestRun_SelfLoop(t *testing.T) {
	res, err := kahn.Run(dag.NewMatrix(2).Set(1, 1), kahn.Options{})
	require.NoError(t, err)
	assert.Equal(t, kahn.Deadlocked, res.Status)
	assert.Equal(t, []int{1}, res.Forced)
	assert.Equal(t, []int{1, kahn.NoLabel}, res.FinalLabels)
}

func TestRun_InvalidGraph(t *testing.T) {
	nan := dag.NewMatrix(2)
	nan.SetPriority(1, math.NaN())
	negInf := dag.NewMatrix(1)
	negInf.SetPriority(0, math.Inf(-1))
	posInf := dag.NewMatrix(3)
	posInf.SetPriority(2, math.Inf(1))

	tests := []struct {
		name string
		g    kahn.Graph
		msg  string
	}{
		{"nil", nil, "graph is nil"},
		{"empty", dag.NewMatrix(0), "need at least 1"},
		{"nan priority", nan, "priority of node 1 must be finite"},
		{"negative infinity", negInf, "priority of node 0 must be finite"},
		{"positive infinity", posInf, "priority of node 2 must be finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := kahn.Run(tt.g, kahn.Options{})
			assert.Nil(t, res)
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidGraph), "err = %v", err)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestRun_DAGView(t *testing.T) {
	g := dag.New(nil)
	for _, n := range []dag.Node{{ID: "deploy", Priority: 0}, {ID: "test", Priority: 1}, {ID: "lint", Priority: 0}, {ID: "build"}} {
		require.NoError(t, g.AddNode(n))
	}
	require.NoError(t, g.AddEdge(dag.Edge{From: "build", To: "test"}))
	require.NoError(t, g.AddEdge(dag.Edge{From: "build", To: "lint"}))
	require.NoError(t, g.AddEdge(dag.Edge{From: "test", To: "deploy"}))
	require.NoError(t, g.AddEdge(dag.Edge{From: "lint", To: "deploy"}))

	res, err := kahn.Run(g, kahn.Options{})
	require.NoError(t, err)

	var order []string
	for _, i := range res.Order() {
		order = append(order, g.ID(i))
	}
	assert.Equal(t, []string{"build", "lint", "test", "deploy"}, order)
}

func TestHistoryIsIndependent(t *testing.T) {
	res, err := kahn.Run(chain(), kahn.Options{})
	require.NoError(t, err)

	res.History[1][0].Label = 99
	assert.Equal(t, 1, res.History[0][0].Label)
	assert.Equal(t, 1, res.History[2][0].Label)
	assert.Equal(t, 1, res.Final[0].Label)
}

func TestParseOptions(t *testing.T) {
	tb, err := kahn.ParseTieBreak("DESCENDING")
	require.NoError(t, err)
	assert.Equal(t, kahn.Descending, tb)

	tb, err = kahn.ParseTieBreak("")
	require.NoError(t, err)
	assert.Equal(t, kahn.Ascending, tb)

	_, err = kahn.ParseTieBreak("random")
	assert.Error(t, err)

	p, err := kahn.ParseDeadlockPolicy("fail")
	require.NoError(t, err)
	assert.Equal(t, kahn.Fail, p)

	p, err = kahn.ParseDeadlockPolicy("force")
	require.NoError(t, err)
	assert.Equal(t, kahn.ForceTerminate, p)

	_, err = kahn.ParseDeadlockPolicy("ignore")
	assert.Error(t, err)
}

func TestStatusText(t *testing.T) {
	for _, s := range []kahn.Status{kahn.Running, kahn.Complete, kahn.Deadlocked} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var got kahn.Status
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, s, got)
	}
	var l kahn.Lifecycle
	assert.Error(t, l.UnmarshalText([]byte("paused")))
}
