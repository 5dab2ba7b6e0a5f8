package transform

import "github.com/matzehuels/kahnsched/pkg/dag"

// BackEdges returns the edges that close a directed cycle, as found by a
// depth-first search that starts from the source nodes (in index order) and
// then from any node left unvisited. Removing every returned edge leaves
// the graph acyclic. Self-loops are always reported.
//
// The search order depends only on node indices and edge insertion order,
// so the result is deterministic for a given graph.
func BackEdges(g *dag.DAG) []dag.Edge {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, g.NodeCount())
	var back []dag.Edge

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = gray
		for _, child := range g.Children(node) {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				back = append(back, dag.Edge{From: node, To: child})
			}
		}
		color[node] = black
	}

	for _, n := range g.Sources() {
		if color[n.ID] == white {
			dfs(n.ID)
		}
	}
	for _, n := range g.Nodes() {
		if color[n.ID] == white {
			dfs(n.ID)
		}
	}
	return back
}

// BreakCycles removes every back edge reported by [BackEdges] and returns
// the removed edges. After BreakCycles the scheduler can finalize every node.
func BreakCycles(g *dag.DAG) []dag.Edge {
	back := BackEdges(g)
	for _, e := range back {
		g.RemoveEdge(e.From, e.To)
	}
	return back
}
