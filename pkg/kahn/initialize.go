package kahn

// Initialize builds the first State for g. Every node starts Blocked with
// its in-degree as remaining count, except the nodes with no incoming edge,
// which are sorted by priority and labeled 1..k as Ready.
//
// A graph without such nodes yields an all-Blocked state; the deadlock is
// left for [Run] to detect.
func Initialize(g Graph, opts Options) (State, error) {
	if err := validateGraph(g); err != nil {
		return nil, err
	}
	n := g.NodeCount()
	s := make(State, n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			if g.DependsOn(i, j) {
				s[j].Remaining++
			}
		}
	}

	var free []int
	for i := range s {
		if s[i].Remaining == 0 {
			free = append(free, i)
		}
	}
	promote(g, s, opts, free, 1)
	return s, nil
}

// promote labels batch in priority order starting at next and marks it Ready.
func promote(g Graph, s State, opts Options, batch []int, next int) {
	opts.sortBatch(g, batch)
	for k, i := range batch {
		s[i].Label = next + k
		s[i].Lifecycle = Ready
	}
}
