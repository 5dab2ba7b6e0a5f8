package kahn

// Step finalizes the Ready node with the smallest label, releases its
// Blocked dependents and labels the ones that became eligible, continuing
// from the largest label issued so far. It mutates s in place and returns
// the finalized node id.
//
// Step fails with INVARIANT_VIOLATION when no node is Ready, when the
// selected node has no label, or when a dependent's count would drop
// below zero. Deadlock detection belongs to [Run].
func Step(g Graph, s State, opts Options) (int, error) {
	if g.NodeCount() != len(s) {
		return -1, invariantViolation(-1, -1, "state has %d entries for %d nodes", len(s), g.NodeCount())
	}

	node := -1
	for i, e := range s {
		if e.Lifecycle != Ready {
			continue
		}
		// Strict comparison keeps the lower id on equal labels.
		if node < 0 || e.Label < s[node].Label {
			node = i
		}
	}
	if node < 0 {
		return -1, invariantViolation(-1, -1, "no ready node to finalize")
	}
	if !s[node].Labeled() {
		return -1, invariantViolation(-1, node, "ready node has no label")
	}

	s[node].Lifecycle = Done
	next := s.MaxLabel() + 1

	var batch []int
	for j := range s {
		if s[j].Lifecycle != Blocked || !g.DependsOn(node, j) {
			continue
		}
		if s[j].Remaining == 0 {
			return -1, invariantViolation(-1, j, "blocked node has no remaining constraints")
		}
		s[j].Remaining--
		if s[j].Remaining == 0 {
			batch = append(batch, j)
		}
	}
	promote(g, s, opts, batch, next)
	return node, nil
}
