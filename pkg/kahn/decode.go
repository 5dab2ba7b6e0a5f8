package kahn

// DecodeLabels projects the label column out of s. Force-terminated and
// never-eligible nodes map to NoLabel.
func DecodeLabels(s State) []int {
	labels := make([]int, len(s))
	for i, e := range s {
		if e.Forced {
			labels[i] = NoLabel
			continue
		}
		labels[i] = e.Label
	}
	return labels
}

// Transitions returns, for each step of h, the node finalized in it. It is
// the diff a replay consumer derives between consecutive snapshots.
func Transitions(h History) []int {
	if len(h) < 2 {
		return nil
	}
	out := make([]int, 0, len(h)-1)
	for t := 1; t < len(h); t++ {
		node := -1
		for i := range h[t] {
			if h[t-1][i].Lifecycle == Ready && h[t][i].Lifecycle == Done {
				node = i
				break
			}
		}
		out = append(out, node)
	}
	return out
}
