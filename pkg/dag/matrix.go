package dag

// Matrix is a dense adjacency-matrix graph view over node indices 0..n-1.
//
// It is the index-only counterpart of [DAG]: cell (i, j) set means node j
// depends on node i. Matrix is convenient for synthetic graphs built
// programmatically and for freezing a [DAG] into an immutable view before
// handing it to concurrent schedulers.
type Matrix struct {
	adj      [][]bool
	priority []float64
}

// NewMatrix creates an n-node matrix with no edges and all priorities zero.
func NewMatrix(n int) *Matrix {
	if n < 0 {
		n = 0
	}
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	return &Matrix{adj: adj, priority: make([]float64, n)}
}

// MatrixOf freezes g into a Matrix. Later changes to g are not reflected.
func MatrixOf(g *DAG) *Matrix {
	m := NewMatrix(g.NodeCount())
	for i, n := range g.nodes {
		m.priority[i] = n.Priority
	}
	for key := range g.edgeSet {
		m.adj[key[0]][key[1]] = true
	}
	return m
}

// Set adds the edge i → j. It panics if i or j is out of range.
func (m *Matrix) Set(i, j int) *Matrix {
	m.adj[i][j] = true
	return m
}

// SetPriority assigns the tie-break priority of node i.
func (m *Matrix) SetPriority(i int, p float64) *Matrix {
	m.priority[i] = p
	return m
}

// NodeCount returns the number of nodes.
func (m *Matrix) NodeCount() int { return len(m.adj) }

// DependsOn reports whether the edge i → j is set.
func (m *Matrix) DependsOn(i, j int) bool { return m.adj[i][j] }

// Priority returns the priority of node i.
func (m *Matrix) Priority(i int) float64 { return m.priority[i] }

// EdgeCount returns the number of set cells.
func (m *Matrix) EdgeCount() int {
	count := 0
	for _, row := range m.adj {
		for _, v := range row {
			if v {
				count++
			}
		}
	}
	return count
}
