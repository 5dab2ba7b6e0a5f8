package dag

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	// All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists in the graph. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrInvalidEdgeEndpoint is returned by [DAG.Validate] when an edge
	// references a node that doesn't exist. This indicates graph corruption.
	ErrInvalidEdgeEndpoint = errors.New("invalid edge endpoint")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a cycle is detected.
	// Cycles are detected using depth-first search with white/gray/black
	// coloring. A cyclic graph is still a valid scheduler input; the
	// scheduler reports it as a deadlock.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes or the graph.
// Metadata maps are never nil - they are automatically initialized to empty
// maps when needed.
type Metadata map[string]any

// Node is a vertex of the dependency graph.
//
// Priority is the scheduling tie-break key: when several nodes become
// eligible in the same batch, the scheduler labels them in ascending
// Priority order (or descending, if configured). Priorities need not be
// unique; ties are broken by node index. They must be finite.
type Node struct {
	ID       string   // Unique identifier
	Priority float64  // Tie-break key, lower is preferred by default
	Meta     Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// Edge is a dependency From → To: To cannot start before From completes.
type Edge struct {
	From string   // Source node ID
	To   string   // Target node ID
	Meta Metadata // Arbitrary key-value metadata (never nil after AddEdge)
}

// DAG is a directed dependency graph whose nodes carry a scheduling priority.
//
// Every node has a stable integer index equal to its insertion position.
// Indices are what the scheduler works with: DAG implements the scheduler's
// graph view through [DAG.NodeCount], [DAG.DependsOn] and [DAG.Priority].
//
// Despite the name, a DAG may contain cycles; [DAG.Validate] reports them.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent use without external synchronization, but
// concurrent read-only use (as during scheduling) is safe.
type DAG struct {
	nodes    []*Node
	index    map[string]int
	edges    []Edge
	edgeSet  map[[2]int]struct{}
	outgoing map[string][]string // nodeID -> children IDs
	incoming map[string][]string // nodeID -> parent IDs
	meta     Metadata
}

// New creates an empty DAG with optional graph-level metadata.
// The metadata parameter can be nil, in which case an empty map is created.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		index:    make(map[string]int),
		edgeSet:  make(map[[2]int]struct{}),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		meta:     meta,
	}
}

// Meta returns the graph-level metadata map.
// The returned map is never nil and can be safely modified.
func (d *DAG) Meta() Metadata { return d.meta }

// AddNode appends a node to the graph. The node's index is the number of
// nodes added before it.
// Returns ErrInvalidNodeID if the node ID is empty, or ErrDuplicateNodeID
// if a node with the same ID already exists. The node's Meta field is
// automatically initialized to an empty map if nil.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.index[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	node := &n
	d.index[node.ID] = len(d.nodes)
	d.nodes = append(d.nodes, node)
	return nil
}

// AddEdge adds a directed edge between two existing nodes.
// Returns ErrUnknownSourceNode if the From node doesn't exist, or
// ErrUnknownTargetNode if the To node doesn't exist. The edge's Meta
// field is automatically initialized to an empty map if nil.
//
// The dependency relation is boolean: adding an edge that already exists
// is a no-op. Self-loops are accepted and make the node unschedulable.
func (d *DAG) AddEdge(e Edge) error {
	from, ok := d.index[e.From]
	if !ok {
		return ErrUnknownSourceNode
	}
	to, ok := d.index[e.To]
	if !ok {
		return ErrUnknownTargetNode
	}
	key := [2]int{from, to}
	if _, exists := d.edgeSet[key]; exists {
		return nil
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	d.edgeSet[key] = struct{}{}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// RemoveEdge removes the edge from→to if it exists.
// No error is returned if the edge does not exist.
func (d *DAG) RemoveEdge(from, to string) {
	i, okFrom := d.index[from]
	j, okTo := d.index[to]
	if !okFrom || !okTo {
		return
	}
	delete(d.edgeSet, [2]int{i, j})
	d.edges = slices.DeleteFunc(d.edges, func(e Edge) bool { return e.From == from && e.To == to })
	d.outgoing[from] = slices.DeleteFunc(d.outgoing[from], func(s string) bool { return s == to })
	d.incoming[to] = slices.DeleteFunc(d.incoming[to], func(s string) bool { return s == from })
}

// Clone returns a deep copy of the graph structure. Node and edge metadata
// maps are shared with the original.
func (d *DAG) Clone() *DAG {
	c := New(d.meta)
	for _, n := range d.nodes {
		_ = c.AddNode(*n)
	}
	for _, e := range d.edges {
		_ = c.AddEdge(e)
	}
	return c
}

// Nodes returns all nodes in index order. The returned slice contains
// pointers to the actual node structs, so modifications affect the graph
// (except for ID changes, which corrupt the index).
func (d *DAG) Nodes() []*Node { return slices.Clone(d.nodes) }

// Edges returns a copy of all edges in the graph.
// The order matches insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes in the graph.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of distinct edges in the graph.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the IDs of nodes that depend on this node, in edge
// insertion order. The returned slice should not be modified.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the IDs of nodes this node depends on, in edge insertion
// order. The returned slice should not be modified.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// InDegree returns the number of incoming edges to the node.
// Returns 0 if the node doesn't exist.
func (d *DAG) InDegree(id string) int { return len(d.incoming[id]) }

// Node returns the node with the given ID and true, or nil and false if not found.
func (d *DAG) Node(id string) (*Node, bool) {
	i, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return d.nodes[i], true
}

// Index returns the integer index of the node with the given ID.
func (d *DAG) Index(id string) (int, bool) {
	i, ok := d.index[id]
	return i, ok
}

// ID returns the ID of the node at index i. It panics if i is out of range.
func (d *DAG) ID(i int) string { return d.nodes[i].ID }

// DependsOn reports whether the edge i → j exists, i.e. node j cannot
// become eligible before node i is finalized.
func (d *DAG) DependsOn(i, j int) bool {
	_, ok := d.edgeSet[[2]int{i, j}]
	return ok
}

// Priority returns the tie-break priority of the node at index i.
func (d *DAG) Priority(i int) float64 { return d.nodes[i].Priority }

// Sources returns nodes with no incoming edges, in index order.
// Returns nil for an empty graph.
func (d *DAG) Sources() []*Node {
	var sources []*Node
	for _, n := range d.nodes {
		if len(d.incoming[n.ID]) == 0 {
			sources = append(sources, n)
		}
	}
	return sources
}

// Sinks returns nodes with no outgoing edges, in index order.
// Returns nil for an empty graph.
func (d *DAG) Sinks() []*Node {
	var sinks []*Node
	for _, n := range d.nodes {
		if len(d.outgoing[n.ID]) == 0 {
			sinks = append(sinks, n)
		}
	}
	return sinks
}

// Validate checks graph integrity and returns nil if valid.
// It verifies two constraints:
//
//  1. All edges connect existing nodes
//  2. The graph is acyclic (no directed cycles exist)
//
// Returns ErrInvalidEdgeEndpoint if an edge references a missing node or
// ErrGraphHasCycle if a cycle is detected.
//
// Cycle detection runs in O(N+E) time using depth-first search.
func (d *DAG) Validate() error {
	for _, e := range d.edges {
		_, okS := d.index[e.From]
		_, okD := d.index[e.To]
		if !okS || !okD {
			return ErrInvalidEdgeEndpoint
		}
	}
	if d.HasCycle() {
		return ErrGraphHasCycle
	}
	return nil
}

// HasCycle reports whether the graph contains a directed cycle,
// including self-loops.
func (d *DAG) HasCycle() bool {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(d.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range d.outgoing[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				hasCycle = true
			}
			if hasCycle {
				return
			}
		}
		color[id] = black
	}

	for _, n := range d.nodes {
		if color[n.ID] == white {
			dfs(n.ID)
			if hasCycle {
				return true
			}
		}
	}
	return false
}

// NodeIDs extracts the ID from each node in a slice.
// Returns a new slice containing the IDs in the same order as the input.
func NodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
