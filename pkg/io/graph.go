package io

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/matzehuels/kahnsched/pkg/dag"
	apperrors "github.com/matzehuels/kahnsched/pkg/errors"
)

type graph struct {
	Meta  dag.Metadata `json:"meta,omitempty"`
	Nodes []node       `json:"nodes"`
	Edges []edge       `json:"edges"`
}

type node struct {
	ID       string       `json:"id"`
	Priority float64      `json:"priority"`
	Meta     dag.Metadata `json:"meta,omitempty"`
}

type edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ReadGraph decodes a JSON graph from r.
//
// Errors carry ErrCodeInvalidFormat for malformed JSON and
// ErrCodeInvalidGraph for structural problems (empty graph, bad or duplicate
// node IDs, unknown edge endpoints). ReadGraph does not close r.
func ReadGraph(r io.Reader) (*dag.DAG, error) {
	var data graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, err, "decode graph")
	}
	return build(data)
}

// UnmarshalGraph decodes a graph from a JSON document.
func UnmarshalGraph(b []byte) (*dag.DAG, error) {
	var data graph
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, err, "decode graph")
	}
	return build(data)
}

func build(data graph) (*dag.DAG, error) {
	if len(data.Nodes) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidGraph, "graph has no nodes")
	}
	g := dag.New(data.Meta)
	for i, n := range data.Nodes {
		if err := apperrors.ValidateNodeID(n.ID); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidGraph, err, "node %d", i)
		}
		if math.IsNaN(n.Priority) || math.IsInf(n.Priority, 0) {
			return nil, apperrors.New(apperrors.ErrCodeInvalidGraph, "node %s: priority must be finite", n.ID)
		}
		if err := g.AddNode(dag.Node{ID: n.ID, Priority: n.Priority, Meta: n.Meta}); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidGraph, err, "node %s", n.ID)
		}
	}
	for _, e := range data.Edges {
		if err := g.AddEdge(dag.Edge{From: e.From, To: e.To}); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidGraph, err, "edge %s->%s", e.From, e.To)
		}
	}
	return g, nil
}

// ImportGraph reads a JSON graph file.
func ImportGraph(path string) (*dag.DAG, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.ErrCodeFileNotFound, err, "graph file %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	g, err := ReadGraph(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// WriteGraph encodes g as indented JSON, preserving node and edge order.
func WriteGraph(g *dag.DAG, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toGraph(g, true)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportGraph writes g to a JSON file at path.
func ExportGraph(g *dag.DAG, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteGraph(g, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CanonicalJSON encodes the parts of g that affect scheduling: node IDs
// and priorities in index order, and edges sorted by endpoint index.
// Metadata is omitted. Inputs that schedule identically yield equal bytes.
func CanonicalJSON(g *dag.DAG) []byte {
	out := toGraph(g, false)
	slices.SortFunc(out.Edges, func(a, b edge) int {
		ai, _ := g.Index(a.From)
		bi, _ := g.Index(b.From)
		if c := cmp.Compare(ai, bi); c != 0 {
			return c
		}
		aj, _ := g.Index(a.To)
		bj, _ := g.Index(b.To)
		return cmp.Compare(aj, bj)
	})
	data, _ := json.Marshal(out)
	return data
}

func toGraph(g *dag.DAG, withMeta bool) graph {
	nodes := g.Nodes()
	edges := g.Edges()
	out := graph{
		Nodes: make([]node, len(nodes)),
		Edges: make([]edge, len(edges)),
	}
	if withMeta && len(g.Meta()) > 0 {
		out.Meta = g.Meta()
	}
	for i, n := range nodes {
		nd := node{ID: n.ID, Priority: n.Priority}
		if withMeta && len(n.Meta) > 0 {
			nd.Meta = n.Meta
		}
		out.Nodes[i] = nd
	}
	for i, e := range edges {
		out.Edges[i] = edge{From: e.From, To: e.To}
	}
	return out
}
