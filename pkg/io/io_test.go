package io

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/kahnsched/pkg/dag"
	apperrors "github.com/matzehuels/kahnsched/pkg/errors"
	"github.com/matzehuels/kahnsched/pkg/kahn"
)

const diamondJSON = `{
  "meta": {"pipeline": "release"},
  "nodes": [
    {"id": "root"},
    {"id": "left", "priority": 0},
    {"id": "right", "priority": 1, "meta": {"owner": "ops"}},
    {"id": "sink"}
  ],
  "edges": [
    {"from": "root", "to": "left"},
    {"from": "root", "to": "right"},
    {"from": "left", "to": "sink"},
    {"from": "right", "to": "sink"}
  ]
}`

func TestReadGraph(t *testing.T) {
	g, err := ReadGraph(strings.NewReader(diamondJSON))
	if err != nil {
		t.Fatalf("ReadGraph() error: %v", err)
	}
	if g.NodeCount() != 4 || g.EdgeCount() != 4 {
		t.Errorf("got %d nodes, %d edges; want 4, 4", g.NodeCount(), g.EdgeCount())
	}
	if idx, _ := g.Index("right"); idx != 2 {
		t.Errorf("Index(right) = %d, want 2", idx)
	}
	if g.Priority(2) != 1 {
		t.Errorf("Priority(2) = %v, want 1", g.Priority(2))
	}
	n, _ := g.Node("right")
	if n.Meta["owner"] != "ops" {
		t.Errorf("Meta[owner] = %v, want ops", n.Meta["owner"])
	}
	if g.Meta()["pipeline"] != "release" {
		t.Errorf("graph Meta[pipeline] = %v, want release", g.Meta()["pipeline"])
	}
}

func TestReadGraphErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  apperrors.Code
	}{
		{"malformed", `{"nodes": [`, apperrors.ErrCodeInvalidFormat},
		{"no nodes", `{"nodes": [], "edges": []}`, apperrors.ErrCodeInvalidGraph},
		{"empty id", `{"nodes": [{"id": ""}]}`, apperrors.ErrCodeInvalidGraph},
		{"duplicate id", `{"nodes": [{"id": "a"}, {"id": "a"}]}`, apperrors.ErrCodeInvalidGraph},
		{"unknown edge target", `{"nodes": [{"id": "a"}], "edges": [{"from": "a", "to": "b"}]}`, apperrors.ErrCodeInvalidGraph},
		{"control character", `{"nodes": [{"id": "a\u0007"}]}`, apperrors.ErrCodeInvalidGraph},
		{"priority out of range", `{"nodes": [{"id": "a", "priority": 1e999}]}`, apperrors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadGraph(strings.NewReader(tt.input))
			if got := apperrors.GetCode(err); got != tt.code {
				t.Errorf("ReadGraph() code = %q, want %q (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestReadGraphAcceptsCycles(t *testing.T) {
	input := `{"nodes": [{"id": "a"}, {"id": "b"}], "edges": [{"from": "a", "to": "b"}, {"from": "b", "to": "a"}]}`
	g, err := ReadGraph(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadGraph() error: %v", err)
	}
	if !g.HasCycle() {
		t.Error("HasCycle() = false, want true")
	}
}

func TestGraphRoundTrip(t *testing.T) {
	g, err := ReadGraph(strings.NewReader(diamondJSON))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "g.json")
	if err := ExportGraph(g, path); err != nil {
		t.Fatalf("ExportGraph() error: %v", err)
	}
	back, err := ImportGraph(path)
	if err != nil {
		t.Fatalf("ImportGraph() error: %v", err)
	}
	if !bytes.Equal(CanonicalJSON(g), CanonicalJSON(back)) {
		t.Errorf("round trip changed graph:\n%s\n%s", CanonicalJSON(g), CanonicalJSON(back))
	}
	if back.Meta()["pipeline"] != "release" {
		t.Errorf("graph metadata lost in round trip: %v", back.Meta())
	}
}

func TestImportGraphMissing(t *testing.T) {
	_, err := ImportGraph(filepath.Join(t.TempDir(), "nope.json"))
	if !apperrors.Is(err, apperrors.ErrCodeFileNotFound) {
		t.Errorf("ImportGraph(missing) = %v, want FILE_NOT_FOUND", err)
	}
}

func TestCanonicalJSON(t *testing.T) {
	a := dag.New(nil)
	b := dag.New(nil)
	for _, g := range []*dag.DAG{a, b} {
		_ = g.AddNode(dag.Node{ID: "x"})
		_ = g.AddNode(dag.Node{ID: "y"})
		_ = g.AddNode(dag.Node{ID: "z"})
	}
	_ = a.AddEdge(dag.Edge{From: "x", To: "y"})
	_ = a.AddEdge(dag.Edge{From: "y", To: "z"})
	_ = b.AddEdge(dag.Edge{From: "y", To: "z"})
	_ = b.AddEdge(dag.Edge{From: "x", To: "y"})
	n, _ := b.Node("z")
	n.Meta["note"] = "ignored"

	if !bytes.Equal(CanonicalJSON(a), CanonicalJSON(b)) {
		t.Error("CanonicalJSON should ignore edge insertion order and metadata")
	}

	n.Priority = 3
	if bytes.Equal(CanonicalJSON(a), CanonicalJSON(b)) {
		t.Error("CanonicalJSON should reflect priorities")
	}
}

func run(t *testing.T, g kahn.Graph) *kahn.Result {
	t.Helper()
	res, err := kahn.Run(g, kahn.Options{})
	if err != nil {
		t.Fatalf("kahn.Run() error: %v", err)
	}
	return res
}

func TestResultRoundTrip(t *testing.T) {
	graphs := map[string]kahn.Graph{
		"diamond":   dag.NewMatrix(4).Set(0, 1).Set(0, 2).Set(1, 3).Set(2, 3),
		"deadlock":  dag.NewMatrix(3).Set(0, 1).Set(1, 2).Set(2, 1),
		"singleton": dag.NewMatrix(1),
	}
	for name, g := range graphs {
		for _, f := range []Format{FormatJSON, FormatTensor} {
			t.Run(name+"/"+string(f), func(t *testing.T) {
				res := run(t, g)
				ids := make([]string, g.NodeCount())
				for i := range ids {
					ids[i] = string(rune('a' + i))
				}

				var buf bytes.Buffer
				if err := WriteResult(&buf, res, ids, f); err != nil {
					t.Fatalf("WriteResult() error: %v", err)
				}
				back, gotIDs, err := ReadResult(&buf)
				if err != nil {
					t.Fatalf("ReadResult() error: %v", err)
				}

				if back.Status != res.Status || back.Steps != res.Steps {
					t.Errorf("status/steps = %v/%d, want %v/%d", back.Status, back.Steps, res.Status, res.Steps)
				}
				if len(gotIDs) != len(ids) {
					t.Errorf("node IDs = %v, want %v", gotIDs, ids)
				}
				for i := range res.FinalLabels {
					if back.FinalLabels[i] != res.FinalLabels[i] {
						t.Errorf("FinalLabels[%d] = %d, want %d", i, back.FinalLabels[i], res.FinalLabels[i])
					}
				}
				if len(back.Forced) != len(res.Forced) {
					t.Errorf("Forced = %v, want %v", back.Forced, res.Forced)
				}
				for i := range res.Finalized {
					if back.Finalized[i] != res.Finalized[i] {
						t.Errorf("Finalized = %v, want %v", back.Finalized, res.Finalized)
						break
					}
				}
			})
		}
	}
}

func TestTensorEncoding(t *testing.T) {
	res := run(t, dag.NewMatrix(2).Set(0, 1).Set(1, 0))

	data, err := MarshalResult(res, nil, FormatTensor)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Status      string     `json:"status"`
		History     [][][3]int `json:"history"`
		FinalLabels []int      `json:"final_labels"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Status != "deadlocked" {
		t.Errorf("status = %s, want deadlocked", doc.Status)
	}
	if len(doc.History) != 1 || doc.History[0][0] != [3]int{1, -1, -1} {
		t.Errorf("history = %v, want one all-blocked snapshot", doc.History)
	}
	if doc.FinalLabels[0] != -1 || doc.FinalLabels[1] != -1 {
		t.Errorf("final_labels = %v, want [-1 -1]", doc.FinalLabels)
	}
}

func TestReadResultRejectsInconsistentHistory(t *testing.T) {
	res := run(t, dag.NewMatrix(3).Set(0, 1).Set(1, 2))
	res.History[2][1].Label = 9

	var buf bytes.Buffer
	if err := WriteResult(&buf, res, nil, FormatJSON); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadResult(&buf); !apperrors.Is(err, apperrors.ErrCodeInvalidFormat) {
		t.Errorf("ReadResult() = %v, want INVALID_FORMAT", err)
	}
}

func TestReadResultRejectsInconsistentOutcome(t *testing.T) {
	deadlock := dag.NewMatrix(4).Set(0, 1).Set(1, 2).Set(2, 3).Set(3, 2)

	tests := []struct {
		name   string
		g      kahn.Graph
		f      Format
		tamper func(doc map[string]any)
		field  string
	}{
		{"relabeled", deadlock, FormatJSON, func(doc map[string]any) { doc["final_labels"] = []int{2, 1, 0, 0} }, "final_labels"},
		{"forced node labeled", deadlock, FormatJSON, func(doc map[string]any) { doc["final_labels"] = []int{1, 2, 3, 0} }, "final_labels"},
		{"forced list", deadlock, FormatJSON, func(doc map[string]any) { doc["forced"] = []int{3} }, "forced"},
		{"finalized order", deadlock, FormatJSON, func(doc map[string]any) { doc["finalized"] = []int{1, 0} }, "finalized"},
		{"final state", deadlock, FormatJSON, func(doc map[string]any) {
			final := doc["final"].([]any)
			final[3].(map[string]any)["forced"] = false
		}, "final state"},
		{"tensor labels", deadlock, FormatTensor, func(doc map[string]any) { doc["final_labels"] = []int{1, 2, 3, -1} }, "final_labels"},
		{"complete with blocked nodes", deadlock, FormatJSON, func(doc map[string]any) { doc["status"] = "complete" }, "blocked"},
		{"deadlocked without blocked nodes", dag.NewMatrix(2).Set(0, 1), FormatJSON, func(doc map[string]any) { doc["status"] = "deadlocked" }, "no blocked nodes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalResult(run(t, tt.g), nil, tt.f)
			if err != nil {
				t.Fatal(err)
			}
			var doc map[string]any
			if err := json.Unmarshal(data, &doc); err != nil {
				t.Fatal(err)
			}
			tt.tamper(doc)
			tampered, err := json.Marshal(doc)
			if err != nil {
				t.Fatal(err)
			}

			_, _, err = ReadResult(bytes.NewReader(tampered))
			if !apperrors.Is(err, apperrors.ErrCodeInvalidFormat) {
				t.Fatalf("ReadResult() = %v, want INVALID_FORMAT", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("ReadResult() error = %v, want it to name %q", err, tt.field)
			}
		})
	}
}

func TestReadResultDerivesOutcome(t *testing.T) {
	res := run(t, dag.NewMatrix(3).Set(0, 1).Set(1, 2).Set(2, 1))
	data, err := MarshalResult(res, nil, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	// A document carrying only the history still yields the full outcome.
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"final", "final_labels", "forced", "finalized"} {
		delete(doc, k)
	}
	slim, _ := json.Marshal(doc)

	back, _, err := ReadResult(bytes.NewReader(slim))
	if err != nil {
		t.Fatalf("ReadResult() error: %v", err)
	}
	if !reflect.DeepEqual(back.Final, res.Final) || !reflect.DeepEqual(back.FinalLabels, res.FinalLabels) {
		t.Errorf("derived final = %v %v, want %v %v", back.Final, back.FinalLabels, res.Final, res.FinalLabels)
	}
	if !reflect.DeepEqual(back.Forced, res.Forced) || !reflect.DeepEqual(back.Finalized, res.Finalized) {
		t.Errorf("derived forced/finalized = %v/%v, want %v/%v", back.Forced, back.Finalized, res.Forced, res.Finalized)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"TENSOR", FormatTensor, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
