package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	apperrors "github.com/matzehuels/kahnsched/pkg/errors"
	"github.com/matzehuels/kahnsched/pkg/kahn"
)

// Format selects the result encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatTensor Format = "tensor"
)

// ParseFormat parses a result format name. The empty string yields
// FormatJSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatTensor:
		return FormatTensor, nil
	}
	return "", apperrors.New(apperrors.ErrCodeInvalidFormat, "unknown result format %q (want json or tensor)", s)
}

type resultDoc struct {
	Status      kahn.Status     `json:"status"`
	Steps       int             `json:"steps"`
	NodeIDs     []string        `json:"node_ids,omitempty"`
	FinalLabels []int           `json:"final_labels"`
	Forced      []int           `json:"forced,omitempty"`
	Finalized   []int           `json:"finalized,omitempty"`
	History     json.RawMessage `json:"history"`
	Final       kahn.State      `json:"final,omitempty"`
}

// WriteResult encodes res in format f. nodeIDs may be nil.
func WriteResult(w io.Writer, res *kahn.Result, nodeIDs []string, f Format) error {
	doc := resultDoc{
		Status:  res.Status,
		Steps:   res.Steps,
		NodeIDs: nodeIDs,
		Forced:  res.Forced,
	}
	var history any
	switch f {
	case FormatJSON, "":
		doc.FinalLabels = res.FinalLabels
		doc.Finalized = res.Finalized
		doc.Final = res.Final
		history = res.History
	case FormatTensor:
		doc.FinalLabels = make([]int, len(res.FinalLabels))
		for i, l := range res.FinalLabels {
			if l == kahn.NoLabel {
				l = -1
			}
			doc.FinalLabels[i] = l
		}
		history = res.History.Tensor()
	default:
		return apperrors.New(apperrors.ErrCodeInvalidFormat, "unknown result format %q", f)
	}

	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	doc.History = raw

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// MarshalResult encodes res in format f.
func MarshalResult(res *kahn.Result, nodeIDs []string, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteResult(&buf, res, nodeIDs, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportResult writes res to path in format f.
func ExportResult(res *kahn.Result, nodeIDs []string, f Format, path string) error {
	if err := apperrors.ValidatePath(path); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteResult(out, res, nodeIDs, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReadResult decodes a result written in either format and validates it.
// The final state, labels, forced nodes and finalization order are derived
// from the history; values stored in the document must agree with them.
// It returns the node IDs stored alongside, if any.
func ReadResult(r io.Reader) (*kahn.Result, []string, error) {
	var doc resultDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, err, "decode result")
	}
	if len(doc.History) == 0 {
		return nil, nil, apperrors.New(apperrors.ErrCodeInvalidFormat, "result has no history")
	}

	h, tensor, err := decodeHistory(doc.History)
	if err != nil {
		return nil, nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, err, "history is inconsistent")
	}
	if doc.Steps != h.Steps() {
		return nil, nil, apperrors.New(apperrors.ErrCodeInvalidFormat, "steps %d does not match %d snapshots", doc.Steps, len(h))
	}
	if doc.NodeIDs != nil && len(doc.NodeIDs) != len(h[0]) {
		return nil, nil, apperrors.New(apperrors.ErrCodeInvalidFormat, "%d node IDs for %d nodes", len(doc.NodeIDs), len(h[0]))
	}

	final, forced, err := settle(doc.Status, h)
	if err != nil {
		return nil, nil, err
	}
	res := &kahn.Result{
		Status:      doc.Status,
		Steps:       doc.Steps,
		History:     h,
		Final:       final,
		FinalLabels: kahn.DecodeLabels(final),
		Finalized:   kahn.Transitions(h),
		Forced:      forced,
	}

	labels := doc.FinalLabels
	if tensor {
		labels = fromTensorLabels(labels)
	}
	switch {
	case doc.Final != nil && !slices.Equal(doc.Final, res.Final):
		return nil, nil, mismatch("final state")
	case labels != nil && !slices.Equal(labels, res.FinalLabels):
		return nil, nil, mismatch("final_labels")
	case doc.Forced != nil && !slices.Equal(doc.Forced, res.Forced):
		return nil, nil, mismatch("forced")
	case doc.Finalized != nil && !slices.Equal(doc.Finalized, res.Finalized):
		return nil, nil, mismatch("finalized")
	}
	return res, doc.NodeIDs, nil
}

func mismatch(field string) error {
	return apperrors.New(apperrors.ErrCodeInvalidFormat, "%s does not match the history", field)
}

// decodeHistory accepts snapshots as entry objects or as integer triples.
// tensor reports which encoding was found.
func decodeHistory(raw json.RawMessage) (h kahn.History, tensor bool, err error) {
	if err := json.Unmarshal(raw, &h); err == nil {
		return h, false, nil
	}
	var rows [][][3]int
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, err, "decode history")
	}
	h = make(kahn.History, len(rows))
	for t, snap := range rows {
		h[t] = make(kahn.State, len(snap))
		for i, row := range snap {
			e, err := kahn.EntryFromTensor(row)
			if err != nil {
				return nil, true, apperrors.Wrap(apperrors.ErrCodeInvalidFormat, err, "snapshot %d node %d", t, i)
			}
			h[t][i] = e
		}
	}
	return h, true, nil
}

// settle derives the end state of a run from its last snapshot. A complete
// run leaves every node Done; a deadlocked run force-terminates exactly the
// nodes still blocked.
func settle(status kahn.Status, h kahn.History) (kahn.State, []int, error) {
	if status != kahn.Complete && status != kahn.Deadlocked {
		return nil, nil, apperrors.New(apperrors.ErrCodeInvalidFormat, "run status %q is not final", status)
	}
	final := h[len(h)-1].Clone()
	var forced []int
	for i, e := range final {
		switch {
		case e.Lifecycle == kahn.Done:
		case status == kahn.Deadlocked && e.Lifecycle == kahn.Blocked:
			final[i].Lifecycle = kahn.Done
			final[i].Forced = true
			forced = append(forced, i)
		default:
			return nil, nil, apperrors.New(apperrors.ErrCodeInvalidFormat, "node %d is %s at the end of a %s run", i, e.Lifecycle, status)
		}
	}
	if status == kahn.Deadlocked && len(forced) == 0 {
		return nil, nil, apperrors.New(apperrors.ErrCodeInvalidFormat, "deadlocked run has no blocked nodes")
	}
	return final, forced, nil
}

// fromTensorLabels maps the tensor encoding's -1 back to NoLabel.
func fromTensorLabels(labels []int) []int {
	if labels == nil {
		return nil
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		if l == -1 {
			l = kahn.NoLabel
		}
		out[i] = l
	}
	return out
}

// ImportResult reads a result file written by [ExportResult].
func ImportResult(path string) (*kahn.Result, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, apperrors.Wrap(apperrors.ErrCodeFileNotFound, err, "result file %s", path)
		}
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadResult(f)
}
