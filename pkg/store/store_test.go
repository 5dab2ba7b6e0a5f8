package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/kahnsched/pkg/dag"
	"github.com/matzehuels/kahnsched/pkg/kahn"
)

func sampleRun(t *testing.T, created time.Time) *Run {
	t.Helper()
	res, err := kahn.Run(dag.NewMatrix(3).Set(0, 1).Set(1, 2), kahn.Options{})
	if err != nil {
		t.Fatalf("kahn.Run() error: %v", err)
	}
	run := NewRun()
	run.CreatedAt = created
	run.GraphHash = "abc"
	run.NodeIDs = []string{"a", "b", "c"}
	run.TieBreak = "ascending"
	run.Deadlock = "force"
	run.Result = res
	run.Duration = time.Millisecond
	return run
}

func backends(t *testing.T) map[string]Store {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "runs"))
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
}

func TestStoreSaveGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			run := sampleRun(t, time.Now().UTC())
			if err := s.Save(ctx, run); err != nil {
				t.Fatalf("Save() error: %v", err)
			}

			got, err := s.Get(ctx, run.ID)
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if got.ID != run.ID || got.GraphHash != run.GraphHash {
				t.Errorf("Get() = %s/%s, want %s/%s", got.ID, got.GraphHash, run.ID, run.GraphHash)
			}
			if got.Result.Status != kahn.Complete {
				t.Errorf("Result.Status = %v, want complete", got.Result.Status)
			}
			if fmt.Sprint(got.Result.FinalLabels) != "[1 2 3]" {
				t.Errorf("Result.FinalLabels = %v, want [1 2 3]", got.Result.FinalLabels)
			}
			if err := got.Result.History.Validate(); err != nil {
				t.Errorf("stored history invalid: %v", err)
			}
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f", "../etc/passwd", ""} {
				if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
					t.Errorf("Get(%q) error = %v, want ErrNotFound", id, err)
				}
			}
		})
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var ids []string
			for i := 0; i < 5; i++ {
				run := sampleRun(t, base.Add(time.Duration(i)*time.Minute))
				ids = append(ids, run.ID)
				if err := s.Save(ctx, run); err != nil {
					t.Fatal(err)
				}
			}

			runs, err := s.List(ctx, 3)
			if err != nil {
				t.Fatalf("List() error: %v", err)
			}
			if len(runs) != 3 {
				t.Fatalf("List(3) returned %d runs", len(runs))
			}
			for i, want := range []string{ids[4], ids[3], ids[2]} {
				if runs[i].ID != want {
					t.Errorf("List()[%d] = %s, want %s", i, runs[i].ID, want)
				}
			}

			all, _ := s.List(ctx, 0)
			if len(all) != 5 {
				t.Errorf("List(0) returned %d runs, want 5", len(all))
			}
		})
	}
}

func TestFileStoreRejectsBadID(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	run := sampleRun(t, time.Now())
	run.ID = "../escape"
	if err := s.Save(context.Background(), run); err == nil {
		t.Error("Save() with traversal ID should fail")
	}
}

func TestFileStoreSkipsCorruptFiles(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, sampleRun(t, time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Path(), "junk.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}

	runs, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("List() returned %d runs, want 1", len(runs))
	}
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	dir, err := DefaultDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/data", "kahnsched", "runs"); dir != want {
		t.Errorf("DefaultDir() = %s, want %s", dir, want)
	}
}
