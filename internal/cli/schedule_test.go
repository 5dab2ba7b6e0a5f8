package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	kio "github.com/matzehuels/kahnsched/pkg/io"
	"github.com/matzehuels/kahnsched/pkg/kahn"
	"github.com/matzehuels/kahnsched/pkg/store"
)

const pipelineGraph = `{
	"nodes": [
		{"id": "build"},
		{"id": "lint", "priority": 2},
		{"id": "test", "priority": 1},
		{"id": "deploy"}
	],
	"edges": [
		{"from": "build", "to": "lint"},
		{"from": "build", "to": "test"},
		{"from": "lint", "to": "deploy"},
		{"from": "test", "to": "deploy"}
	]
}`

const cyclicGraph = `{
	"nodes": [{"id": "a"}, {"id": "b"}, {"id": "c"}],
	"edges": [{"from": "a", "to": "b"}, {"from": "b", "to": "c"}, {"from": "c", "to": "b"}]
}`

func TestHistoryPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"graph.json", "graph.history.json"},
		{"dir/ci.pipeline.json", "dir/ci.pipeline.history.json"},
		{"noext", "noext.history.json"},
	}
	for _, tt := range tests {
		if got := historyPath(tt.input); got != tt.want {
			t.Errorf("historyPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestOptionsPrecedence(t *testing.T) {
	c := newTestCLI()
	c.config.Schedule.TieBreak = "descending"
	c.config.Schedule.Deadlock = "fail"
	c.config.Schedule.Format = "tensor"

	tests := []struct {
		name     string
		args     []string
		tieBreak string
		deadlock string
		format   string
	}{
		{"config only", nil, "descending", "fail", "tensor"},
		{"flag overrides tie break", []string{"--tie-break", "ascending"}, "ascending", "fail", "tensor"},
		{"strict false overrides fail", []string{"--strict=false"}, "descending", "force", "tensor"},
		{"format flag", []string{"-f", "json"}, "descending", "fail", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f scheduleFlags
			cmd := &cobra.Command{Use: "test"}
			f.register(cmd)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			opts := c.options(cmd, &f)
			if opts.TieBreak != tt.tieBreak || opts.Deadlock != tt.deadlock || opts.Format != tt.format {
				t.Errorf("options = %s/%s/%s, want %s/%s/%s",
					opts.TieBreak, opts.Deadlock, opts.Format, tt.tieBreak, tt.deadlock, tt.format)
			}
		})
	}
}

func TestScheduleCommand(t *testing.T) {
	base := isolate(t)
	input := writeFile(t, filepath.Join(base, "ci.json"), pipelineGraph)

	if err := execute(newTestCLI().RootCommand(), "schedule", input); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	res, ids, err := kio.ImportResult(historyPath(input))
	if err != nil {
		t.Fatalf("ImportResult() error: %v", err)
	}
	if res.Status != kahn.Complete {
		t.Errorf("Status = %v, want complete", res.Status)
	}
	var order []string
	for _, i := range res.Order() {
		order = append(order, ids[i])
	}
	if got := strings.Join(order, ","); got != "build,test,lint,deploy" {
		t.Errorf("order = %s, want build,test,lint,deploy", got)
	}
}

func TestScheduleCommand_OutputAndFormat(t *testing.T) {
	base := isolate(t)
	input := writeFile(t, filepath.Join(base, "ci.json"), pipelineGraph)
	output := filepath.Join(base, "out", "ci.tensor.json")
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		t.Fatal(err)
	}

	err := execute(newTestCLI().RootCommand(), "schedule", input, "-o", output, "--format", "tensor", "--tie-break", "descending", "--no-cache")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"final_labels"`) {
		t.Errorf("tensor output lacks final_labels: %s", data)
	}

	res, _, err := kio.ImportResult(output)
	if err != nil {
		t.Fatalf("ImportResult() error: %v", err)
	}
	// lint has the higher priority and comes first when descending.
	if res.FinalLabels[1] != 2 || res.FinalLabels[2] != 3 {
		t.Errorf("FinalLabels = %v", res.FinalLabels)
	}
}

func TestScheduleCommand_Deadlock(t *testing.T) {
	base := isolate(t)
	input := writeFile(t, filepath.Join(base, "cycle.json"), cyclicGraph)

	if err := execute(newTestCLI().RootCommand(), "schedule", input, "--strict"); err == nil {
		t.Fatal("schedule --strict on a cycle should fail")
	}
	if _, err := os.Stat(historyPath(input)); !os.IsNotExist(err) {
		t.Errorf("strict failure wrote output: %v", err)
	}

	if err := execute(newTestCLI().RootCommand(), "schedule", input); err != nil {
		t.Fatalf("schedule (force): %v", err)
	}
	res, _, err := kio.ImportResult(historyPath(input))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != kahn.Deadlocked || len(res.Forced) != 2 {
		t.Errorf("Status = %v, Forced = %v", res.Status, res.Forced)
	}

	if err := execute(newTestCLI().RootCommand(), "schedule", input, "--strict", "--break-cycles"); err != nil {
		t.Fatalf("schedule --break-cycles: %v", err)
	}
}

func TestScheduleCommand_ConfigDefaults(t *testing.T) {
	base := isolate(t)
	input := writeFile(t, filepath.Join(base, "cycle.json"), cyclicGraph)
	writeFile(t, defaultConfigPath(), "[schedule]\ndeadlock = \"fail\"\n")

	if err := execute(newTestCLI().RootCommand(), "schedule", input); err == nil {
		t.Error("deadlock = fail in config should make schedule fail")
	}
	if err := execute(newTestCLI().RootCommand(), "schedule", input, "--strict=false"); err != nil {
		t.Errorf("--strict=false should override the config: %v", err)
	}
}

func TestScheduleCommand_Archive(t *testing.T) {
	base := isolate(t)
	input := writeFile(t, filepath.Join(base, "ci.json"), pipelineGraph)

	if err := execute(newTestCLI().RootCommand(), "schedule", input, "--archive"); err != nil {
		t.Fatalf("schedule --archive: %v", err)
	}

	dir, err := store.DefaultDir()
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	runs, err := st.List(t.Context(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].NodeIDs[0] != "build" {
		t.Errorf("archived runs = %+v", runs)
	}
}

func TestScheduleCommand_MissingInput(t *testing.T) {
	isolate(t)
	if err := execute(newTestCLI().RootCommand(), "schedule", "does-not-exist.json"); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestBatchCommand(t *testing.T) {
	base := isolate(t)
	good := writeFile(t, filepath.Join(base, "ci.json"), pipelineGraph)
	cyc := writeFile(t, filepath.Join(base, "cycle.json"), cyclicGraph)

	if err := execute(newTestCLI().RootCommand(), "batch", good, cyc, "--workers", "2"); err != nil {
		t.Fatalf("batch: %v", err)
	}
	for _, input := range []string{good, cyc} {
		if _, err := os.Stat(historyPath(input)); err != nil {
			t.Errorf("%s: no history written: %v", input, err)
		}
	}

	bad := writeFile(t, filepath.Join(base, "bad.json"), `{"nodes": [`)
	err := execute(newTestCLI().RootCommand(), "batch", good, bad, cyc, "--strict")
	if err == nil || !strings.Contains(err.Error(), "2 of 3 graphs failed") {
		t.Errorf("batch with failures: err = %v", err)
	}
}
