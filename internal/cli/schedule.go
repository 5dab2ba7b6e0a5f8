package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	kio "github.com/matzehuels/kahnsched/pkg/io"
	"github.com/matzehuels/kahnsched/pkg/kahn"
	"github.com/matzehuels/kahnsched/pkg/pipeline"
)

// scheduleFlags are the policy flags shared by schedule and batch.
type scheduleFlags struct {
	tieBreak    string
	strict      bool
	breakCycles bool
	format      string
	noCache     bool
	refresh     bool
	archive     bool
}

func (f *scheduleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tieBreak, "tie-break", pipeline.DefaultTieBreak, "priority order within a batch: ascending, descending")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail on deadlock instead of force-terminating blocked nodes")
	cmd.Flags().BoolVar(&f.breakCycles, "break-cycles", false, "remove back edges before scheduling")
	cmd.Flags().StringVarP(&f.format, "format", "f", pipeline.DefaultFormat, "output format: json, tensor")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute even when a cached result exists")
	cmd.Flags().BoolVar(&f.archive, "archive", false, "save the run to the local run archive")
}

// options merges flags with the config file. Flags the user did not set
// take their value from the config.
func (c *CLI) options(cmd *cobra.Command, f *scheduleFlags) pipeline.Options {
	cfg := c.config.Schedule
	opts := pipeline.Options{
		TieBreak:    cfg.TieBreak,
		Deadlock:    cfg.Deadlock,
		BreakCycles: cfg.BreakCycles,
		Format:      cfg.Format,
		Refresh:     f.refresh,
		Archive:     f.archive,
		Logger:      c.Logger,
	}
	flags := cmd.Flags()
	if flags.Changed("tie-break") {
		opts.TieBreak = f.tieBreak
	}
	if flags.Changed("strict") {
		opts.Deadlock = kahn.ForceTerminate.String()
		if f.strict {
			opts.Deadlock = kahn.Fail.String()
		}
	}
	if flags.Changed("break-cycles") {
		opts.BreakCycles = f.breakCycles
	}
	if flags.Changed("format") {
		opts.Format = f.format
	}
	return opts
}

// scheduleCommand creates the schedule command.
func (c *CLI) scheduleCommand() *cobra.Command {
	var (
		output string
		flags  scheduleFlags
	)

	cmd := &cobra.Command{
		Use:   "schedule [graph.json]",
		Short: "Schedule a dependency graph and record its history",
		Long: `Schedule a dependency graph and record its history.

The graph is read from a JSON file of nodes (id, priority) and edges (from, to).
Nodes whose dependencies are all finalized are labeled in priority order, and
the ready node with the smallest label is finalized at each step.

The result holds every intermediate state and the final labels. It is written
to <input>.history.json unless -o is given, and can be inspected with 'replay'.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSchedule(cmd.Context(), args[0], output, c.options(cmd, &flags), flags.noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.history.json)")
	flags.register(cmd)

	return cmd
}

// runSchedule loads the graph, schedules it and writes the result.
func (c *CLI) runSchedule(ctx context.Context, input, output string, opts pipeline.Options, noCache bool) error {
	g, err := kio.ImportGraph(input)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", input, err)
	}
	loggerFromContext(ctx).Debug("loaded graph", "path", input, "nodes", g.NodeCount(), "edges", g.EdgeCount())

	runner, err := c.newRunner(noCache, opts.Archive)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spin := startSpinner(ctx, c.errOut, fmt.Sprintf("Scheduling %s", plural(g.NodeCount(), "node")), 0)
	res, err := runner.Schedule(ctx, g, opts)
	spin.stop()
	if spin.interrupted() {
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	if output == "" {
		output = historyPath(input)
	}
	if err := writeResult(res, output); err != nil {
		return err
	}

	out := c.console()
	out.result(res)
	out.wrote(output)
	out.hint("Replay", appName+" replay "+output)

	return nil
}

// historyPath derives the default output path from the input path.
func historyPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + historySuffix
}

func writeResult(res *pipeline.Result, path string) error {
	f, err := kio.ParseFormat(res.Options.Format)
	if err != nil {
		return err
	}
	if err := kio.ExportResult(res.Run, res.NodeIDs(), f, path); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}
	return nil
}
