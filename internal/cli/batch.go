package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	kio "github.com/matzehuels/kahnsched/pkg/io"
	"github.com/matzehuels/kahnsched/pkg/pipeline"
)

// batchCommand creates the batch command for scheduling many graphs.
func (c *CLI) batchCommand() *cobra.Command {
	var (
		workers int
		flags   scheduleFlags
	)

	cmd := &cobra.Command{
		Use:   "batch [graph.json...]",
		Short: "Schedule several graphs concurrently",
		Long: `Schedule several graphs concurrently.

Each graph is scheduled independently with the same policy flags as
'schedule', and its result is written next to the input as
<input>.history.json. A failing graph does not stop the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBatch(cmd.Context(), args, c.options(cmd, &flags), flags.noCache, workers)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", pipeline.DefaultWorkers, "maximum graphs scheduled at once")
	flags.register(cmd)

	return cmd
}

// runBatch loads every input, schedules the loadable ones concurrently and
// reports per-graph outcomes.
func (c *CLI) runBatch(ctx context.Context, inputs []string, opts pipeline.Options, noCache bool, workers int) error {
	prog := newProgress(c.Logger)
	out := c.console()

	var (
		items  []*pipeline.BatchItem
		failed int
	)
	for _, input := range inputs {
		g, err := kio.ImportGraph(input)
		if err != nil {
			out.failure("%s: %v", input, err)
			failed++
			continue
		}
		items = append(items, &pipeline.BatchItem{Name: input, Graph: g})
	}

	runner, err := c.newRunner(noCache, opts.Archive)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spin := startSpinner(ctx, c.errOut, "Scheduling graphs", len(items))
	err = runner.Batch(ctx, items, opts, pipeline.BatchOptions{
		Workers: workers,
		OnDone:  func(*pipeline.BatchItem) { spin.advance() },
	})
	spin.stop()
	if err != nil {
		return err
	}

	for _, item := range items {
		if item.Err == nil {
			output := historyPath(item.Name)
			if item.Err = writeResult(item.Result, output); item.Err == nil {
				out.note("%s", styleAccent.Render(item.Name))
				out.result(item.Result)
				out.wrote(output)
				out.printf("\n")
				continue
			}
		}
		out.failure("%s: %v", item.Name, item.Err)
		failed++
	}

	prog.done(fmt.Sprintf("Scheduled %d of %d graphs", len(inputs)-failed, len(inputs)))
	if failed > 0 {
		return fmt.Errorf("%d of %d graphs failed", failed, len(inputs))
	}
	return nil
}
