package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/kahnsched/pkg/dag"
	apperrors "github.com/matzehuels/kahnsched/pkg/errors"
	"github.com/matzehuels/kahnsched/pkg/observability"
)

// BatchItem is one graph of a batch and its outcome.
type BatchItem struct {
	Name   string
	Graph  *dag.DAG
	Result *Result
	Err    error
}

// BatchOptions control how a batch is run.
type BatchOptions struct {
	// Workers bounds the graphs scheduled at once. Zero means DefaultWorkers.
	Workers int

	// OnDone, if set, is called after each item finishes. Calls come from
	// worker goroutines and may overlap.
	OnDone func(*BatchItem)
}

// Batch schedules every item concurrently with at most bo.Workers runs in
// flight, filling in Result or Err per item in place. Per-graph failures
// do not stop the batch. An invariant violation or context cancellation
// stops the remaining items and is returned.
func (r *Runner) Batch(ctx context.Context, items []*BatchItem, opts Options, bo BatchOptions) error {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	workers := bo.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item.Result, item.Err = r.Schedule(gctx, item.Graph, opts)
			if item.Err != nil {
				r.Logger.Debug("batch item failed", "name", item.Name, "err", item.Err)
			}
			if bo.OnDone != nil {
				bo.OnDone(item)
			}
			if apperrors.Is(item.Err, apperrors.ErrCodeInvariantViolation) {
				return item.Err
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	observability.Scheduler().OnBatchComplete(ctx, len(items), failed, time.Since(start))
	return err
}
