package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/kahnsched/pkg/cache"
	"github.com/matzehuels/kahnsched/pkg/dag"
	"github.com/matzehuels/kahnsched/pkg/dag/transform"
	kio "github.com/matzehuels/kahnsched/pkg/io"
	"github.com/matzehuels/kahnsched/pkg/kahn"
	"github.com/matzehuels/kahnsched/pkg/observability"
	"github.com/matzehuels/kahnsched/pkg/store"
)

// Runner encapsulates scheduling with caching and archiving.
//
// The Runner is stateless except for its collaborators. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Store  store.Store
	Logger *log.Logger

	// TTL applies to cached results; zero uses cache.TTLRun.
	TTL time.Duration

	// Writes bounds retries of cache writes after a fresh run.
	Writes cache.WritePolicy
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, caching is disabled.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.Disabled()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		Writes: cache.DefaultWritePolicy,
	}
}

// Schedule prepares g, runs the scheduler (or loads a cached result) and
// archives the run when opts.Archive is set. g is not modified.
func (r *Runner) Schedule(ctx context.Context, g *dag.DAG, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	hooks := observability.Scheduler()
	hooks.OnScheduleStart(ctx, g.NodeCount())

	result := &Result{
		GraphHash: cache.Hash(kio.CanonicalJSON(g)),
		Options:   opts,
	}
	result.Graph, result.RemovedEdges = r.PrepareGraph(g, opts)
	result.Stats.NodeCount = result.Graph.NodeCount()
	result.Stats.EdgeCount = result.Graph.EdgeCount()

	res, hit, err := r.run(ctx, result, opts)
	result.Stats.ScheduleTime = time.Since(start)
	if err != nil {
		hooks.OnScheduleComplete(ctx, result.Stats.NodeCount, 0, "", result.Stats.ScheduleTime, err)
		return nil, err
	}
	result.Run = res
	result.CacheHit = hit
	hooks.OnScheduleComplete(ctx, result.Stats.NodeCount, res.Steps, res.Status.String(), result.Stats.ScheduleTime, nil)

	logFn := r.Logger.Info
	if res.Deadlocked() {
		logFn = r.Logger.Warn
	}
	logFn("scheduled graph",
		"nodes", result.Stats.NodeCount,
		"steps", res.Steps,
		"status", res.Status,
		"forced", len(res.Forced),
		"cached", hit,
		"duration", result.Stats.ScheduleTime)

	if opts.Archive {
		run, err := r.Archive(ctx, result)
		if err != nil {
			return nil, err
		}
		result.Archived = run
	}
	return result, nil
}

// run consults the cache before calling the scheduler.
func (r *Runner) run(ctx context.Context, result *Result, opts Options) (*kahn.Result, bool, error) {
	key := r.Keyer.RunKey(result.GraphHash, opts.RunKeyOpts())
	hooks := observability.Cache()

	if !opts.Refresh {
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil {
			r.Logger.Debug("cache read failed", "err", err)
		}
		if err == nil && hit {
			cached, _, err := kio.ReadResult(bytes.NewReader(data))
			if err == nil && len(cached.FinalLabels) == result.Graph.NodeCount() {
				hooks.OnCacheHit(ctx, "run")
				return cached, true, nil
			}
			// Undecodable entries are recomputed and overwritten.
			r.Logger.Debug("discarding cached result", "key", key, "err", err)
		}
		hooks.OnCacheMiss(ctx, "run")
	}

	res, err := kahn.Run(dag.MatrixOf(result.Graph), opts.KahnOptions())
	if err != nil {
		return nil, false, err
	}

	data, err := kio.MarshalResult(res, nil, kio.FormatJSON)
	if err != nil {
		return res, false, nil
	}
	ttl := r.TTL
	if ttl == 0 {
		ttl = cache.TTLRun
	}
	if attempts, err := r.Writes.Store(ctx, r.Cache, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "attempts", attempts, "err", err)
	} else {
		hooks.OnCacheSet(ctx, "run", len(data))
	}
	return res, false, nil
}

// PrepareGraph returns the graph to schedule: g itself, or a copy with
// back edges removed when opts.BreakCycles is set.
func (r *Runner) PrepareGraph(g *dag.DAG, opts Options) (*dag.DAG, []dag.Edge) {
	if !opts.BreakCycles {
		return g, nil
	}
	work := g.Clone()
	removed := transform.BreakCycles(work)
	if len(removed) > 0 {
		r.Logger.Debug("broke cycles", "removed_edges", len(removed))
	}
	return work, removed
}

// Archive saves result in the runner's store.
func (r *Runner) Archive(ctx context.Context, result *Result) (*store.Run, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("archive: no store configured")
	}
	run := result.ToRun()
	if err := r.Store.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	r.Logger.Debug("archived run", "id", run.ID)
	return run, nil
}

// Close releases the cache and store.
func (r *Runner) Close() error {
	var first error
	if r.Cache != nil {
		first = r.Cache.Close()
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
