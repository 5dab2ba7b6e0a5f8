// Package cache provides byte-level caching for scheduling results.
//
// Three backends implement [Cache]: [FileCache] for the CLI, [RedisCache]
// for shared deployments of the API server, and [Disabled] when caching is
// turned off. Writes of computed runs go through a [WritePolicy]. Keys are produced by a [Keyer] so that identical inputs map to
// identical keys regardless of which process computed them.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads under string keys.
//
// A miss is reported as (nil, false, nil); errors are reserved for backend
// failures. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Default TTLs.
const (
	TTLRun   = 24 * time.Hour
	TTLGraph = 7 * 24 * time.Hour
)

// RunKeyOpts are the run options that change a scheduling result.
type RunKeyOpts struct {
	TieBreak    string `json:"tie_break"`
	Deadlock    string `json:"deadlock"`
	BreakCycles bool   `json:"break_cycles"`
}

// Keyer generates cache keys.
type Keyer interface {
	// RunKey identifies the result of scheduling the graph with the given
	// content hash under opts.
	RunKey(graphHash string, opts RunKeyOpts) string

	// GraphKey identifies a prepared (cycle-broken) graph.
	GraphKey(graphHash string) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RunKey implements Keyer.
func (DefaultKeyer) RunKey(graphHash string, opts RunKeyOpts) string {
	return hashKey("run", graphHash, opts)
}

// GraphKey implements Keyer.
func (DefaultKeyer) GraphKey(graphHash string) string {
	return hashKey("graph", graphHash)
}

// Disabled returns a cache that keeps nothing, so every Get is a miss.
// It backs --no-cache and runners built without a cache.
func Disabled() Cache { return disabled{} }

type disabled struct{}

func (disabled) Get(context.Context, string) ([]byte, bool, error)         { return nil, false, nil }
func (disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (disabled) Delete(context.Context, string) error                      { return nil }
func (disabled) Close() error                                              { return nil }
