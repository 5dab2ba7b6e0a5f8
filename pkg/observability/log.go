package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every event as a debug-level log line. It implements
// SchedulerHooks, CacheHooks and HTTPHooks.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks that log to logger, or to the default logger
// when logger is nil.
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHooks{logger: logger.WithPrefix("events")}
}

// Register installs h for every hook category.
func (h *LogHooks) Register() {
	SetSchedulerHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func (h *LogHooks) OnScheduleStart(_ context.Context, nodes int) {
	h.logger.Debug("schedule start", "nodes", nodes)
}

func (h *LogHooks) OnScheduleComplete(_ context.Context, nodes, steps int, status string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("schedule failed", "nodes", nodes, "steps", steps, "duration", d, "err", err)
		return
	}
	h.logger.Debug("schedule done", "nodes", nodes, "steps", steps, "status", status, "duration", d)
}

func (h *LogHooks) OnBatchComplete(_ context.Context, graphs, failed int, d time.Duration) {
	h.logger.Debug("batch done", "graphs", graphs, "failed", failed, "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, path string) {
	h.logger.Debug("request", "method", method, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, path string, status int, d time.Duration) {
	h.logger.Debug("response", "method", method, "path", path, "status", status, "duration", d)
}

var (
	_ SchedulerHooks = (*LogHooks)(nil)
	_ CacheHooks     = (*LogHooks)(nil)
	_ HTTPHooks      = (*LogHooks)(nil)
)
