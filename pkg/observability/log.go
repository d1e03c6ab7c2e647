package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks reports pipeline and cache events as debug log lines. It is the
// implementation the CLI registers in verbose mode.
type LogHooks struct {
	Logger *log.Logger
}

// NewLogHooks returns hooks that log to l, or to log.Default() if l is nil.
func NewLogHooks(l *log.Logger) *LogHooks {
	if l == nil {
		l = log.Default()
	}
	return &LogHooks{Logger: l}
}

func (h *LogHooks) OnStageStart(_ context.Context, stage string) {
	h.Logger.Debug("stage started", "stage", stage)
}

func (h *LogHooks) OnStageComplete(_ context.Context, stage string, d time.Duration, err error) {
	if err != nil {
		h.Logger.Debug("stage failed", "stage", stage, "duration", d.Round(time.Millisecond), "err", err)
		return
	}
	h.Logger.Debug("stage finished", "stage", stage, "duration", d.Round(time.Millisecond))
}

func (h *LogHooks) OnImageDropped(_ context.Context, id string, err error) {
	h.Logger.Debug("image dropped", "id", id, "err", err)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

var (
	_ PipelineHooks = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
)
