package watch

import (
	"context"
	"time"

	"github.com/kilnproject/kiln/internal/logger"
	"github.com/kilnproject/kiln/internal/telemetry"
	"github.com/kilnproject/kiln/pkg/metrics"
)

// Reloader rebuilds a snapshot from disk. *templates.Provider implements it.
type Reloader interface {
	Reload(ctx context.Context) error
	Generation() uint64
}

// ReloadCoordinator drives a Reloader from a watcher's batch stream.
// Reloads run strictly one at a time, in batch order. A failed reload is
// logged and skipped; the previous snapshot stays live. A failed stream
// ends the loop, and nothing else.
type ReloadCoordinator struct {
	watcher  *MultiRootWatcher
	reloader Reloader
}

func NewReloadCoordinator(watcher *MultiRootWatcher, reloader Reloader) *ReloadCoordinator {
	return &ReloadCoordinator{
		watcher:  watcher,
		reloader: reloader,
	}
}

// Run consumes the merged batch stream until it closes. It returns the
// watcher's stream error, or nil when the stream ended through ctx or
// Close. Callers decide process policy; Run never does.
func (c *ReloadCoordinator) Run(ctx context.Context) error {
	for batch := range c.watcher.Events() {
		c.reload(ctx, batch)
	}

	if err := c.watcher.Err(); err != nil {
		logger.Error("change stream failed, hot reload stopped",
			logger.KeyError, err,
		)
		return err
	}

	return nil
}

func (c *ReloadCoordinator) reload(ctx context.Context, batch Batch) {
	start := time.Now()
	ctx, span := telemetry.StartReloadSpan(ctx, batch.Root, batch.Files)
	defer span.End()

	if err := c.reloader.Reload(ctx); err != nil {
		reloadErr := &ReloadError{Root: batch.Root, Err: err}
		telemetry.RecordError(ctx, reloadErr)
		metrics.RecordReload(metrics.OutcomeError, time.Since(start))
		logger.Warn("template reload failed, keeping previous snapshot",
			logger.KeyRoot, batch.Root,
			logger.KeyFiles, len(batch.Files),
			logger.KeyError, err,
		)
		return
	}

	generation := c.reloader.Generation()
	metrics.RecordReload(metrics.OutcomeSuccess, time.Since(start))
	metrics.SetTemplateGeneration(generation)
	logger.Info("templates reloaded",
		logger.KeyRoot, batch.Root,
		logger.KeyFiles, len(batch.Files),
		logger.KeyGeneration, generation,
		logger.KeyDurationMs, logger.Duration(start),
	)
}
