// Package cleanup provides background worker
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/interfaces"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	persistroles "github.com/arzani/roledetect-go/internal/infrastructure/persistence/roles"
)

const purgeTimeout = 30 * time.Second

// Worker handles background cleanup of the in-memory tiers and the
// durable session and behavioral tables.
type Worker struct {
	cache    interfaces.Cache
	sessions *persistroles.SQLSessionCacheRepository
	events   behavior.Repository
	config   *Config
	logger   *logging.ChanneledLogger
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(cache interfaces.Cache, sessions *persistroles.SQLSessionCacheRepository, events behavior.Repository, config *Config, logger *logging.ChanneledLogger) *Worker {
	return &Worker{
		cache:    cache,
		sessions: sessions,
		events:   events,
		config:   config,
		logger:   logger,
	}
}

// Start begins the cleanup worker routine, using the configured interval
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	if w.logger != nil {
		w.logger.System().Info("Cache cleanup worker started", "interval", w.config.CleanupInterval, "verbose", w.config.VerboseReporting)
	}

	for {
		select {
		case <-ctx.Done():
			if w.logger != nil {
				w.logger.System().Info("Cache cleanup worker stopping")
			}
			return
		case <-ticker.C:
			w.performCleanup(ctx)
		}
	}
}

// performCleanup sweeps all tiers once
func (w *Worker) performCleanup(ctx context.Context) {
	start := time.Now()
	reporter := NewReporter(w.cache)

	if w.config.VerboseReporting {
		reporter.LogStage("PERIODIC CACHE CLEANUP")
		fmt.Print(reporter.GenerateCacheReport())
	}

	now := time.Now().UTC()
	windowCutoff := now.Add(-w.config.BehaviorWindow)

	totalCleaned := w.cache.PurgeExpired(windowCutoff)

	purgeCtx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	if w.sessions != nil {
		purged, err := w.sessions.PurgeExpired(purgeCtx)
		if err != nil {
			reporter.LogError("Session cache purge failed", err)
		} else {
			totalCleaned += int(purged)
		}
	}

	if w.events != nil {
		purged, err := w.events.PurgeBefore(purgeCtx, windowCutoff)
		if err != nil {
			reporter.LogError("Behavioral event purge failed", err)
		} else {
			totalCleaned += int(purged)
		}
	}

	duration := time.Since(start)
	if totalCleaned > 0 {
		reporter.LogSuccess("Cache cleanup finished: %d items cleaned in %v", totalCleaned, duration)
	} else if w.config.VerboseReporting {
		reporter.LogInfo("Cache cleanup completed - no expired items found (%v)", duration)
	}
}
