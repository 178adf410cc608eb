package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arzani/roledetect-go/internal/domain/roles"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/interfaces"
	cachetypes "github.com/arzani/roledetect-go/internal/infrastructure/caching/types"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/metrics"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/performance"
	persistroles "github.com/arzani/roledetect-go/internal/infrastructure/persistence/roles"
	"github.com/arzani/roledetect-go/pkg/config"
)

const propagateTimeout = 10 * time.Second

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// WriterService propagates resolved profiles outward: the in-memory
// session tier synchronously, the durable tables in the background.
// Durable writes are throttled per actor so repeated resolutions of an
// unchanged profile cannot hammer the database. Propagation is
// idempotent; writing the same profile twice leaves the same state.
type WriterService struct {
	durable  roles.PreferenceRepository
	sessions *persistroles.SQLSessionCacheRepository
	cache    interfaces.Cache

	perfTracker *performance.Tracker
	metrics     *metrics.Collector
	logger      *logging.ChanneledLogger
	now         func() time.Time

	mu        sync.Mutex
	throttles map[string]*throttleEntry
	interval  time.Duration
}

// NewWriterService creates a new cache writer with its dependencies.
func NewWriterService(durable roles.PreferenceRepository, sessions *persistroles.SQLSessionCacheRepository, cache interfaces.Cache, perfTracker *performance.Tracker, collector *metrics.Collector, clock func() time.Time, logger *logging.ChanneledLogger) *WriterService {
	if clock == nil {
		clock = time.Now
	}
	return &WriterService{
		durable:     durable,
		sessions:    sessions,
		cache:       cache,
		perfTracker: perfTracker,
		metrics:     collector,
		logger:      logger,
		now:         clock,
		throttles:   make(map[string]*throttleEntry),
		interval:    config.WriteThrottleInterval,
	}
}

// Propagate writes a cacheable resolution to every tier. The in-memory
// session entry is set immediately; durable writes happen inline and
// are skipped when the actor's throttle window has not elapsed.
func (s *WriterService) Propagate(ctx context.Context, resolution *roles.Resolution) {
	if resolution == nil || !resolution.ShouldCache || resolution.Profile == nil {
		return
	}
	profile := resolution.Profile
	key := actorKey(profile.IdentityID, profile.SessionID)
	if key == "" {
		return
	}

	marker := s.perfTracker.StartOperation("writer.propagate", key)
	defer marker.Complete()

	if profile.SessionID != "" && profile.ExpiresAt != nil {
		s.cache.SetSessionRole(&cachetypes.SessionRoleEntry{
			SessionID:      profile.SessionID,
			IdentityID:     profile.IdentityID,
			Role:           profile.Role,
			Confidence:     profile.Confidence,
			Method:         profile.Method,
			BehavioralData: profile.BehavioralData,
			ExpiresAt:      *profile.ExpiresAt,
			StoredAt:       s.now().UTC(),
		})
	}

	if !s.allow(key) {
		if s.metrics != nil {
			s.metrics.RecordThrottled()
		}
		if s.logger != nil {
			s.logger.Cache().Debug("Durable write throttled", "actorKey", key, "interval", s.interval)
		}
		marker.AddMetadata("throttled", true)
		marker.SetSuccess(true)
		return
	}

	s.writeDurable(ctx, resolution, marker)
	marker.SetSuccess(true)
}

// PropagateAsync fires Propagate on a background goroutine so request
// handling never waits on the database.
func (s *WriterService) PropagateAsync(resolution *roles.Resolution) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), propagateTimeout)
		defer cancel()
		s.Propagate(ctx, resolution)
	}()
}

// Invalidate clears every tier for an actor.
func (s *WriterService) Invalidate(ctx context.Context, identityID, sessionID string) error {
	if sessionID != "" {
		s.cache.RemoveSessionRole(sessionID)
		s.cache.RemoveBehavior(actorKey(identityID, sessionID))
	}

	var firstErr error
	if s.sessions != nil && sessionID != "" {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			firstErr = err
		}
	}
	if s.durable != nil && identityID != "" {
		if err := s.durable.Delete(ctx, identityID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Start launches the throttle pruning loop so the per-actor limiter map
// does not grow without bound.
func (s *WriterService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(config.ThrottleEntryTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pruneThrottles(s.now().Add(-config.ThrottleEntryTTL))
			}
		}
	}()
}

func (s *WriterService) writeDurable(ctx context.Context, resolution *roles.Resolution, marker *performance.Marker) {
	profile := resolution.Profile

	if s.sessions != nil && profile.SessionID != "" {
		if err := s.sessions.Put(ctx, profile.SessionID, profile.IdentityID, profile, resolution.TTL); err != nil {
			if s.logger != nil {
				s.logger.LogError(logging.ChannelCache, "session_write", err, map[string]any{"sessionId": profile.SessionID})
			}
			if s.metrics != nil {
				s.metrics.RecordDurableWrite(false)
			}
		} else if s.metrics != nil {
			s.metrics.RecordDurableWrite(true)
		}
	}

	if s.durable != nil && profile.IdentityID != "" {
		if err := s.durable.Put(ctx, profile.IdentityID, profile, resolution.TTL); err != nil {
			marker.SetError(err)
			if s.logger != nil {
				s.logger.LogError(logging.ChannelCache, "durable_write", err, map[string]any{"identityId": profile.IdentityID})
			}
			if s.metrics != nil {
				s.metrics.RecordDurableWrite(false)
			}
			return
		}
		if s.metrics != nil {
			s.metrics.RecordDurableWrite(true)
		}
	}
}

// allow checks the actor's write throttle, creating the limiter on
// first use with double-checked locking.
func (s *WriterService) allow(key string) bool {
	s.mu.Lock()
	entry, exists := s.throttles[key]
	if !exists {
		entry = &throttleEntry{limiter: rate.NewLimiter(rate.Every(s.interval), 1)}
		s.throttles[key] = entry
	}
	entry.lastSeen = s.now()
	s.mu.Unlock()

	return entry.limiter.Allow()
}

func (s *WriterService) pruneThrottles(cutoff time.Time) {
	s.mu.Lock()
	pruned := 0
	for key, entry := range s.throttles {
		if entry.lastSeen.Before(cutoff) {
			delete(s.throttles, key)
			pruned++
		}
	}
	remaining := len(s.throttles)
	s.mu.Unlock()

	if pruned > 0 && s.logger != nil {
		s.logger.Cache().Debug("Pruned stale write throttles", "pruned", pruned, "remaining", remaining)
	}
}
