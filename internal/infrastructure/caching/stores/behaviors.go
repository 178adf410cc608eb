package stores

import (
	"sync"
	"time"

	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/types"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
)

// BehaviorsStore accumulates bounded per-actor event logs. The actor key is
// the identity ID when one is known, otherwise the session ID.
type BehaviorsStore struct {
	logs      map[string]*types.BehaviorLog
	mu        sync.RWMutex
	maxActors int
	maxEvents int
	now       func() time.Time
	logger    *logging.ChanneledLogger
}

// NewBehaviorsStore creates a new behavior accumulator store
func NewBehaviorsStore(maxActors, maxEvents int, clock func() time.Time, logger *logging.ChanneledLogger) *BehaviorsStore {
	if clock == nil {
		clock = time.Now
	}
	if logger != nil {
		logger.Cache().Info("Initializing behaviors store", "maxActors", maxActors, "maxEvents", maxEvents)
	}
	return &BehaviorsStore{
		logs:      make(map[string]*types.BehaviorLog),
		maxActors: maxActors,
		maxEvents: maxEvents,
		now:       clock,
		logger:    logger,
	}
}

// Append adds an event to the actor's log, creating the log on first use
func (s *BehaviorsStore) Append(actorKey string, event *behavior.Event) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	log, exists := s.logs[actorKey]
	if !exists {
		if s.maxActors > 0 && len(s.logs) >= s.maxActors {
			s.evictIdlestUnsafe()
		}
		log = types.NewBehaviorLog(actorKey, s.maxEvents)
		s.logs[actorKey] = log
	}
	log.Append(event)

	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "append", "type", "behavior", "actorKey", actorKey, "eventType", string(event.Type), "logSize", len(log.Events), "duration", time.Since(start))
	}
}

// Window returns the actor's events newer than the cutoff, newest first
func (s *BehaviorsStore) Window(actorKey string, since time.Time) ([]*behavior.Event, bool) {
	start := time.Now()
	s.mu.RLock()
	log, found := s.logs[actorKey]
	var events []*behavior.Event
	if found {
		events = log.Window(since)
	}
	s.mu.RUnlock()

	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "window", "type", "behavior", "actorKey", actorKey, "hit", found, "count", len(events), "duration", time.Since(start))
	}
	return events, found
}

// Remove deletes an actor's log
func (s *BehaviorsStore) Remove(actorKey string) {
	s.mu.Lock()
	delete(s.logs, actorKey)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "remove", "type", "behavior", "actorKey", actorKey)
	}
}

// PurgeIdle removes logs with no activity since the cutoff and returns the count removed
func (s *BehaviorsStore) PurgeIdle(cutoff time.Time) int {
	start := time.Now()

	s.mu.Lock()
	purged := 0
	for actorKey, log := range s.logs {
		if log.LastActivity.Before(cutoff) {
			delete(s.logs, actorKey)
			purged++
		}
	}
	s.mu.Unlock()

	if purged > 0 && s.logger != nil {
		s.logger.Cache().Info("Purged idle behavior logs", "count", purged, "duration", time.Since(start))
	}
	return purged
}

// Len returns the number of tracked actors
func (s *BehaviorsStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

// Summary returns store status for diagnostics
func (s *BehaviorsStore) Summary() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totalEvents := 0
	for _, log := range s.logs {
		totalEvents += len(log.Events)
	}
	return map[string]any{
		"actors":      len(s.logs),
		"totalEvents": totalEvents,
		"maxActors":   s.maxActors,
		"maxEvents":   s.maxEvents,
	}
}

// evictIdlestUnsafe removes the log with the earliest LastActivity.
// MUST be called with s.mu.Lock() held.
func (s *BehaviorsStore) evictIdlestUnsafe() {
	var idlestKey string
	var idlestAt time.Time
	for actorKey, log := range s.logs {
		if idlestKey == "" || log.LastActivity.Before(idlestAt) {
			idlestKey = actorKey
			idlestAt = log.LastActivity
		}
	}
	if idlestKey != "" {
		delete(s.logs, idlestKey)
		if s.logger != nil {
			s.logger.Cache().Debug("Cache operation", "operation", "evict", "type", "behavior", "actorKey", idlestKey, "reason", "capacity")
		}
	}
}
