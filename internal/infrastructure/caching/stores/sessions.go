// Package stores provides concrete cache store implementations
package stores

import (
	"sync"
	"time"

	"github.com/arzani/roledetect-go/internal/infrastructure/caching/types"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
)

// SessionRolesStore holds resolved role entries keyed by session ID.
// Expired entries are treated as absent on read and swept by the cleanup worker.
type SessionRolesStore struct {
	entries    map[string]*types.SessionRoleEntry
	mu         sync.RWMutex
	maxEntries int
	now        func() time.Time
	logger     *logging.ChanneledLogger
}

// NewSessionRolesStore creates a new session role cache store
func NewSessionRolesStore(maxEntries int, clock func() time.Time, logger *logging.ChanneledLogger) *SessionRolesStore {
	if clock == nil {
		clock = time.Now
	}
	if logger != nil {
		logger.Cache().Info("Initializing session roles store", "maxEntries", maxEntries)
	}
	return &SessionRolesStore{
		entries:    make(map[string]*types.SessionRoleEntry),
		maxEntries: maxEntries,
		now:        clock,
		logger:     logger,
	}
}

// Get retrieves a session role entry by session ID
func (s *SessionRolesStore) Get(sessionID string) (*types.SessionRoleEntry, bool) {
	start := time.Now()
	s.mu.RLock()
	entry, found := s.entries[sessionID]
	s.mu.RUnlock()

	if !found {
		if s.logger != nil {
			s.logger.Cache().Debug("Cache operation", "operation", "get", "type", "session_role", "sessionId", sessionID, "hit", false, "duration", time.Since(start))
		}
		return nil, false
	}

	if entry.Expired(s.now()) {
		if s.logger != nil {
			s.logger.Cache().Debug("Cache operation", "operation", "get", "type", "session_role", "sessionId", sessionID, "hit", false, "reason", "expired", "duration", time.Since(start))
		}
		return nil, false
	}

	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "get", "type", "session_role", "sessionId", sessionID, "hit", true, "role", string(entry.Role), "duration", time.Since(start))
	}
	return entry, true
}

// Set stores a session role entry, evicting the oldest entry when the store is full
func (s *SessionRolesStore) Set(entry *types.SessionRoleEntry) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.SessionID]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOldestUnsafe()
	}
	s.entries[entry.SessionID] = entry

	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "set", "type", "session_role", "sessionId", entry.SessionID, "role", string(entry.Role), "confidence", entry.Confidence, "duration", time.Since(start))
	}
}

// Remove deletes a session role entry
func (s *SessionRolesStore) Remove(sessionID string) {
	start := time.Now()
	s.mu.Lock()
	_, found := s.entries[sessionID]
	delete(s.entries, sessionID)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Cache().Debug("Cache operation", "operation", "remove", "type", "session_role", "sessionId", sessionID, "hit", found, "duration", time.Since(start))
	}
}

// PurgeExpired removes all entries past their expiry and returns the count removed
func (s *SessionRolesStore) PurgeExpired() int {
	start := time.Now()
	now := s.now()

	s.mu.Lock()
	purged := 0
	for sessionID, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, sessionID)
			purged++
		}
	}
	s.mu.Unlock()

	if purged > 0 && s.logger != nil {
		s.logger.Cache().Info("Purged expired session roles", "count", purged, "duration", time.Since(start))
	}
	return purged
}

// Len returns the number of cached entries, including any not yet swept
func (s *SessionRolesStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Summary returns store status for diagnostics
func (s *SessionRolesStore) Summary() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	expired := 0
	for _, entry := range s.entries {
		if entry.Expired(now) {
			expired++
		}
	}
	return map[string]any{
		"entries":    len(s.entries),
		"expired":    expired,
		"maxEntries": s.maxEntries,
	}
}

// evictOldestUnsafe removes the entry with the earliest StoredAt.
// MUST be called with s.mu.Lock() held.
func (s *SessionRolesStore) evictOldestUnsafe() {
	var oldestID string
	var oldestAt time.Time
	for sessionID, entry := range s.entries {
		if oldestID == "" || entry.StoredAt.Before(oldestAt) {
			oldestID = sessionID
			oldestAt = entry.StoredAt
		}
	}
	if oldestID != "" {
		delete(s.entries, oldestID)
		if s.logger != nil {
			s.logger.Cache().Debug("Cache operation", "operation", "evict", "type", "session_role", "sessionId", oldestID, "reason", "capacity")
		}
	}
}
