// Package types defines the in-memory cache structures for role state and behavior tracking
package types

import (
	"time"

	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/domain/roles"
)

// SessionRoleEntry is a cached role resolution scoped to a single session.
// ExpiresAt is mandatory; an entry past its expiry is treated as absent.
type SessionRoleEntry struct {
	SessionID      string
	IdentityID     string
	Role           roles.Role
	Confidence     float64
	Method         string
	BehavioralData map[string]interface{}
	ExpiresAt      time.Time
	StoredAt       time.Time
}

// Expired reports whether the entry is past its expiry at the given instant.
func (e *SessionRoleEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Profile converts the cache entry back into a domain profile.
func (e *SessionRoleEntry) Profile() *roles.Profile {
	expiresAt := e.ExpiresAt
	return &roles.Profile{
		IdentityID:     e.IdentityID,
		SessionID:      e.SessionID,
		Role:           e.Role,
		Confidence:     e.Confidence,
		Method:         e.Method,
		BehavioralData: e.BehavioralData,
		ExpiresAt:      &expiresAt,
		UpdatedAt:      e.StoredAt,
	}
}

// BehaviorLog is a bounded, newest-first event log for a single actor.
// Appending beyond MaxEvents discards the oldest entry.
type BehaviorLog struct {
	ActorKey     string
	Events       []*behavior.Event
	MaxEvents    int
	LastActivity time.Time
}

// NewBehaviorLog creates an empty log bounded to maxEvents entries.
func NewBehaviorLog(actorKey string, maxEvents int) *BehaviorLog {
	return &BehaviorLog{
		ActorKey:  actorKey,
		Events:    make([]*behavior.Event, 0, maxEvents),
		MaxEvents: maxEvents,
	}
}

// Append adds an event, evicting the oldest entry when the log is full.
func (l *BehaviorLog) Append(event *behavior.Event) {
	if l.MaxEvents > 0 && len(l.Events) >= l.MaxEvents {
		copy(l.Events, l.Events[1:])
		l.Events[len(l.Events)-1] = event
	} else {
		l.Events = append(l.Events, event)
	}
	if event.CreatedAt.After(l.LastActivity) {
		l.LastActivity = event.CreatedAt
	}
}

// Window returns the events newer than the cutoff, newest first.
// The log itself is append-ordered so the result is built in reverse.
func (l *BehaviorLog) Window(since time.Time) []*behavior.Event {
	result := make([]*behavior.Event, 0, len(l.Events))
	for i := len(l.Events) - 1; i >= 0; i-- {
		if l.Events[i].CreatedAt.After(since) {
			result = append(result, l.Events[i])
		}
	}
	return result
}
