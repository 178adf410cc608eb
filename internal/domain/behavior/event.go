// Package behavior defines the observed-action entities feeding role
// detection. Events are immutable once recorded.
package behavior

import (
	"context"
	"time"
)

// EventType enumerates the observable action categories.
type EventType string

const (
	EventPageView        EventType = "page_view"
	EventClick           EventType = "click"
	EventSearch          EventType = "search"
	EventFormInteraction EventType = "form_interaction"
	EventTimeSpent       EventType = "time_spent"
)

// IsValid reports whether t is one of the recordable event types.
func (t EventType) IsValid() bool {
	switch t {
	case EventPageView, EventClick, EventSearch, EventFormInteraction, EventTimeSpent:
		return true
	}
	return false
}

// Payload carries the type-specific data for an event. Unused fields
// stay empty.
type Payload struct {
	Path      string `json:"path,omitempty"`
	Element   string `json:"element,omitempty"`
	Query     string `json:"query,omitempty"`
	Method    string `json:"method,omitempty"`
	Referer   string `json:"referer,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Duration  int64  `json:"durationMs,omitempty"`
}

// Event is a single observed user action tied to an identity or a
// session.
type Event struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identityId,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	Type       EventType `json:"type"`
	Payload    Payload   `json:"payload"`
	Weight     float64   `json:"weight"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Repository defines durable append-and-recall storage for events.
// Recent returns the newest events for an actor, newest first,
// bounded by limit and the recency window.
type Repository interface {
	Append(ctx context.Context, event *Event) error
	Recent(ctx context.Context, identityID, sessionID string, since time.Time, limit int) ([]*Event, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
