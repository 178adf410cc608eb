// Package interfaces defines cache operation contracts for role state and behavior tracking.
package interfaces

import (
	"time"

	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/types"
)

// SessionRoleCache defines operations for the session-scoped role tier
type SessionRoleCache interface {
	GetSessionRole(sessionID string) (*types.SessionRoleEntry, bool)
	SetSessionRole(entry *types.SessionRoleEntry)
	RemoveSessionRole(sessionID string)
}

// BehaviorCache defines operations for the per-actor event accumulator
type BehaviorCache interface {
	AppendBehavior(actorKey string, event *behavior.Event)
	BehaviorWindow(actorKey string, since time.Time) ([]*behavior.Event, bool)
	RemoveBehavior(actorKey string)
}

// Cache combines all in-memory tiers plus maintenance operations
type Cache interface {
	SessionRoleCache
	BehaviorCache
	PurgeExpired(cutoff time.Time) int
	GetSummary() map[string]any
}
