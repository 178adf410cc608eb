// Package manager provides centralized cache operations across the in-memory tiers
package manager

import (
	"time"

	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/interfaces"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/stores"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/types"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/pkg/config"
)

// Interface assertion to ensure Manager implements the cache contract.
var _ interfaces.Cache = (*Manager)(nil)

// Manager provides centralized cache operations by delegating to specialized stores.
type Manager struct {
	sessionRoles *stores.SessionRolesStore
	behaviors    *stores.BehaviorsStore
	logger       *logging.ChanneledLogger
}

func NewManager(clock func() time.Time, logger *logging.ChanneledLogger) *Manager {
	if logger != nil {
		logger.Cache().Info("Initializing cache manager", "stores", []string{"sessionRoles", "behaviors"})
	}

	return &Manager{
		sessionRoles: stores.NewSessionRolesStore(config.MaxSessions, clock, logger),
		behaviors:    stores.NewBehaviorsStore(config.MaxBehaviorActors, config.MaxBehaviorEvents, clock, logger),
		logger:       logger,
	}
}

func (m *Manager) GetSessionRole(sessionID string) (*types.SessionRoleEntry, bool) {
	return m.sessionRoles.Get(sessionID)
}

func (m *Manager) SetSessionRole(entry *types.SessionRoleEntry) {
	m.sessionRoles.Set(entry)
}

func (m *Manager) RemoveSessionRole(sessionID string) {
	m.sessionRoles.Remove(sessionID)
}

func (m *Manager) AppendBehavior(actorKey string, event *behavior.Event) {
	m.behaviors.Append(actorKey, event)
}

func (m *Manager) BehaviorWindow(actorKey string, since time.Time) ([]*behavior.Event, bool) {
	return m.behaviors.Window(actorKey, since)
}

func (m *Manager) RemoveBehavior(actorKey string) {
	m.behaviors.Remove(actorKey)
}

// PurgeExpired sweeps expired session roles and behavior logs idle since the cutoff.
func (m *Manager) PurgeExpired(cutoff time.Time) int {
	return m.sessionRoles.PurgeExpired() + m.behaviors.PurgeIdle(cutoff)
}

// SessionRoleCount returns the number of cached session role entries.
func (m *Manager) SessionRoleCount() int {
	return m.sessionRoles.Len()
}

// BehaviorActorCount returns the number of actors with tracked behavior.
func (m *Manager) BehaviorActorCount() int {
	return m.behaviors.Len()
}

// GetSummary returns per-store status for diagnostics.
func (m *Manager) GetSummary() map[string]any {
	return map[string]any{
		"sessionRoles": m.sessionRoles.Summary(),
		"behaviors":    m.behaviors.Summary(),
	}
}
