package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/domain/roles"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/interfaces"
	cachetypes "github.com/arzani/roledetect-go/internal/infrastructure/caching/types"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/metrics"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/performance"
	persistroles "github.com/arzani/roledetect-go/internal/infrastructure/persistence/roles"
	"github.com/arzani/roledetect-go/pkg/config"
)

// ResolverService runs the role resolution pipeline: durable lookup,
// session lookup, behavioral scoring, profile merge, rule adjustment.
// Resolve never fails; any internal error degrades to the unknown-role
// fallback so request handling is never blocked by detection.
type ResolverService struct {
	durable  roles.PreferenceRepository
	sessions *persistroles.SQLSessionCacheRepository
	cache    interfaces.Cache
	events   behavior.Repository
	scorer   *ScoringService

	perfTracker *performance.Tracker
	metrics     *metrics.Collector
	logger      *logging.ChanneledLogger
	now         func() time.Time
}

// NewResolverService creates a new role resolver with its dependencies.
func NewResolverService(
	durable roles.PreferenceRepository,
	sessions *persistroles.SQLSessionCacheRepository,
	cache interfaces.Cache,
	events behavior.Repository,
	scorer *ScoringService,
	perfTracker *performance.Tracker,
	collector *metrics.Collector,
	clock func() time.Time,
	logger *logging.ChanneledLogger,
) *ResolverService {
	if clock == nil {
		clock = time.Now
	}
	return &ResolverService{
		durable:     durable,
		sessions:    sessions,
		cache:       cache,
		events:      events,
		scorer:      scorer,
		perfTracker: perfTracker,
		metrics:     collector,
		logger:      logger,
		now:         clock,
	}
}

// Resolve determines the actor's role for the current request.
// currentPath is the page being visited, used for rule adjustment.
func (s *ResolverService) Resolve(ctx context.Context, identityID, sessionID, currentPath string) (resolution *roles.Resolution) {
	start := time.Now()
	marker := s.perfTracker.StartOperation("resolver.resolve", actorKey(identityID, sessionID))

	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Resolver().Error("Resolution panicked, returning fallback", "panic", r, "sessionId", sessionID)
			}
			resolution = s.errorFallback(identityID, sessionID)
			marker.SetSuccess(false)
		}
		marker.Complete()
		if s.metrics != nil && resolution != nil && resolution.Profile != nil {
			s.metrics.RecordResolution(resolution.Profile.Method, string(resolution.Profile.Role), time.Since(start))
		}
		if s.logger != nil && resolution != nil && resolution.Profile != nil {
			s.logger.LogResolution(actorKey(identityID, sessionID), string(resolution.Profile.Role), resolution.Profile.Method, resolution.Profile.Confidence, time.Since(start))
		}
	}()

	now := s.now().UTC()

	// Step 1: durable tier.
	existing := s.lookupDurable(ctx, identityID, marker)

	// A confident durable hit short-circuits the pipeline entirely.
	if existing != nil && existing.Confidence >= config.RecomputeThreshold {
		marker.SetSuccess(true)
		return s.finalize(existing, currentPath, now)
	}

	// Step 2: session tier, in-memory first, durable mirror as fallback.
	if existing == nil {
		existing = s.lookupSession(ctx, sessionID, marker)
		if existing != nil && existing.Confidence >= config.RecomputeThreshold {
			marker.SetSuccess(true)
			return s.finalize(existing, currentPath, now)
		}
	}

	// Step 3: behavioral scoring over the recency window.
	behavioral := s.scoreBehavior(ctx, identityID, sessionID, now, marker)

	// Step 4: merge.
	merged := s.merge(existing, behavioral, identityID, sessionID)

	marker.SetSuccess(true)
	return s.finalize(merged, currentPath, now)
}

// SelectRole records an explicit role choice by the actor. Explicit
// selection always wins over inference.
func (s *ResolverService) SelectRole(identityID, sessionID string, role roles.Role) *roles.Resolution {
	now := s.now().UTC()
	profile := roles.NewProfile(identityID, sessionID)
	profile.Role = role
	profile.Confidence = 1.0
	profile.Method = roles.MethodExplicit
	profile.UpdatedAt = now
	return s.finalize(profile, "", now)
}

// lookupDurable reads the durable tier under a hard deadline. Errors
// and timeouts degrade to a miss.
func (s *ResolverService) lookupDurable(ctx context.Context, identityID string, marker *performance.Marker) *roles.Profile {
	if identityID == "" || s.durable == nil {
		return nil
	}

	readCtx, cancel := context.WithTimeout(ctx, config.DurableReadTimeout)
	defer cancel()

	profile, err := s.durable.Get(readCtx, identityID)
	if err != nil {
		if s.logger != nil {
			s.logger.Resolver().Warn("Durable lookup failed, treating as miss", "identityId", identityID, "error", err.Error())
		}
		if s.metrics != nil {
			s.metrics.RecordCacheLookup("durable", false)
		}
		marker.AddCacheMiss()
		return nil
	}

	hit := profile != nil && profile.HasRole()
	if s.metrics != nil {
		s.metrics.RecordCacheLookup("durable", hit)
	}
	if !hit {
		marker.AddCacheMiss()
		return nil
	}

	marker.AddCacheHit()
	profile.Method = roles.MethodDurable
	return profile
}

// lookupSession checks the in-memory session tier, falling back to the
// durable session mirror and rehydrating on a hit.
func (s *ResolverService) lookupSession(ctx context.Context, sessionID string, marker *performance.Marker) *roles.Profile {
	if sessionID == "" {
		return nil
	}

	if entry, found := s.cache.GetSessionRole(sessionID); found {
		marker.AddCacheHit()
		if s.metrics != nil {
			s.metrics.RecordCacheLookup("session", true)
		}
		profile := entry.Profile()
		profile.Method = roles.MethodSession
		return profile
	}

	if s.sessions == nil {
		marker.AddCacheMiss()
		if s.metrics != nil {
			s.metrics.RecordCacheLookup("session", false)
		}
		return nil
	}

	readCtx, cancel := context.WithTimeout(ctx, config.DurableReadTimeout)
	defer cancel()

	profile, err := s.sessions.Get(readCtx, sessionID)
	if err != nil {
		if s.logger != nil {
			s.logger.Resolver().Warn("Session mirror lookup failed, treating as miss", "sessionId", sessionID, "error", err.Error())
		}
		profile = nil
	}

	hit := profile != nil && profile.HasRole()
	if s.metrics != nil {
		s.metrics.RecordCacheLookup("session", hit)
	}
	if !hit {
		marker.AddCacheMiss()
		return nil
	}

	marker.AddCacheHit()
	profile.Method = roles.MethodSession

	// Rehydrate the in-memory tier so the next request skips the database.
	if profile.ExpiresAt != nil {
		s.cache.SetSessionRole(&cachetypes.SessionRoleEntry{
			SessionID:      sessionID,
			IdentityID:     profile.IdentityID,
			Role:           profile.Role,
			Confidence:     profile.Confidence,
			Method:         profile.Method,
			BehavioralData: profile.BehavioralData,
			ExpiresAt:      *profile.ExpiresAt,
			StoredAt:       s.now().UTC(),
		})
	}
	return profile
}

// scoreBehavior builds a behavioral candidate from the actor's recent
// events. The in-memory accumulator is authoritative; the durable log
// backfills after a restart.
func (s *ResolverService) scoreBehavior(ctx context.Context, identityID, sessionID string, now time.Time, marker *performance.Marker) *roles.Profile {
	since := now.Add(-time.Duration(config.BehaviorWindowDays) * 24 * time.Hour)

	events, found := s.cache.BehaviorWindow(actorKey(identityID, sessionID), since)
	if (!found || len(events) == 0) && s.events != nil {
		recalled, err := s.recallEvents(ctx, identityID, sessionID, since)
		if err != nil {
			if s.logger != nil {
				s.logger.Resolver().Warn("Windowed event recall failed, scoring with empty log", "sessionId", sessionID, "error", err.Error())
			}
		} else {
			events = recalled
		}
	}

	scores := s.scorer.Score(events)
	top, topScore := scores.Top()
	confidence := s.scorer.Confidence(topScore)

	marker.AddMetadata("behavioralEvents", len(events))
	marker.AddMetadata("behavioralTop", string(top))

	if top == roles.RoleUnknown || confidence <= 0 {
		return nil
	}

	profile := roles.NewProfile(identityID, sessionID)
	profile.Role = top
	profile.Confidence = confidence
	profile.Method = roles.MethodBehavioral
	profile.BehavioralData = scores.AsData()
	profile.UpdatedAt = now
	return profile
}

func (s *ResolverService) recallEvents(ctx context.Context, identityID, sessionID string, since time.Time) ([]*behavior.Event, error) {
	readCtx, cancel := context.WithTimeout(ctx, config.DurableReadTimeout)
	defer cancel()

	events, err := s.events.Recent(readCtx, identityID, sessionID, since, config.MaxBehaviorEvents)
	if err != nil {
		return nil, err
	}

	// Warm the accumulator so subsequent resolutions stay in memory.
	// Recent returns newest first; replay oldest first to keep log order.
	key := actorKey(identityID, sessionID)
	for i := len(events) - 1; i >= 0; i-- {
		s.cache.AppendBehavior(key, events[i])
	}
	return events, nil
}

// merge reconciles a cached profile with the behavioral candidate.
// Fresh behavioral evidence that is more confident replaces the cached
// role; weaker evidence is damped so it can never degrade a confident
// cached belief.
func (s *ResolverService) merge(existing, behavioral *roles.Profile, identityID, sessionID string) *roles.Profile {
	switch {
	case existing == nil && behavioral == nil:
		profile := roles.NewProfile(identityID, sessionID)
		profile.UpdatedAt = s.now().UTC()
		return profile
	case existing == nil:
		return behavioral
	case behavioral == nil:
		return existing
	}

	merged := roles.NewProfile(identityID, sessionID)
	merged.UpdatedAt = s.now().UTC()
	merged.Method = roles.MergedMethod(existing.Method)
	merged.BehavioralData = mergeBehavioralData(existing.BehavioralData, behavioral.BehavioralData)

	if behavioral.Confidence > existing.Confidence {
		merged.Role = behavioral.Role
		merged.Confidence = behavioral.Confidence
	} else {
		merged.Role = existing.Role
		damped := behavioral.Confidence * config.MergeDamping
		if damped > existing.Confidence {
			merged.Confidence = damped
		} else {
			merged.Confidence = existing.Confidence
		}
	}
	return merged
}

// mergeBehavioralData overlays fresh score data onto the cached blob.
// Fresh keys win on conflict; cached extras survive.
func mergeBehavioralData(existing, fresh map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(existing)+len(fresh))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range fresh {
		merged[k] = v
	}
	return merged
}

// finalize applies rule adjustment and derives the caching decision.
func (s *ResolverService) finalize(profile *roles.Profile, currentPath string, now time.Time) *roles.Resolution {
	if currentPath != "" && profile.HasRole() {
		if affinityRole, boost, ok := s.scorer.PageAffinity(currentPath); ok && affinityRole == profile.Role {
			profile.Confidence = profile.Confidence + boost
			if profile.Confidence > 1.0 {
				profile.Confidence = 1.0
			}
		}
	}

	resolution := &roles.Resolution{
		Profile:                    profile,
		ShouldCache:                profile.HasRole() && profile.Confidence >= config.CacheThreshold,
		ShouldShowConfidentRouting: profile.HasRole() && profile.Confidence >= config.ConfidentThreshold,
	}

	if resolution.ShouldCache {
		if profile.Confidence >= config.ConfidentThreshold {
			resolution.TTL = config.ConfidentRoleTTL
		} else {
			resolution.TTL = config.ProbableRoleTTL
		}
		expiresAt := now.Add(resolution.TTL)
		profile.ExpiresAt = &expiresAt
		resolution.CacheInstructions = buildCacheInstructions(profile, expiresAt)
	}
	return resolution
}

// errorFallback is the never-fail guarantee: unknown role, zero
// confidence, nothing cached.
func (s *ResolverService) errorFallback(identityID, sessionID string) *roles.Resolution {
	profile := roles.NewProfile(identityID, sessionID)
	profile.Method = roles.MethodError
	profile.UpdatedAt = s.now().UTC()
	return &roles.Resolution{Profile: profile}
}

// buildCacheInstructions assembles the client priming payload.
func buildCacheInstructions(profile *roles.Profile, expiresAt time.Time) *roles.CacheInstructions {
	local := map[string]string{
		roles.ClientRoleKey:       string(profile.Role),
		roles.ClientConfidenceKey: strconv.FormatFloat(profile.Confidence, 'f', -1, 64),
		roles.ClientExpirationKey: expiresAt.Format(time.RFC3339),
	}
	if len(profile.BehavioralData) > 0 {
		if data, err := json.Marshal(profile.BehavioralData); err == nil {
			local[roles.ClientBehavioralKey] = string(data)
		}
	}
	return &roles.CacheInstructions{
		LocalStorage:   local,
		SessionStorage: map[string]string{roles.ClientMethodKey: profile.Method},
		ExpiresAt:      &expiresAt,
	}
}
