package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzani/roledetect-go/internal/application/services"
	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/domain/roles"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/manager"
	cachetypes "github.com/arzani/roledetect-go/internal/infrastructure/caching/types"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/performance"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakePreferenceRepo struct {
	profiles map[string]*roles.Profile
	getErr   error
	putCalls int
	deleted  []string
}

func newFakePreferenceRepo() *fakePreferenceRepo {
	return &fakePreferenceRepo{profiles: make(map[string]*roles.Profile)}
}

func (r *fakePreferenceRepo) Get(_ context.Context, identityID string) (*roles.Profile, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.profiles[identityID], nil
}

func (r *fakePreferenceRepo) Put(_ context.Context, identityID string, profile *roles.Profile, _ time.Duration) error {
	r.putCalls++
	r.profiles[identityID] = profile
	return nil
}

func (r *fakePreferenceRepo) Delete(_ context.Context, identityID string) error {
	r.deleted = append(r.deleted, identityID)
	delete(r.profiles, identityID)
	return nil
}

type fakeEventRepo struct {
	events     []*behavior.Event
	recentErr  error
	recalls    int
	appended   []*behavior.Event
	purgeCalls int
}

func (r *fakeEventRepo) Append(_ context.Context, event *behavior.Event) error {
	r.appended = append(r.appended, event)
	return nil
}

func (r *fakeEventRepo) Recent(_ context.Context, _, _ string, _ time.Time, _ int) ([]*behavior.Event, error) {
	r.recalls++
	if r.recentErr != nil {
		return nil, r.recentErr
	}
	return r.events, nil
}

func (r *fakeEventRepo) PurgeBefore(_ context.Context, _ time.Time) (int64, error) {
	r.purgeCalls++
	return 0, nil
}

func durableProfile(identityID string, role roles.Role, confidence float64) *roles.Profile {
	p := roles.NewProfile(identityID, "")
	p.Role = role
	p.Confidence = confidence
	p.Method = roles.MethodDurable
	p.UpdatedAt = fixedNow.Add(-time.Hour)
	return p
}

func newResolver(durable roles.PreferenceRepository, events behavior.Repository) (*services.ResolverService, *manager.Manager) {
	cache := manager.NewManager(clock, nil)
	tracker := performance.NewTracker(performance.DefaultTrackerConfig())
	scorer := services.NewScoringService(nil)
	resolver := services.NewResolverService(durable, nil, cache, events, scorer, tracker, nil, clock, nil)
	return resolver, cache
}

func TestResolveConfidentDurableHitShortCircuits(t *testing.T) {
	repo := newFakePreferenceRepo()
	repo.profiles["u1"] = durableProfile("u1", roles.RoleBuyer, 0.9)
	resolver, cache := newResolver(repo, nil)

	// Contradicting behavioral evidence must not even be consulted.
	cache.AppendBehavior("u1", event(behavior.EventPageView, behavior.Payload{Path: "/seller-landing"}))

	resolution := resolver.Resolve(context.Background(), "u1", "s1", "")
	require.NotNil(t, resolution)
	require.NotNil(t, resolution.Profile)

	assert.Equal(t, roles.RoleBuyer, resolution.Profile.Role)
	assert.Equal(t, 0.9, resolution.Profile.Confidence)
	assert.Equal(t, roles.MethodDurable, resolution.Profile.Method)
	assert.True(t, resolution.ShouldCache)
	assert.True(t, resolution.ShouldShowConfidentRouting)
	assert.Equal(t, 168*time.Hour, resolution.TTL)

	require.NotNil(t, resolution.Profile.ExpiresAt)
	assert.Equal(t, fixedNow.Add(168*time.Hour), *resolution.Profile.ExpiresAt)
}

func TestResolveDurableErrorDegradesToBehavioral(t *testing.T) {
	repo := newFakePreferenceRepo()
	repo.getErr = errors.New("database locked")
	resolver, cache := newResolver(repo, nil)

	cache.AppendBehavior("u1", event(behavior.EventPageView, behavior.Payload{Path: "/buyer-dashboard"}))

	resolution := resolver.Resolve(context.Background(), "u1", "", "")
	require.NotNil(t, resolution.Profile)

	assert.Equal(t, roles.RoleBuyer, resolution.Profile.Role)
	assert.Equal(t, roles.MethodBehavioral, resolution.Profile.Method)
	assert.InDelta(t, 0.25, resolution.Profile.Confidence, 1e-9)
	assert.False(t, resolution.ShouldCache)
}

func TestResolveSessionTierHit(t *testing.T) {
	resolver, cache := newResolver(newFakePreferenceRepo(), nil)

	cache.SetSessionRole(&cachetypes.SessionRoleEntry{
		SessionID:  "s1",
		Role:       roles.RoleSeller,
		Confidence: 0.75,
		Method:     roles.MethodBehavioral,
		ExpiresAt:  fixedNow.Add(time.Hour),
		StoredAt:   fixedNow.Add(-time.Minute),
	})

	resolution := resolver.Resolve(context.Background(), "", "s1", "")
	require.NotNil(t, resolution.Profile)

	assert.Equal(t, roles.RoleSeller, resolution.Profile.Role)
	assert.Equal(t, 0.75, resolution.Profile.Confidence)
	assert.Equal(t, roles.MethodSession, resolution.Profile.Method)
	assert.True(t, resolution.ShouldCache)
	assert.False(t, resolution.ShouldShowConfidentRouting)
	assert.Equal(t, 24*time.Hour, resolution.TTL)
}

func TestResolveMergeStrongerBehavioralReplaces(t *testing.T) {
	repo := newFakePreferenceRepo()
	repo.profiles["u1"] = durableProfile("u1", roles.RoleSeller, 0.45)
	resolver, cache := newResolver(repo, nil)

	// Two dashboard visits max out the score ceiling: confidence 0.5.
	cache.AppendBehavior("u1", event(behavior.EventPageView, behavior.Payload{Path: "/buyer-dashboard"}))
	cache.AppendBehavior("u1", event(behavior.EventPageView, behavior.Payload{Path: "/buyer-dashboard"}))

	resolution := resolver.Resolve(context.Background(), "u1", "", "")
	require.NotNil(t, resolution.Profile)

	assert.Equal(t, roles.RoleBuyer, resolution.Profile.Role)
	assert.InDelta(t, 0.5, resolution.Profile.Confidence, 1e-9)
	assert.Equal(t, "durable_cache_+_behavioral", resolution.Profile.Method)
	assert.False(t, resolution.ShouldCache)
}

func TestResolveMergeWeakerBehavioralIsDamped(t *testing.T) {
	repo := newFakePreferenceRepo()
	repo.profiles["u1"] = durableProfile("u1", roles.RoleSeller, 0.45)
	resolver, cache := newResolver(repo, nil)

	// Buyer score 3.0, confidence 0.3: damped to 0.21, cached belief holds.
	cache.AppendBehavior("u1", event(behavior.EventPageView, behavior.Payload{Path: "/buyer-landing"}))
	cache.AppendBehavior("u1", event(behavior.EventClick, behavior.Payload{Element: "contact-seller"}))

	resolution := resolver.Resolve(context.Background(), "u1", "", "")
	require.NotNil(t, resolution.Profile)

	assert.Equal(t, roles.RoleSeller, resolution.Profile.Role)
	assert.Equal(t, 0.45, resolution.Profile.Confidence)
	assert.Equal(t, "durable_cache_+_behavioral", resolution.Profile.Method)
}

func TestResolveMergePreservesCachedBehavioralExtras(t *testing.T) {
	repo := newFakePreferenceRepo()
	existing := durableProfile("u1", roles.RoleSeller, 0.45)
	existing.BehavioralData = map[string]interface{}{
		"lastIndicator": "seller-landing",
		"buyer":         0.1,
	}
	repo.profiles["u1"] = existing
	resolver, cache := newResolver(repo, nil)

	cache.AppendBehavior("u1", event(behavior.EventPageView, behavior.Payload{Path: "/buyer-dashboard"}))
	cache.AppendBehavior("u1", event(behavior.EventPageView, behavior.Payload{Path: "/buyer-dashboard"}))

	resolution := resolver.Resolve(context.Background(), "u1", "", "")
	require.NotNil(t, resolution.Profile)

	// Cached keys survive the merge; fresh score keys overwrite stale ones.
	data := resolution.Profile.BehavioralData
	assert.Equal(t, "seller-landing", data["lastIndicator"])
	assert.InDelta(t, 5.0, data["buyer"].(float64), 1e-9)
}

func TestResolvePageAffinityBoostOnMatchingRole(t *testing.T) {
	repo := newFakePreferenceRepo()
	repo.profiles["u1"] = durableProfile("u1", roles.RoleBuyer, 0.9)
	resolver, _ := newResolver(repo, nil)

	resolution := resolver.Resolve(context.Background(), "u1", "", "/buyer-dashboard")
	require.NotNil(t, resolution.Profile)
	assert.Equal(t, 1.0, resolution.Profile.Confidence)
}

func TestResolvePageAffinityBoostSkippedOnMismatch(t *testing.T) {
	repo := newFakePreferenceRepo()
	repo.profiles["u1"] = durableProfile("u1", roles.RoleSeller, 0.9)
	resolver, _ := newResolver(repo, nil)

	resolution := resolver.Resolve(context.Background(), "u1", "", "/buyer-dashboard")
	require.NotNil(t, resolution.Profile)
	assert.Equal(t, 0.9, resolution.Profile.Confidence)
}

func TestResolveThresholdBandEdges(t *testing.T) {
	repo := newFakePreferenceRepo()
	repo.profiles["edge-low"] = durableProfile("edge-low", roles.RoleBuyer, 0.6)
	repo.profiles["edge-high"] = durableProfile("edge-high", roles.RoleBuyer, 0.8)
	resolver, _ := newResolver(repo, nil)

	low := resolver.Resolve(context.Background(), "edge-low", "", "")
	assert.True(t, low.ShouldCache)
	assert.False(t, low.ShouldShowConfidentRouting)
	assert.Equal(t, 24*time.Hour, low.TTL)

	high := resolver.Resolve(context.Background(), "edge-high", "", "")
	assert.True(t, high.ShouldCache)
	assert.True(t, high.ShouldShowConfidentRouting)
	assert.Equal(t, 168*time.Hour, high.TTL)
}

func TestResolveNoSignalsYieldsUnknown(t *testing.T) {
	resolver, _ := newResolver(newFakePreferenceRepo(), nil)

	resolution := resolver.Resolve(context.Background(), "", "s1", "/pricing")
	require.NotNil(t, resolution.Profile)

	assert.Equal(t, roles.RoleUnknown, resolution.Profile.Role)
	assert.Zero(t, resolution.Profile.Confidence)
	assert.False(t, resolution.ShouldCache)
	assert.Nil(t, resolution.CacheInstructions)
}

func TestResolveRecallsDurableEventsAfterRestart(t *testing.T) {
	events := &fakeEventRepo{events: []*behavior.Event{
		event(behavior.EventPageView, behavior.Payload{Path: "/seller-questionnaire"}),
		event(behavior.EventPageView, behavior.Payload{Path: "/seller-landing"}),
	}}
	resolver, cache := newResolver(newFakePreferenceRepo(), events)

	resolution := resolver.Resolve(context.Background(), "u1", "", "")
	require.NotNil(t, resolution.Profile)

	assert.Equal(t, roles.RoleSeller, resolution.Profile.Role)
	assert.Equal(t, roles.MethodBehavioral, resolution.Profile.Method)
	assert.Equal(t, 1, events.recalls)

	// The recall warms the in-memory log so later resolutions skip the
	// database.
	window, found := cache.BehaviorWindow("u1", fixedNow.Add(-time.Hour))
	require.True(t, found)
	assert.Len(t, window, 2)

	resolver.Resolve(context.Background(), "u1", "", "")
	assert.Equal(t, 1, events.recalls)
}

func TestResolveNeverFails(t *testing.T) {
	cache := manager.NewManager(clock, nil)
	tracker := performance.NewTracker(performance.DefaultTrackerConfig())

	// A nil scorer panics mid-pipeline; the caller still gets a usable
	// fallback instead of an error.
	resolver := services.NewResolverService(newFakePreferenceRepo(), nil, cache, nil, nil, tracker, nil, clock, nil)

	resolution := resolver.Resolve(context.Background(), "u1", "s1", "/buyer-landing")
	require.NotNil(t, resolution)
	require.NotNil(t, resolution.Profile)

	assert.Equal(t, roles.RoleUnknown, resolution.Profile.Role)
	assert.Zero(t, resolution.Profile.Confidence)
	assert.Equal(t, roles.MethodError, resolution.Profile.Method)
	assert.False(t, resolution.ShouldCache)
}

func TestSelectRoleExplicitChoiceWins(t *testing.T) {
	resolver, _ := newResolver(newFakePreferenceRepo(), nil)

	resolution := resolver.SelectRole("u1", "s1", roles.RoleInvestor)
	require.NotNil(t, resolution.Profile)

	assert.Equal(t, roles.RoleInvestor, resolution.Profile.Role)
	assert.Equal(t, 1.0, resolution.Profile.Confidence)
	assert.Equal(t, roles.MethodExplicit, resolution.Profile.Method)
	assert.True(t, resolution.ShouldCache)
	assert.True(t, resolution.ShouldShowConfidentRouting)
	assert.Equal(t, 168*time.Hour, resolution.TTL)
}

func TestResolveCacheInstructionsPrimeClientKeys(t *testing.T) {
	repo := newFakePreferenceRepo()
	repo.profiles["u1"] = durableProfile("u1", roles.RoleBuyer, 0.9)
	resolver, _ := newResolver(repo, nil)

	resolution := resolver.Resolve(context.Background(), "u1", "", "")
	require.NotNil(t, resolution.CacheInstructions)

	local := resolution.CacheInstructions.LocalStorage
	assert.Equal(t, "buyer", local[roles.ClientRoleKey])
	assert.Equal(t, "0.9", local[roles.ClientConfidenceKey])
	assert.Equal(t, fixedNow.Add(168*time.Hour).Format(time.RFC3339), local[roles.ClientExpirationKey])
	assert.Equal(t, roles.MethodDurable, resolution.CacheInstructions.SessionStorage[roles.ClientMethodKey])
}
