package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzani/roledetect-go/internal/application/services"
	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/domain/roles"
)

func event(eventType behavior.EventType, payload behavior.Payload) *behavior.Event {
	return &behavior.Event{
		ID:        "e1",
		SessionID: "s1",
		Type:      eventType,
		Payload:   payload,
		Weight:    1.0,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestScorePageViewOnAffinityPath(t *testing.T) {
	scorer := services.NewScoringService(nil)

	scores := scorer.Score([]*behavior.Event{
		event(behavior.EventPageView, behavior.Payload{Path: "/seller-landing"}),
	})

	role, score := scores.Top()
	assert.Equal(t, roles.RoleSeller, role)
	assert.Equal(t, 2.0, score)
	assert.Equal(t, 0.2, scorer.Confidence(score))
}

func TestScoreSearchKeywords(t *testing.T) {
	scorer := services.NewScoringService(nil)

	scores := scorer.Score([]*behavior.Event{
		event(behavior.EventSearch, behavior.Payload{Query: "business valuation services"}),
		event(behavior.EventSearch, behavior.Payload{Query: "ROI projections"}),
	})

	role, _ := scores.Top()
	assert.Equal(t, roles.RoleSeller, role)
	assert.Equal(t, 1.5, scores[roles.RoleSeller])
	assert.Equal(t, 1.5, scores[roles.RoleInvestor])
}

func TestScoreClickElements(t *testing.T) {
	scorer := services.NewScoringService(nil)

	scores := scorer.Score([]*behavior.Event{
		event(behavior.EventClick, behavior.Payload{Element: "contact-seller"}),
		event(behavior.EventClick, behavior.Payload{Element: "list-business"}),
		event(behavior.EventClick, behavior.Payload{Element: "view-business"}),
	})

	role, score := scores.Top()
	assert.Equal(t, roles.RoleBuyer, role)
	assert.Equal(t, 2.0, score)
	assert.Equal(t, 1.0, scores[roles.RoleSeller])
}

func TestScoreAppliesEventWeightMultiplier(t *testing.T) {
	scorer := services.NewScoringService(nil)

	weighted := event(behavior.EventClick, behavior.Payload{Element: "get-valuation"})
	weighted.Weight = 2.5

	scores := scorer.Score([]*behavior.Event{weighted})
	assert.Equal(t, 2.5, scores[roles.RoleSeller])
}

func TestScoreCeilingNormalization(t *testing.T) {
	scorer := services.NewScoringService(nil)

	events := make([]*behavior.Event, 5)
	for i := range events {
		events[i] = event(behavior.EventPageView, behavior.Payload{Path: "/buyer-dashboard"})
	}
	events = append(events, event(behavior.EventClick, behavior.Payload{Element: "list-business"}))

	// Raw buyer score would be 12.5; the ceiling rescales the whole
	// vector so the max is 5.0 and ordering is preserved.
	scores := scorer.Score(events)
	role, score := scores.Top()
	assert.Equal(t, roles.RoleBuyer, role)
	assert.InDelta(t, 5.0, score, 1e-9)
	assert.InDelta(t, 1.0/12.5*5.0, scores[roles.RoleSeller], 1e-9)
	assert.Equal(t, 0.5, scorer.Confidence(score))
}

func TestScoreSkipsMalformedEvents(t *testing.T) {
	scorer := services.NewScoringService(nil)

	scores := scorer.Score([]*behavior.Event{
		nil,
		event(behavior.EventType("hover"), behavior.Payload{}),
		event(behavior.EventPageView, behavior.Payload{Path: "/about-us"}),
		event(behavior.EventSearch, behavior.Payload{Query: "hello"}),
	})

	role, score := scores.Top()
	assert.Equal(t, roles.RoleUnknown, role)
	assert.Zero(t, score)
}

func TestScoreEmptyLogYieldsZeroVector(t *testing.T) {
	scorer := services.NewScoringService(nil)

	scores := scorer.Score(nil)
	role, score := scores.Top()
	assert.Equal(t, roles.RoleUnknown, role)
	assert.Zero(t, score)
	assert.Zero(t, scorer.Confidence(score))
}

func TestScoreIsDeterministic(t *testing.T) {
	scorer := services.NewScoringService(nil)

	events := []*behavior.Event{
		event(behavior.EventSearch, behavior.Payload{Query: "sell or buy a business"}),
		event(behavior.EventPageView, behavior.Payload{Path: "/marketplace-landing"}),
		event(behavior.EventClick, behavior.Payload{Element: "get-valuation"}),
	}

	first := scorer.Score(events)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, scorer.Score(events))
	}
}

func TestTimeSpentRequiresDwellThreshold(t *testing.T) {
	scorer := services.NewScoringService(nil)

	short := event(behavior.EventTimeSpent, behavior.Payload{Path: "/seller-landing", Duration: 5_000})
	long := event(behavior.EventTimeSpent, behavior.Payload{Path: "/seller-landing", Duration: 60_000})

	scores := scorer.Score([]*behavior.Event{short})
	_, score := scores.Top()
	assert.Zero(t, score)

	scores = scorer.Score([]*behavior.Event{long})
	role, score := scores.Top()
	assert.Equal(t, roles.RoleSeller, role)
	assert.Equal(t, 1.0, score)
}

func TestPageAffinity(t *testing.T) {
	scorer := services.NewScoringService(nil)

	role, boost, ok := scorer.PageAffinity("/seller-landing")
	require.True(t, ok)
	assert.Equal(t, roles.RoleSeller, role)
	assert.Equal(t, 0.2, boost)

	_, _, ok = scorer.PageAffinity("/pricing")
	assert.False(t, ok)
}
