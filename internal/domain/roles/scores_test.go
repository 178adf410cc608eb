package roles_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arzani/roledetect-go/internal/domain/roles"
)

func TestTopReturnsHighestScoringRole(t *testing.T) {
	scores := roles.NewIndicatorScores()
	scores.Add(roles.RoleBuyer, 1.5)
	scores.Add(roles.RoleSeller, 3.0)

	role, score := scores.Top()
	assert.Equal(t, roles.RoleSeller, role)
	assert.Equal(t, 3.0, score)
}

func TestTopBreaksTiesByPriorityOrder(t *testing.T) {
	scores := roles.NewIndicatorScores()
	scores.Add(roles.RoleInvestor, 2.0)
	scores.Add(roles.RoleSeller, 2.0)
	scores.Add(roles.RoleBuyer, 2.0)

	role, _ := scores.Top()
	assert.Equal(t, roles.RoleBuyer, role)

	scores = roles.NewIndicatorScores()
	scores.Add(roles.RoleInvestor, 2.0)
	scores.Add(roles.RoleProfessional, 2.0)

	role, _ = scores.Top()
	assert.Equal(t, roles.RoleProfessional, role)
}

func TestTopOnZeroVectorYieldsUnknown(t *testing.T) {
	scores := roles.NewIndicatorScores()

	role, score := scores.Top()
	assert.Equal(t, roles.RoleUnknown, role)
	assert.Zero(t, score)
}

func TestAddIgnoresInvalidRoleAndNonPositiveWeight(t *testing.T) {
	scores := roles.NewIndicatorScores()
	scores.Add(roles.RoleUnknown, 2.0)
	scores.Add(roles.Role("admin"), 2.0)
	scores.Add(roles.RoleBuyer, -1.0)
	scores.Add(roles.RoleBuyer, 0)

	_, score := scores.Top()
	assert.Zero(t, score)
}

func TestNormalizePreservesOrderingUnderCeiling(t *testing.T) {
	scores := roles.NewIndicatorScores()
	scores.Add(roles.RoleBuyer, 10.0)
	scores.Add(roles.RoleSeller, 4.0)
	scores.Add(roles.RoleInvestor, 2.0)

	scores.Normalize(5.0)

	assert.InDelta(t, 5.0, scores[roles.RoleBuyer], 1e-9)
	assert.InDelta(t, 2.0, scores[roles.RoleSeller], 1e-9)
	assert.InDelta(t, 1.0, scores[roles.RoleInvestor], 1e-9)

	role, _ := scores.Top()
	assert.Equal(t, roles.RoleBuyer, role)
}

func TestNormalizeIsNoOpWhenMaxWithinCeiling(t *testing.T) {
	scores := roles.NewIndicatorScores()
	scores.Add(roles.RoleSeller, 4.5)

	scores.Normalize(5.0)
	assert.Equal(t, 4.5, scores[roles.RoleSeller])
}

func TestConfidenceCapsAtOne(t *testing.T) {
	assert.Equal(t, 0.2, roles.Confidence(2.0, 10.0))
	assert.Equal(t, 1.0, roles.Confidence(15.0, 10.0))
	assert.Zero(t, roles.Confidence(0, 10.0))
	assert.Zero(t, roles.Confidence(3.0, 0))
}

func TestMergedMethodSuffix(t *testing.T) {
	assert.Equal(t, "durable_cache_+_behavioral", roles.MergedMethod(roles.MethodDurable))
	assert.Equal(t, "session_cache_+_behavioral", roles.MergedMethod(roles.MethodSession))
}

func TestProfileExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	profile := roles.NewProfile("u1", "s1")
	assert.False(t, profile.Expired(now))

	past := now.Add(-time.Second)
	profile.ExpiresAt = &past
	assert.True(t, profile.Expired(now))

	future := now.Add(time.Hour)
	profile.ExpiresAt = &future
	assert.False(t, profile.Expired(now))
}
