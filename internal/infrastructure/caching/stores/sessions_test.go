package stores_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzani/roledetect-go/internal/domain/roles"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/stores"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/types"
)

func entryAt(sessionID string, storedAt, expiresAt time.Time) *types.SessionRoleEntry {
	return &types.SessionRoleEntry{
		SessionID:  sessionID,
		Role:       roles.RoleBuyer,
		Confidence: 0.8,
		Method:     roles.MethodBehavioral,
		StoredAt:   storedAt,
		ExpiresAt:  expiresAt,
	}
}

func TestSessionRolesStoreRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := stores.NewSessionRolesStore(100, func() time.Time { return now }, nil)

	store.Set(entryAt("s1", now, now.Add(time.Hour)))

	entry, found := store.Get("s1")
	require.True(t, found)
	assert.Equal(t, roles.RoleBuyer, entry.Role)
	assert.Equal(t, 0.8, entry.Confidence)
}

func TestSessionRolesStoreExpiredEntryIsAbsent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	store := stores.NewSessionRolesStore(100, func() time.Time { return *clock }, nil)

	store.Set(entryAt("s1", now, now.Add(time.Hour)))

	// Advance past expiry. The entry still occupies memory but reads as
	// missing until the sweep removes it.
	later := now.Add(2 * time.Hour)
	clock = &later

	_, found := store.Get("s1")
	assert.False(t, found)
	assert.Equal(t, 1, store.Len())

	purged := store.PurgeExpired()
	assert.Equal(t, 1, purged)
	assert.Zero(t, store.Len())
}

func TestSessionRolesStoreEntryExpiringExactlyNowIsAbsent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := stores.NewSessionRolesStore(100, func() time.Time { return now }, nil)

	store.Set(entryAt("s1", now.Add(-time.Hour), now))

	_, found := store.Get("s1")
	assert.False(t, found)
}

func TestSessionRolesStoreEvictsOldestAtCapacity(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := stores.NewSessionRolesStore(3, func() time.Time { return now }, nil)

	for i := 0; i < 3; i++ {
		store.Set(entryAt(fmt.Sprintf("s%d", i), now.Add(time.Duration(i)*time.Minute), now.Add(time.Hour)))
	}
	store.Set(entryAt("s3", now.Add(10*time.Minute), now.Add(time.Hour)))

	assert.Equal(t, 3, store.Len())
	_, found := store.Get("s0")
	assert.False(t, found)
	_, found = store.Get("s3")
	assert.True(t, found)
}

func TestSessionRolesStoreOverwriteDoesNotEvict(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := stores.NewSessionRolesStore(2, func() time.Time { return now }, nil)

	store.Set(entryAt("s1", now, now.Add(time.Hour)))
	store.Set(entryAt("s2", now, now.Add(time.Hour)))

	updated := entryAt("s1", now.Add(time.Minute), now.Add(2*time.Hour))
	updated.Confidence = 0.95
	store.Set(updated)

	assert.Equal(t, 2, store.Len())
	entry, found := store.Get("s1")
	require.True(t, found)
	assert.Equal(t, 0.95, entry.Confidence)
	_, found = store.Get("s2")
	assert.True(t, found)
}

func TestSessionRolesStoreRemove(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := stores.NewSessionRolesStore(100, func() time.Time { return now }, nil)

	store.Set(entryAt("s1", now, now.Add(time.Hour)))
	store.Remove("s1")

	_, found := store.Get("s1")
	assert.False(t, found)
}
