package roles

import (
	"context"
	"time"
)

// PreferenceRepository defines the durable store for role profiles,
// keyed by identity. Cache absence is a normal state: a missing or
// expired entry returns (nil, nil), not an error.
type PreferenceRepository interface {
	Get(ctx context.Context, identityID string) (*Profile, error)
	Put(ctx context.Context, identityID string, profile *Profile, ttl time.Duration) error
	Delete(ctx context.Context, identityID string) error
}
