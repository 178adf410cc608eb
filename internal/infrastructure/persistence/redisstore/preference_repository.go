// Package redisstore provides a Redis-backed implementation of the
// durable role preference repository, for deployments that keep role
// state in a shared cache rather than SQL.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arzani/roledetect-go/internal/domain/roles"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
)

const keyPrefix = "roledetect:preference:"

// PreferenceRepository implements roles.PreferenceRepository on Redis.
// Values are stored as JSON with the TTL enforced by Redis itself.
type PreferenceRepository struct {
	client *redis.Client
	logger *logging.ChanneledLogger
}

// NewClient creates a Redis client and verifies the connection.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// NewPreferenceRepository creates a new Redis-backed repository.
func NewPreferenceRepository(client *redis.Client, logger *logging.ChanneledLogger) *PreferenceRepository {
	return &PreferenceRepository{
		client: client,
		logger: logger,
	}
}

// Get retrieves the stored profile for an identity. A missing key or a
// corrupt value returns (nil, nil).
func (r *PreferenceRepository) Get(ctx context.Context, identityID string) (*roles.Profile, error) {
	data, err := r.client.Get(ctx, keyPrefix+identityID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		r.logger.Cache().Error("Redis preference read failed", "error", err.Error(), "identityId", identityID)
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}

	var profile roles.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		r.logger.Cache().Warn("Corrupt Redis preference value skipped", "identityId", identityID, "error", err.Error())
		return nil, nil
	}

	profile.IdentityID = identityID
	return &profile, nil
}

// Put stores the profile under the identity key with the given TTL.
func (r *PreferenceRepository) Put(ctx context.Context, identityID string, profile *roles.Profile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal preference: %w", err)
	}

	if err := r.client.Set(ctx, keyPrefix+identityID, data, ttl).Err(); err != nil {
		r.logger.Cache().Error("Redis preference write failed", "error", err.Error(), "identityId", identityID)
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}

// Delete removes the stored preference for an identity.
func (r *PreferenceRepository) Delete(ctx context.Context, identityID string) error {
	if err := r.client.Del(ctx, keyPrefix+identityID).Err(); err != nil {
		r.logger.Cache().Error("Redis preference delete failed", "error", err.Error(), "identityId", identityID)
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}
