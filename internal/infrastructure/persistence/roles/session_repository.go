package roles

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/arzani/roledetect-go/internal/domain/roles"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/internal/infrastructure/persistence/database"
)

// cacheKeyRoleDetection is the cache_key under which session role state
// is stored.
const cacheKeyRoleDetection = "role_detection"

// sessionCacheValue is the serialized shape stored in cache_value.
type sessionCacheValue struct {
	Role           string                 `json:"role"`
	Confidence     float64                `json:"confidence"`
	Method         string                 `json:"method"`
	BehavioralData map[string]interface{} `json:"behavioral_data,omitempty"`
}

// SQLSessionCacheRepository persists session-scoped role state so the
// ephemeral tier survives process restarts.
type SQLSessionCacheRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewSQLSessionCacheRepository creates a new instance of the repository.
func NewSQLSessionCacheRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLSessionCacheRepository {
	return &SQLSessionCacheRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Get retrieves the unexpired session role entry. Missing, expired, or
// corrupt rows return (nil, nil).
func (r *SQLSessionCacheRepository) Get(ctx context.Context, sessionID string) (*roles.Profile, error) {
	const query = `
		SELECT cache_value, expires_at
		FROM user_session_cache
		WHERE session_id = ?
		  AND cache_key = ?
		  AND expires_at > ?
		LIMIT 1`

	start := r.now()
	row := r.db.QueryRowContext(ctx, query, sessionID, cacheKeyRoleDetection, start.UTC())

	var (
		cacheValue   string
		expiresAtStr string
	)
	if err := row.Scan(&cacheValue, &expiresAtStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load session cache entry", "error", err.Error(), "sessionId", sessionID)
		return nil, err
	}

	var value sessionCacheValue
	if err := json.Unmarshal([]byte(cacheValue), &value); err != nil {
		r.logger.Database().Warn("Corrupt session cache entry skipped", "sessionId", sessionID, "error", err.Error())
		return nil, nil
	}

	profile := &roles.Profile{
		SessionID:      sessionID,
		Role:           roles.ParseRole(value.Role),
		Confidence:     value.Confidence,
		Method:         value.Method,
		BehavioralData: value.BehavioralData,
	}
	if profile.BehavioralData == nil {
		profile.BehavioralData = make(map[string]interface{})
	}
	if t, err := parseTimestamp(expiresAtStr); err == nil {
		profile.ExpiresAt = &t
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration)
	return profile, nil
}

// Put upserts the session role entry, keyed on (session_id, cache_key).
func (r *SQLSessionCacheRepository) Put(ctx context.Context, sessionID, identityID string, profile *roles.Profile, ttl time.Duration) error {
	const query = `
		INSERT INTO user_session_cache (session_id, user_id, cache_key, cache_value, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, cache_key) DO UPDATE SET
			user_id = excluded.user_id,
			cache_value = excluded.cache_value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`

	start := r.now()

	value := sessionCacheValue{
		Role:           string(profile.Role),
		Confidence:     profile.Confidence,
		Method:         profile.Method,
		BehavioralData: profile.BehavioralData,
	}
	cacheValue, err := json.Marshal(value)
	if err != nil {
		r.logger.Database().Error("Failed to marshal session cache value", "error", err.Error(), "sessionId", sessionID)
		return err
	}

	expiresAt := start.Add(ttl).UTC()
	if profile.ExpiresAt != nil {
		expiresAt = profile.ExpiresAt.UTC()
	}

	_, err = r.db.ExecContext(ctx, query,
		sessionID,
		nullableID(identityID),
		cacheKeyRoleDetection,
		string(cacheValue),
		expiresAt,
		start.UTC(),
	)
	if err != nil {
		r.logger.Database().Error("Session cache upsert failed", "error", err.Error(), "sessionId", sessionID)
		return err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration)
	return nil
}

// Delete removes the session role entry.
func (r *SQLSessionCacheRepository) Delete(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM user_session_cache WHERE session_id = ? AND cache_key = ?`

	_, err := r.db.ExecContext(ctx, query, sessionID, cacheKeyRoleDetection)
	if err != nil {
		r.logger.Database().Error("Session cache delete failed", "error", err.Error(), "sessionId", sessionID)
		return err
	}
	return nil
}

// PurgeExpired deletes entries past their expiry and returns the number
// of rows removed.
func (r *SQLSessionCacheRepository) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM user_session_cache WHERE expires_at <= ?`

	result, err := r.db.ExecContext(ctx, query, r.now().UTC())
	if err != nil {
		r.logger.Database().Error("Session cache purge failed", "error", err.Error())
		return 0, err
	}

	removed, _ := result.RowsAffected()
	return removed, nil
}

func nullableID(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
