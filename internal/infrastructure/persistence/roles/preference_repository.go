// Package roles provides the concrete SQL-based implementation of the
// durable role preference repository.
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

// SQLPreferenceRepository is the SQL-based implementation of the PreferenceRepository.
type SQLPreferenceRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
	now    func() time.Time
}

// NewSQLPreferenceRepository creates a new instance of the repository.
func NewSQLPreferenceRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLPreferenceRepository {
	return &SQLPreferenceRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Get retrieves the active, unexpired role preference for an identity.
// A missing or expired row returns (nil, nil).
func (r *SQLPreferenceRepository) Get(ctx context.Context, identityID string) (*roles.Profile, error) {
	const query = `
		SELECT preferred_role, confidence_score, detection_method, behavioral_data, expires_at, updated_at
		FROM user_role_preferences
		WHERE user_id = ?
		  AND is_active = 1
		  AND (expires_at IS NULL OR expires_at > ?)
		LIMIT 1`

	start := r.now()
	r.logger.Database().Debug("Loading role preference", "identityId", identityID)

	row := r.db.QueryRowContext(ctx, query, identityID, start.UTC())
	profile, err := r.scanProfile(row, identityID)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("Role preference not found", "identityId", identityID)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load role preference", "error", err.Error(), "identityId", identityID)
		return nil, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration)
	return profile, nil
}

// Put upserts the role preference for an identity. The write replaces
// the full row, keyed on user_id, so repeated writes of the same
// profile converge on a single stored state.
func (r *SQLPreferenceRepository) Put(ctx context.Context, identityID string, profile *roles.Profile, ttl time.Duration) error {
	const query = `
		INSERT INTO user_role_preferences (user_id, preferred_role, confidence_score, detection_method, behavioral_data, is_active, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			preferred_role = excluded.preferred_role,
			confidence_score = excluded.confidence_score,
			detection_method = excluded.detection_method,
			behavioral_data = excluded.behavioral_data,
			is_active = 1,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`

	start := r.now()

	var behavioralJSON []byte
	if len(profile.BehavioralData) > 0 {
		var err error
		behavioralJSON, err = json.Marshal(profile.BehavioralData)
		if err != nil {
			r.logger.Database().Error("Failed to marshal behavioral data", "error", err.Error(), "identityId", identityID)
			behavioralJSON = nil
		}
	}

	var expiresAt interface{}
	if profile.ExpiresAt != nil {
		expiresAt = profile.ExpiresAt.UTC()
	} else if ttl > 0 {
		expiresAt = start.Add(ttl).UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		identityID,
		string(profile.Role),
		profile.Confidence,
		profile.Method,
		nullableString(behavioralJSON),
		expiresAt,
		start.UTC(),
	)
	if err != nil {
		r.logger.Database().Error("Role preference upsert failed", "error", err.Error(), "identityId", identityID)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Role preference upsert completed", "identityId", identityID, "role", profile.Role, "duration", duration)
	database.CheckAndLogSlowQuery(r.logger, query, duration)
	return nil
}

// Delete removes the stored preference for an identity.
func (r *SQLPreferenceRepository) Delete(ctx context.Context, identityID string) error {
	const query = `DELETE FROM user_role_preferences WHERE user_id = ?`

	start := r.now()
	_, err := r.db.ExecContext(ctx, query, identityID)
	if err != nil {
		r.logger.Database().Error("Role preference delete failed", "error", err.Error(), "identityId", identityID)
		return err
	}

	r.logger.Database().Info("Role preference deleted", "identityId", identityID, "duration", time.Since(start))
	return nil
}

// scanProfile scans a preference row into a domain profile. Corrupt
// behavioral data is dropped, not fatal.
func (r *SQLPreferenceRepository) scanProfile(row *sql.Row, identityID string) (*roles.Profile, error) {
	var (
		role           string
		confidence     float64
		method         string
		behavioralData sql.NullString
		expiresAtStr   sql.NullString
		updatedAtStr   string
	)

	err := row.Scan(&role, &confidence, &method, &behavioralData, &expiresAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	profile := &roles.Profile{
		IdentityID:     identityID,
		Role:           roles.ParseRole(role),
		Confidence:     confidence,
		Method:         method,
		BehavioralData: make(map[string]interface{}),
	}

	if behavioralData.Valid && behavioralData.String != "" {
		if err := json.Unmarshal([]byte(behavioralData.String), &profile.BehavioralData); err != nil {
			r.logger.Database().Warn("Corrupt behavioral data dropped", "identityId", identityID, "error", err.Error())
			profile.BehavioralData = make(map[string]interface{})
		}
	}

	if expiresAtStr.Valid {
		if t, err := parseTimestamp(expiresAtStr.String); err == nil {
			profile.ExpiresAt = &t
		}
	}

	if t, err := parseTimestamp(updatedAtStr); err == nil {
		profile.UpdatedAt = t
	}

	return profile, nil
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// parseTimestamp handles the timestamp formats sqlite and libsql emit.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999-07:00", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
