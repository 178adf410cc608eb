// Package behavior provides the concrete SQL-based implementation of the
// behavioral tracking repository.
package behavior

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/internal/infrastructure/persistence/database"
)

// SQLEventRepository is the SQL-based implementation of the behavior Repository.
type SQLEventRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLEventRepository creates a new instance of the repository.
func NewSQLEventRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLEventRepository {
	return &SQLEventRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores a single behavior event.
func (r *SQLEventRepository) Append(ctx context.Context, event *behavior.Event) error {
	const query = `
		INSERT INTO user_behavioral_tracking (id, user_id, session_id, behavior_type, behavior_data, weight, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		r.logger.Database().Error("Failed to marshal event payload", "error", err.Error(), "eventId", event.ID)
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		nullable(event.IdentityID),
		nullable(event.SessionID),
		string(event.Type),
		string(payloadJSON),
		event.Weight,
		event.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Database().Error("Behavior event insert failed", "error", err.Error(), "eventId", event.ID)
		return err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration)
	return nil
}

// Recent returns the newest events for an actor within the recency
// window, newest first, up to limit. Rows with corrupt payloads are
// skipped rather than failing the whole load.
func (r *SQLEventRepository) Recent(ctx context.Context, identityID, sessionID string, since time.Time, limit int) ([]*behavior.Event, error) {
	const query = `
		SELECT id, user_id, session_id, behavior_type, behavior_data, weight, timestamp
		FROM user_behavioral_tracking
		WHERE (user_id = ? OR session_id = ?)
		  AND timestamp > ?
		ORDER BY timestamp DESC
		LIMIT ?`

	start := time.Now()
	r.logger.Database().Debug("Loading recent behavior events", "identityId", identityID, "sessionId", sessionID)

	rows, err := r.db.QueryContext(ctx, query, identityID, sessionID, since.UTC(), limit)
	if err != nil {
		r.logger.Database().Error("Failed to load behavior events", "error", err.Error(), "identityId", identityID)
		return nil, err
	}
	defer rows.Close()

	var events []*behavior.Event
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			r.logger.Database().Warn("Skipping unreadable behavior event row", "error", err.Error())
			continue
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	database.CheckAndLogSlowQuery(r.logger, query, duration)
	return events, nil
}

// PurgeBefore deletes events older than the cutoff and returns the
// number of rows removed.
func (r *SQLEventRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM user_behavioral_tracking WHERE timestamp < ?`

	start := time.Now()
	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		r.logger.Database().Error("Behavior event purge failed", "error", err.Error())
		return 0, err
	}

	removed, _ := result.RowsAffected()
	if removed > 0 {
		r.logger.Database().Info("Purged stale behavior events", "removed", removed, "duration", time.Since(start))
	}
	return removed, nil
}

func (r *SQLEventRepository) scanEvent(rows *sql.Rows) (*behavior.Event, error) {
	var (
		event        behavior.Event
		identityID   sql.NullString
		sessionID    sql.NullString
		eventType    string
		payloadJSON  sql.NullString
		timestampStr string
	)

	err := rows.Scan(&event.ID, &identityID, &sessionID, &eventType, &payloadJSON, &event.Weight, &timestampStr)
	if err != nil {
		return nil, err
	}

	event.IdentityID = identityID.String
	event.SessionID = sessionID.String
	event.Type = behavior.EventType(eventType)

	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &event.Payload); err != nil {
			return nil, err
		}
	}

	event.CreatedAt, err = parseTimestamp(timestampStr)
	if err != nil {
		return nil, err
	}

	return &event, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
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
