package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/popeskul/evolution-gateway/internal/models"
)

const eventColumns = `id, dedupe_key, kind, event_name, instance, sender, message_id, data, received_at`

type eventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) EventRepository {
	return &eventRepository{
		db: db,
	}
}

// CreateEvent inserts evt; a stored dedupe key leaves the table unchanged.
func (r *eventRepository) CreateEvent(ctx context.Context, evt *models.WebhookEvent) (bool, error) {
	query := `
		INSERT INTO webhook_events (dedupe_key, kind, event_name, instance, sender, message_id, data, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dedupe_key) DO NOTHING
		RETURNING id`

	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	data := []byte(evt.Data)
	if len(data) == 0 {
		data = []byte("{}")
	}

	err := r.db.QueryRowxContext(ctx, query,
		evt.DedupeKey, evt.Kind, evt.EventName, evt.Instance, evt.Sender, evt.MessageID, data, evt.ReceivedAt,
	).Scan(&evt.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create webhook event: %w", err)
	}

	return true, nil
}

// ListEvents retrieves events newest first, optionally filtered by kind.
func (r *eventRepository) ListEvents(ctx context.Context, kind *string, offset, limit int) ([]*models.WebhookEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM webhook_events
		WHERE ($1::text IS NULL OR kind = $1)
		ORDER BY received_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	var events []*models.WebhookEvent
	err := r.db.SelectContext(ctx, &events, query, nullableString(kind), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}

	return events, nil
}

// CountEvents returns the number of events, optionally filtered by kind.
func (r *eventRepository) CountEvents(ctx context.Context, kind *string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM webhook_events WHERE ($1::text IS NULL OR kind = $1)`

	if err := r.db.GetContext(ctx, &count, query, nullableString(kind)); err != nil {
		return 0, fmt.Errorf("failed to count webhook events: %w", err)
	}

	return count, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
