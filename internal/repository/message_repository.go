package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/popeskul/evolution-gateway/internal/models"
)

const messageColumns = `id, correlation_id, kind, recipient, payload, status, message_id, attempts, error, created_at, sent_at, updated_at`

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

// CreateMessage inserts msg and fills its ID and timestamps.
func (r *messageRepository) CreateMessage(ctx context.Context, msg *models.OutboundMessage) error {
	query := `
		INSERT INTO outbound_messages (correlation_id, kind, recipient, payload, status, message_id, attempts, error, created_at, sent_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Status == "" {
		msg.Status = models.MessageStatusPending
	}
	payload := []byte(msg.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	err := r.db.QueryRowxContext(ctx, query,
		msg.CorrelationID, msg.Kind, msg.Recipient, payload, msg.Status,
		msg.MessageID, msg.Attempts, msg.Error, msg.CreatedAt, msg.SentAt, msg.UpdatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// ClaimPendingMessages marks the oldest pending messages as sending and
// returns them oldest first. SKIP LOCKED keeps concurrent dispatchers from
// claiming the same row.
func (r *messageRepository) ClaimPendingMessages(ctx context.Context, limit int) ([]*models.OutboundMessage, error) {
	query := `
		UPDATE outbound_messages
		SET status = $2, updated_at = $3
		WHERE id IN (
			SELECT id
			FROM outbound_messages
			WHERE status = $1
			ORDER BY created_at ASC, id ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + messageColumns

	var messages []*models.OutboundMessage
	err := r.db.SelectContext(ctx, &messages, query,
		models.MessageStatusPending, models.MessageStatusSending, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending messages: %w", err)
	}

	// RETURNING does not follow the subquery order.
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].ID < messages[j].ID
	})

	return messages, nil
}

// ReleaseMessages puts claimed messages back to pending. Messages whose
// outcome was already recorded are left alone.
func (r *messageRepository) ReleaseMessages(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE outbound_messages
		SET status = $1, updated_at = $2
		WHERE id = ANY($3) AND status = $4`

	_, err := r.db.ExecContext(ctx, query,
		models.MessageStatusPending, time.Now().UTC(), pq.Array(ids), models.MessageStatusSending)
	if err != nil {
		return fmt.Errorf("failed to release messages: %w", err)
	}

	return nil
}

// UpdateMessageStatus records the outcome of a delivery attempt.
func (r *messageRepository) UpdateMessageStatus(ctx context.Context, id int64, status models.MessageStatus, messageID *string, errorMsg *string) error {
	query := `
		UPDATE outbound_messages
		SET status = $2,
		    message_id = COALESCE($3, message_id),
		    error = $4,
		    sent_at = $5,
		    attempts = attempts + 1,
		    updated_at = $6
		WHERE id = $1
	`

	now := time.Now().UTC()

	var sentAt sql.NullTime
	if status == models.MessageStatusSent {
		sentAt = sql.NullTime{
			Time:  now,
			Valid: true,
		}
	}

	var msgID sql.NullString
	if messageID != nil {
		msgID = sql.NullString{
			String: *messageID,
			Valid:  true,
		}
	}

	var errMsg sql.NullString
	if errorMsg != nil {
		errMsg = sql.NullString{
			String: *errorMsg,
			Valid:  true,
		}
	}

	res, err := r.db.ExecContext(ctx, query, id, status, msgID, errMsg, sentAt, now)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update message status: %w", ErrNotFound)
	}

	return nil
}

// ListMessages retrieves messages newest first, optionally filtered by status.
func (r *messageRepository) ListMessages(ctx context.Context, status *models.MessageStatus, offset, limit int) ([]*models.OutboundMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM outbound_messages
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	var messages []*models.OutboundMessage
	err := r.db.SelectContext(ctx, &messages, query, nullableStatus(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

// CountMessages returns the number of messages, optionally filtered by status.
func (r *messageRepository) CountMessages(ctx context.Context, status *models.MessageStatus) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM outbound_messages WHERE ($1::text IS NULL OR status = $1)`

	err := r.db.GetContext(ctx, &count, query, nullableStatus(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}

func nullableStatus(status *models.MessageStatus) sql.NullString {
	if status == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*status), Valid: true}
}
