// Package models defines data structures used throughout the application.
package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/evolution-gateway/internal/api"
)

type MessageStatus = api.MessageStatus

// A message is pending until a sender claims it. Sending marks a claimed
// message whose outcome is not yet recorded; the dispatcher never picks it up.
const (
	MessageStatusPending = api.Pending
	MessageStatusSending = api.Sending
	MessageStatusSent    = api.Sent
	MessageStatusFailed  = api.Failed
)

// OutboundMessage is one message sent, or queued for sending, through the
// Evolution API. Payload holds the message envelope as submitted.
type OutboundMessage struct {
	ID            int64           `db:"id" json:"id"`
	CorrelationID uuid.UUID       `db:"correlation_id" json:"correlation_id"`
	Kind          string          `db:"kind" json:"kind"`
	Recipient     string          `db:"recipient" json:"recipient"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	Status        MessageStatus   `db:"status" json:"status"`
	MessageID     sql.NullString  `db:"message_id" json:"message_id,omitempty"`
	Attempts      int             `db:"attempts" json:"attempts"`
	Error         sql.NullString  `db:"error" json:"error,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	SentAt        sql.NullTime    `db:"sent_at" json:"sent_at,omitempty"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
