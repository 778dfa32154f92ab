package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// WebhookEvent is a received webhook delivery, unique by DedupeKey.
type WebhookEvent struct {
	ID         int64           `db:"id" json:"id"`
	DedupeKey  string          `db:"dedupe_key" json:"dedupe_key"`
	Kind       string          `db:"kind" json:"kind"`
	EventName  string          `db:"event_name" json:"event"`
	Instance   sql.NullString  `db:"instance" json:"instance,omitempty"`
	Sender     sql.NullString  `db:"sender" json:"sender,omitempty"`
	MessageID  sql.NullString  `db:"message_id" json:"message_id,omitempty"`
	Data       json.RawMessage `db:"data" json:"data,omitempty"`
	ReceivedAt time.Time       `db:"received_at" json:"received_at"`
}
