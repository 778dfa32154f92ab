package repository

import (
	"context"

	"github.com/popeskul/evolution-gateway/internal/models"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_repository.go -package=mocks

// Repository interface defines all repository operations.
type Repository interface {
	// Ping checks database connectivity
	Ping(ctx context.Context) error

	// Message returns outbound message repository
	Message() MessageRepository

	// Event returns webhook event repository
	Event() EventRepository
}

// MessageRepository stores outbound messages and their delivery outcome.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.OutboundMessage) error
	// ClaimPendingMessages moves up to limit of the oldest pending messages
	// to sending and returns them. Concurrent callers never share a row.
	ClaimPendingMessages(ctx context.Context, limit int) ([]*models.OutboundMessage, error)
	// ReleaseMessages returns claimed messages that were not attempted to
	// pending.
	ReleaseMessages(ctx context.Context, ids []int64) error
	UpdateMessageStatus(ctx context.Context, id int64, status models.MessageStatus, messageID *string, errorMsg *string) error
	ListMessages(ctx context.Context, status *models.MessageStatus, offset, limit int) ([]*models.OutboundMessage, error)
	CountMessages(ctx context.Context, status *models.MessageStatus) (int64, error)
}

// EventRepository stores received webhook events.
type EventRepository interface {
	// CreateEvent inserts evt unless its dedupe key is already stored, and
	// reports whether a row was inserted.
	CreateEvent(ctx context.Context, evt *models.WebhookEvent) (bool, error)
	ListEvents(ctx context.Context, kind *string, offset, limit int) ([]*models.WebhookEvent, error)
	CountEvents(ctx context.Context, kind *string) (int64, error)
}
