package service

import (
	"context"

	"github.com/popeskul/evolution-gateway/evolution"
	"github.com/popeskul/evolution-gateway/internal/api"
	"github.com/popeskul/evolution-gateway/internal/models"
	"github.com/popeskul/evolution-gateway/webhook"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_service.go -package=mocks

// Sender delivers a message upstream. *evolution.Client implements it.
type Sender interface {
	Send(ctx context.Context, msg evolution.Message) (*evolution.Response, error)
}

type MessageService interface {
	// SendMessage records msg and, unless schedule is set, sends it at once.
	// The returned result carries the stored record even when sending failed.
	SendMessage(ctx context.Context, msg evolution.Message, schedule bool) (*SendResult, error)
	SendPendingMessages(ctx context.Context) error
	ListMessages(ctx context.Context, status *models.MessageStatus, page, limit int) (*api.MessageList, error)
	GetCircuitBreakerStatus() (state string, requests uint32, failures uint32)
}

type EventService interface {
	webhook.Sink
	ListEvents(ctx context.Context, kind *string, page, limit int) (*api.EventList, error)
	// RegisterHandlers attaches the gateway's own event handlers to r.
	RegisterHandlers(r *webhook.Router)
}

type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}

type HealthService interface {
	GetHealth(ctx context.Context) *HealthStatus
}
