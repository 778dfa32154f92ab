package service

import (
	"errors"

	"github.com/popeskul/evolution-gateway/evolution"
	"github.com/popeskul/evolution-gateway/internal/api"
	"github.com/popeskul/evolution-gateway/internal/models"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusRunning      = "running"
	StatusStopped      = "stopped"
)

// ErrCircuitOpen is returned while the breaker refuses upstream calls.
var ErrCircuitOpen = errors.New("service unavailable: circuit breaker is open")

type HealthStatus struct {
	Status               api.HealthResponseStatus `json:"status"`
	SchedulerStatus      string                   `json:"scheduler_status"`
	DatabaseStatus       string                   `json:"database_status"`
	RedisStatus          string                   `json:"redis_status"`
	CircuitBreakerStatus string                   `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  string                   `json:"circuit_breaker_state,omitempty"`
}

// SendResult is the stored record of a send plus the upstream answer, when
// there was one.
type SendResult struct {
	Message  *models.OutboundMessage
	Response *evolution.Response
}

// normalizePage clamps paging parameters and returns the row offset.
func normalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit, (page - 1) * limit
}

func totalPages(total int64, limit int) int {
	pages := int(total) / limit
	if int(total)%limit > 0 {
		pages++
	}
	return pages
}
