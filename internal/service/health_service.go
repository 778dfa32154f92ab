package service

import (
	"context"
	"fmt"

	"github.com/popeskul/evolution-gateway/internal/api"
	"github.com/popeskul/evolution-gateway/internal/cache"
	"github.com/popeskul/evolution-gateway/internal/repository"
)

type healthService struct {
	repo             repository.Repository
	cache            cache.Cache
	schedulerService SchedulerService
	messageService   MessageService
}

func NewHealthService(
	repo repository.Repository,
	cache cache.Cache,
	schedulerService SchedulerService,
	messageService MessageService,
) HealthService {
	return &healthService{
		repo:             repo,
		cache:            cache,
		schedulerService: schedulerService,
		messageService:   messageService,
	}
}

func (s *healthService) GetHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:          api.Healthy,
		SchedulerStatus: StatusStopped,
		DatabaseStatus:  StatusConnected,
		RedisStatus:     StatusConnected,
	}

	if s.schedulerService.IsRunning() {
		status.SchedulerStatus = StatusRunning
	}
	if err := s.repo.Ping(ctx); err != nil {
		status.DatabaseStatus = StatusDisconnected
	}
	if err := s.cache.Ping(ctx); err != nil {
		status.RedisStatus = StatusDisconnected
	}

	state, requests, failures := s.messageService.GetCircuitBreakerStatus()
	status.CircuitBreakerState = state
	if requests > 0 {
		failureRate := float64(failures) / float64(requests) * 100
		status.CircuitBreakerStatus = fmt.Sprintf("Requests: %d, Failures: %d (%.1f%%)", requests, failures, failureRate)
	} else {
		status.CircuitBreakerStatus = "No requests yet"
	}

	// Without the database nothing is recorded; Redis only backs dedupe.
	switch {
	case status.DatabaseStatus != StatusConnected:
		status.Status = api.Unhealthy
	case status.RedisStatus != StatusConnected, state == "open":
		status.Status = api.Degraded
	}

	return status
}
