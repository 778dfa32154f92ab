package service

import (
	"go.uber.org/zap"

	"github.com/popeskul/evolution-gateway/internal/cache"
	"github.com/popeskul/evolution-gateway/internal/config"
	"github.com/popeskul/evolution-gateway/internal/repository"
)

type Service struct {
	Message   MessageService
	Event     EventService
	Scheduler SchedulerService
	Health    HealthService
}

func NewService(
	cfg *config.Config,
	repo repository.Repository,
	cache cache.Cache,
	sender Sender,
	logger *zap.Logger,
) *Service {
	messageService := NewMessageService(cfg, repo, cache, sender, logger)
	eventService := NewEventService(cfg, repo, cache, logger)
	schedulerService := NewSchedulerService(cfg, messageService, logger)
	healthService := NewHealthService(repo, cache, schedulerService, messageService)

	return &Service{
		Message:   messageService,
		Event:     eventService,
		Scheduler: schedulerService,
		Health:    healthService,
	}
}
