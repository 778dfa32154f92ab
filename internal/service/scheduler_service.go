package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/evolution-gateway/internal/config"
	"github.com/popeskul/evolution-gateway/internal/scheduler"
)

type schedulerService struct {
	scheduler      *scheduler.Scheduler
	messageService MessageService
	logger         *zap.Logger
}

func NewSchedulerService(
	cfg *config.Config,
	messageService MessageService,
	logger *zap.Logger,
) SchedulerService {
	interval := time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second

	svc := &schedulerService{
		messageService: messageService,
		logger:         logger,
	}

	svc.scheduler = scheduler.NewScheduler(logger, interval, svc.executeSendTask,
		scheduler.WithName("pending-messages"))

	return svc
}

func (s *schedulerService) Start() error {
	return s.scheduler.Start(context.Background())
}

func (s *schedulerService) Stop() error {
	return s.scheduler.Stop()
}

func (s *schedulerService) IsRunning() bool {
	return s.scheduler.IsRunning()
}

// executeSendTask drains one batch. A run cut short by its deadline picks up
// the remainder on the next tick.
func (s *schedulerService) executeSendTask(ctx context.Context) error {
	return s.messageService.SendPendingMessages(ctx)
}
