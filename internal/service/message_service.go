package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/popeskul/evolution-gateway/evolution"
	"github.com/popeskul/evolution-gateway/internal/api"
	"github.com/popeskul/evolution-gateway/internal/cache"
	"github.com/popeskul/evolution-gateway/internal/config"
	"github.com/popeskul/evolution-gateway/internal/models"
	"github.com/popeskul/evolution-gateway/internal/repository"
)

type messageService struct {
	cfg            *config.Config
	repo           repository.Repository
	cache          cache.Cache
	sender         Sender
	logger         *zap.Logger
	circuitBreaker *CircuitBreaker
}

func NewMessageService(
	cfg *config.Config,
	repo repository.Repository,
	cache cache.Cache,
	sender Sender,
	logger *zap.Logger,
) MessageService {
	return &messageService{
		cfg:            cfg,
		repo:           repo,
		cache:          cache,
		sender:         sender,
		logger:         logger,
		circuitBreaker: NewCircuitBreaker(&cfg.CircuitBreaker, logger),
	}
}

// SendMessage stores msg and delivers it. With schedule set it is stored as
// pending for the dispatcher instead.
func (s *messageService) SendMessage(ctx context.Context, msg evolution.Message, schedule bool) (*SendResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	payload, err := evolution.MarshalMessage(msg)
	if err != nil {
		return nil, err
	}

	record := &models.OutboundMessage{
		CorrelationID: uuid.New(),
		Kind:          string(msg.Kind()),
		Recipient:     msg.Recipient(),
		Payload:       payload,
		Status:        models.MessageStatusSending,
	}
	if schedule {
		record.Status = models.MessageStatusPending
	}
	if err := s.repo.Message().CreateMessage(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	result := &SendResult{Message: record}
	if schedule {
		s.logger.Info("Message scheduled",
			zap.Int64("messageID", record.ID),
			zap.String("correlationID", record.CorrelationID.String()),
			zap.String("kind", record.Kind))
		return result, nil
	}

	resp, err := s.deliver(ctx, record, msg)
	result.Response = resp
	return result, err
}

// SendPendingMessages delivers one batch of pending messages.
func (s *messageService) SendPendingMessages(ctx context.Context) error {
	s.logger.Info("Starting to send pending messages")

	messages, err := s.repo.Message().ClaimPendingMessages(ctx, s.cfg.Scheduler.BatchSize)
	if err != nil {
		s.logger.Error("Failed to claim pending messages", zap.Error(err))
		return fmt.Errorf("failed to get pending messages: %w", err)
	}

	if len(messages) == 0 {
		s.logger.Info("No pending messages to send")
		return nil
	}

	s.logger.Info("Found pending messages", zap.Int("count", len(messages)))

	sent, deferred := 0, 0
	for i, record := range messages {
		if err := ctx.Err(); err != nil {
			s.release(ctx, messages[i:])
			return err
		}
		// Left pending for a later tick instead of failing the whole batch.
		if s.circuitBreaker.IsOpen() {
			deferred = len(messages) - i
			s.logger.Warn("Circuit breaker is open, deferring remaining messages", zap.Int("deferred", deferred))
			s.release(ctx, messages[i:])
			break
		}

		msg, err := evolution.UnmarshalMessage(record.Payload)
		if err != nil {
			s.markFailed(ctx, record, err)
			continue
		}

		if _, err := s.deliver(ctx, record, msg); err == nil {
			sent++
		}
	}

	s.logger.Info("Pending messages processed",
		zap.Int("sent", sent),
		zap.Int("failed", len(messages)-sent-deferred),
		zap.Int("deferred", deferred))

	return nil
}

// release hands claimed but unattempted messages back to the dispatcher.
func (s *messageService) release(ctx context.Context, records []*models.OutboundMessage) {
	ids := make([]int64, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}

	if err := s.repo.Message().ReleaseMessages(context.WithoutCancel(ctx), ids); err != nil {
		s.logger.Error("Failed to release claimed messages",
			zap.Int64s("messageIDs", ids),
			zap.Error(err))
		return
	}

	for _, record := range records {
		record.Status = models.MessageStatusPending
	}
}

// deliver sends msg through the circuit breaker and records the outcome on
// record. The outcome is written even when ctx ends mid-send, so a message
// never goes back to the dispatcher after an attempt.
func (s *messageService) deliver(ctx context.Context, record *models.OutboundMessage, msg evolution.Message) (*evolution.Response, error) {
	var resp *evolution.Response
	err := s.circuitBreaker.Execute(ctx, func() error {
		var sendErr error
		resp, sendErr = s.sender.Send(ctx, msg)
		return sendErr
	})
	if err != nil {
		s.markFailed(ctx, record, err)
		return nil, err
	}

	outcomeCtx := context.WithoutCancel(ctx)

	var messageID *string
	if id := resp.MessageID(); id != "" {
		messageID = &id
	}

	if err := s.repo.Message().UpdateMessageStatus(outcomeCtx, record.ID, models.MessageStatusSent, messageID, nil); err != nil {
		s.logger.Error("Failed to update message status",
			zap.Int64("messageID", record.ID),
			zap.Error(err))
		return resp, fmt.Errorf("failed to update message status: %w", err)
	}

	now := time.Now().UTC()
	record.Status = models.MessageStatusSent
	record.Attempts++
	record.SentAt.Time, record.SentAt.Valid = now, true
	record.Error.Valid = false
	if messageID != nil {
		record.MessageID.String, record.MessageID.Valid = *messageID, true

		ttl := time.Duration(s.cfg.Redis.SentTTL) * time.Second
		if err := s.cache.RememberSent(outcomeCtx, *messageID, record.ID, ttl); err != nil {
			s.logger.Warn("Failed to cache message ID in Redis",
				zap.String("externalMessageID", *messageID),
				zap.Error(err))
		}
	}

	s.logger.Info("Message sent successfully",
		zap.Int64("messageID", record.ID),
		zap.String("externalMessageID", record.MessageID.String),
		zap.String("kind", record.Kind),
		zap.String("circuitBreakerState", s.circuitBreaker.GetState()))

	return resp, nil
}

func (s *messageService) markFailed(ctx context.Context, record *models.OutboundMessage, cause error) {
	errMsg := cause.Error()
	if err := s.repo.Message().UpdateMessageStatus(context.WithoutCancel(ctx), record.ID, models.MessageStatusFailed, nil, &errMsg); err != nil {
		s.logger.Error("Failed to update message status",
			zap.Int64("messageID", record.ID),
			zap.Error(err))
	}

	record.Status = models.MessageStatusFailed
	record.Attempts++
	record.Error.String, record.Error.Valid = errMsg, true

	requests, failures := s.circuitBreaker.GetCounts()
	s.logger.Error("Failed to send message",
		zap.Int64("messageID", record.ID),
		zap.Int("upstreamStatus", evolution.StatusCode(cause)),
		zap.Error(cause),
		zap.String("circuitBreakerState", s.circuitBreaker.GetState()),
		zap.Uint32("totalRequests", requests),
		zap.Uint32("totalFailures", failures))
}

// ListMessages returns one page of the outbound log, newest first.
func (s *messageService) ListMessages(ctx context.Context, status *models.MessageStatus, page, limit int) (*api.MessageList, error) {
	page, limit, offset := normalizePage(page, limit)

	messages, err := s.repo.Message().ListMessages(ctx, status, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	total, err := s.repo.Message().CountMessages(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	items := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		items = append(items, ToAPIMessage(msg))
	}

	return &api.MessageList{
		Messages: items,
		Pagination: api.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages(total, limit),
		},
	}, nil
}

func (s *messageService) GetCircuitBreakerStatus() (state string, requests uint32, failures uint32) {
	state = s.circuitBreaker.GetState()
	requests, failures = s.circuitBreaker.GetCounts()
	return
}

// ToAPIMessage converts a stored message into its API representation.
func ToAPIMessage(msg *models.OutboundMessage) api.Message {
	out := api.Message{
		Id:            msg.ID,
		CorrelationId: openapi_types.UUID(msg.CorrelationID),
		Type:          msg.Kind,
		Recipient:     msg.Recipient,
		Status:        msg.Status,
		Attempts:      msg.Attempts,
		CreatedAt:     msg.CreatedAt,
	}

	if len(msg.Payload) > 0 {
		var payload map[string]interface{}
		if err := json.Unmarshal(msg.Payload, &payload); err == nil {
			out.Payload = &payload
		}
	}

	if msg.SentAt.Valid {
		sentAt := msg.SentAt.Time
		out.SentAt = &sentAt
	}

	if msg.MessageID.Valid {
		id := msg.MessageID.String
		out.MessageId = &id
	}

	if msg.Error.Valid {
		errMsg := msg.Error.String
		out.Error = &errMsg
	}

	return out
}
