package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/evolution-gateway/internal/api"
	"github.com/popeskul/evolution-gateway/internal/cache"
	"github.com/popeskul/evolution-gateway/internal/config"
	"github.com/popeskul/evolution-gateway/internal/models"
	"github.com/popeskul/evolution-gateway/internal/repository"
	"github.com/popeskul/evolution-gateway/webhook"
)

type eventService struct {
	cfg    *config.Config
	repo   repository.Repository
	cache  cache.Cache
	logger *zap.Logger
}

func NewEventService(
	cfg *config.Config,
	repo repository.Repository,
	cache cache.Cache,
	logger *zap.Logger,
) EventService {
	return &eventService{
		cfg:    cfg,
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Accept claims the delivery's dedupe key in Redis and persists the event.
// Redis being unavailable falls back to the unique key in the database.
func (s *eventService) Accept(ctx context.Context, evt webhook.Event) (bool, error) {
	ttl := time.Duration(s.cfg.Webhook.DedupeTTL) * time.Second

	claimed, err := s.cache.Claim(ctx, evt.DedupeKey, ttl)
	if err != nil {
		s.logger.Warn("Failed to claim webhook dedupe key",
			zap.String("dedupeKey", evt.DedupeKey),
			zap.Error(err))
	} else if !claimed {
		s.logger.Info("Duplicate webhook delivery",
			zap.String("dedupeKey", evt.DedupeKey),
			zap.String("kind", string(evt.Kind)))
		return true, nil
	}

	record, err := toEventRecord(evt)
	if err != nil {
		s.release(ctx, evt.DedupeKey, claimed)
		return false, err
	}

	created, err := s.repo.Event().CreateEvent(ctx, record)
	if err != nil {
		s.release(ctx, evt.DedupeKey, claimed)
		return false, fmt.Errorf("failed to store webhook event: %w", err)
	}
	if !created {
		return true, nil
	}

	s.logger.Info("Webhook event stored",
		zap.Int64("eventID", record.ID),
		zap.String("kind", record.Kind),
		zap.String("instance", evt.Instance),
		zap.String("sender", evt.Sender))

	return false, nil
}

func (s *eventService) release(ctx context.Context, key string, claimed bool) {
	if !claimed {
		return
	}
	if err := s.cache.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release webhook dedupe key",
			zap.String("dedupeKey", key),
			zap.Error(err))
	}
}

func toEventRecord(evt webhook.Event) (*models.WebhookEvent, error) {
	data := []byte("{}")
	if evt.Data != nil {
		var err error
		if data, err = json.Marshal(evt.Data); err != nil {
			return nil, fmt.Errorf("failed to encode webhook data: %w", err)
		}
	}

	return &models.WebhookEvent{
		DedupeKey: evt.DedupeKey,
		Kind:      string(evt.Kind),
		EventName: evt.Name,
		Instance:  nullString(evt.Instance),
		Sender:    nullString(evt.Sender),
		MessageID: nullString(evt.MessageID),
		Data:      data,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// RegisterHandlers logs inbound messages and correlates status updates with
// messages this gateway sent.
func (s *eventService) RegisterHandlers(r *webhook.Router) {
	r.On(webhook.KindMessageUpsert, s.logInbound)
	r.On(webhook.KindMessageUpdate, s.trackDelivery)
	r.On(webhook.KindConnectionUpdate, s.logConnection)
}

func (s *eventService) logInbound(_ context.Context, evt webhook.Event) error {
	if evt.FromMe {
		return nil
	}
	s.logger.Info("Inbound message received",
		zap.String("instance", evt.Instance),
		zap.String("sender", evt.Sender),
		zap.String("pushName", evt.PushName),
		zap.String("messageType", evt.MessageType),
		zap.String("externalMessageID", evt.MessageID))
	return nil
}

func (s *eventService) trackDelivery(ctx context.Context, evt webhook.Event) error {
	if evt.MessageID == "" {
		return nil
	}

	id, found, err := s.cache.LookupSent(ctx, evt.MessageID)
	if err != nil {
		return fmt.Errorf("failed to look up sent message: %w", err)
	}
	if !found {
		return nil
	}

	status, _ := evt.Data["status"].(string)
	s.logger.Info("Delivery status updated",
		zap.Int64("messageID", id),
		zap.String("externalMessageID", evt.MessageID),
		zap.String("status", status))
	return nil
}

func (s *eventService) logConnection(_ context.Context, evt webhook.Event) error {
	state, _ := evt.Data["state"].(string)
	s.logger.Info("Instance connection changed",
		zap.String("instance", evt.Instance),
		zap.String("state", state))
	return nil
}

// ListEvents returns one page of the inbound event log, newest first.
func (s *eventService) ListEvents(ctx context.Context, kind *string, page, limit int) (*api.EventList, error) {
	page, limit, offset := normalizePage(page, limit)

	events, err := s.repo.Event().ListEvents(ctx, kind, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}

	total, err := s.repo.Event().CountEvents(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	items := make([]api.WebhookEvent, 0, len(events))
	for _, evt := range events {
		items = append(items, toAPIEvent(evt))
	}

	return &api.EventList{
		Events: items,
		Pagination: api.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages(total, limit),
		},
	}, nil
}

func toAPIEvent(evt *models.WebhookEvent) api.WebhookEvent {
	out := api.WebhookEvent{
		Id:         evt.ID,
		DedupeKey:  evt.DedupeKey,
		Kind:       evt.Kind,
		Event:      evt.EventName,
		ReceivedAt: evt.ReceivedAt,
	}
	if evt.Instance.Valid {
		out.Instance = &evt.Instance.String
	}
	if evt.Sender.Valid {
		out.Sender = &evt.Sender.String
	}
	if evt.MessageID.Valid {
		out.MessageId = &evt.MessageID.String
	}
	if len(evt.Data) > 0 {
		var data map[string]interface{}
		if err := json.Unmarshal(evt.Data, &data); err == nil {
			out.Data = &data
		}
	}
	return out
}
