package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	cachemocks "github.com/popeskul/evolution-gateway/internal/cache/mocks"
	"github.com/popeskul/evolution-gateway/internal/models"
	"github.com/popeskul/evolution-gateway/internal/repository/mocks"
	"github.com/popeskul/evolution-gateway/internal/service"
	"github.com/popeskul/evolution-gateway/webhook"
)

type eventDeps struct {
	repo      *mocks.MockRepository
	eventRepo *mocks.MockEventRepository
	cache     *cachemocks.MockCache
}

func newEventService(t *testing.T, logger *zap.Logger) (service.EventService, eventDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)

	deps := eventDeps{
		repo:      mocks.NewMockRepository(ctrl),
		eventRepo: mocks.NewMockEventRepository(ctrl),
		cache:     cachemocks.NewMockCache(ctrl),
	}
	deps.repo.EXPECT().Event().Return(deps.eventRepo).AnyTimes()

	if logger == nil {
		logger = zap.NewNop()
	}
	return service.NewEventService(testConfig(), deps.repo, deps.cache, logger), deps
}

func upsertEvent() webhook.Event {
	return webhook.Event{
		Kind:      webhook.KindMessageUpsert,
		Name:      "messages.upsert",
		Instance:  "sales",
		Sender:    "5511999887766",
		MessageID: "ABC",
		DedupeKey: "ABC",
		Data: map[string]any{
			"key":     map[string]any{"id": "ABC", "remoteJid": "5511999887766@s.whatsapp.net"},
			"message": map[string]any{"conversation": "hi"},
		},
	}
}

func TestEventService_Accept(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(eventDeps)
		wantDuplicate bool
		wantErr       bool
	}{
		{
			name: "new delivery is stored",
			setupMocks: func(d eventDeps) {
				d.cache.EXPECT().Claim(gomock.Any(), "ABC", time.Hour).Return(true, nil)
				d.eventRepo.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, evt *models.WebhookEvent) (bool, error) {
						assert.Equal(t, "ABC", evt.DedupeKey)
						assert.Equal(t, "messages.upsert", evt.Kind)
						assert.Equal(t, "messages.upsert", evt.EventName)
						assert.Equal(t, "sales", evt.Instance.String)
						assert.Equal(t, "5511999887766", evt.Sender.String)
						assert.Equal(t, "ABC", evt.MessageID.String)
						assert.JSONEq(t, `{"key":{"id":"ABC","remoteJid":"5511999887766@s.whatsapp.net"},"message":{"conversation":"hi"}}`, string(evt.Data))
						evt.ID = 1
						return true, nil
					})
			},
		},
		{
			name: "claimed key is a duplicate",
			setupMocks: func(d eventDeps) {
				d.cache.EXPECT().Claim(gomock.Any(), "ABC", time.Hour).Return(false, nil)
			},
			wantDuplicate: true,
		},
		{
			name: "stored key is a duplicate when redis is down",
			setupMocks: func(d eventDeps) {
				d.cache.EXPECT().Claim(gomock.Any(), "ABC", time.Hour).Return(false, errors.New("connection refused"))
				d.eventRepo.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).Return(false, nil)
			},
			wantDuplicate: true,
		},
		{
			name: "storage failure releases the claim",
			setupMocks: func(d eventDeps) {
				d.cache.EXPECT().Claim(gomock.Any(), "ABC", time.Hour).Return(true, nil)
				d.eventRepo.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).Return(false, errors.New("database is closed"))
				d.cache.EXPECT().Release(gomock.Any(), "ABC").Return(nil)
			},
			wantErr: true,
		},
		{
			name: "storage failure without a claim releases nothing",
			setupMocks: func(d eventDeps) {
				d.cache.EXPECT().Claim(gomock.Any(), "ABC", time.Hour).Return(false, errors.New("connection refused"))
				d.eventRepo.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).Return(false, errors.New("database is closed"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newEventService(t, nil)
			tt.setupMocks(deps)

			duplicate, err := svc.Accept(context.Background(), upsertEvent())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to store webhook event")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDuplicate, duplicate)
		})
	}
}

func TestEventService_Accept_EmptyData(t *testing.T) {
	svc, deps := newEventService(t, nil)

	deps.cache.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	deps.eventRepo.EXPECT().CreateEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evt *models.WebhookEvent) (bool, error) {
			assert.Equal(t, "{}", string(evt.Data))
			assert.False(t, evt.Sender.Valid)
			assert.False(t, evt.Instance.Valid)
			return true, nil
		})

	duplicate, err := svc.Accept(context.Background(), webhook.Event{Kind: webhook.KindUnknown, DedupeKey: "d41d8cd9"})
	require.NoError(t, err)
	assert.False(t, duplicate)
}

func TestEventService_RegisterHandlers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	svc, deps := newEventService(t, zap.New(core))

	router := webhook.NewRouter(zap.NewNop())
	svc.RegisterHandlers(router)

	deps.cache.EXPECT().LookupSent(gomock.Any(), "BAE5F0").Return(int64(7), true, nil)
	deps.cache.EXPECT().LookupSent(gomock.Any(), "UNKNOWN").Return(int64(0), false, nil)

	ctx := context.Background()
	assert.Equal(t, 1, router.Dispatch(ctx, upsertEvent()))
	assert.Equal(t, 1, router.Dispatch(ctx, webhook.Event{
		Kind:      webhook.KindMessageUpdate,
		MessageID: "BAE5F0",
		Data:      map[string]any{"status": "READ"},
	}))
	assert.Equal(t, 1, router.Dispatch(ctx, webhook.Event{Kind: webhook.KindMessageUpdate, MessageID: "UNKNOWN"}))
	assert.Equal(t, 1, router.Dispatch(ctx, webhook.Event{
		Kind:     webhook.KindConnectionUpdate,
		Instance: "sales",
		Data:     map[string]any{"state": "open"},
	}))
	assert.Equal(t, 0, router.Dispatch(ctx, webhook.Event{Kind: webhook.KindPresenceUpdate}))

	assert.Equal(t, 1, logs.FilterMessage("Inbound message received").Len())
	assert.Equal(t, 1, logs.FilterMessage("Instance connection changed").Len())

	updates := logs.FilterMessage("Delivery status updated").All()
	require.Len(t, updates, 1)
	fields := updates[0].ContextMap()
	assert.Equal(t, int64(7), fields["messageID"])
	assert.Equal(t, "READ", fields["status"])
}

func TestEventService_ListEvents(t *testing.T) {
	svc, deps := newEventService(t, nil)
	kind := "messages.upsert"

	stored := []*models.WebhookEvent{{
		ID:         2,
		DedupeKey:  "ABC",
		Kind:       kind,
		EventName:  "MESSAGES_UPSERT",
		Data:       []byte(`{"key":{"id":"ABC"}}`),
		ReceivedAt: time.Now().UTC(),
	}}
	stored[0].Sender.String, stored[0].Sender.Valid = "5511999887766", true

	deps.eventRepo.EXPECT().ListEvents(gomock.Any(), &kind, 10, 10).Return(stored, nil)
	deps.eventRepo.EXPECT().CountEvents(gomock.Any(), &kind).Return(int64(11), nil)

	list, err := svc.ListEvents(context.Background(), &kind, 2, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, list.Pagination.Page)
	assert.Equal(t, 2, list.Pagination.TotalPages)
	require.Len(t, list.Events, 1)

	evt := list.Events[0]
	assert.Equal(t, "MESSAGES_UPSERT", evt.Event)
	require.NotNil(t, evt.Sender)
	assert.Equal(t, "5511999887766", *evt.Sender)
	assert.Nil(t, evt.Instance)
	require.NotNil(t, evt.Data)
	assert.Contains(t, *evt.Data, "key")
}
