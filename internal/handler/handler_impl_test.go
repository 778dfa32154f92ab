package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/popeskul/evolution-gateway/evolution"
	"github.com/popeskul/evolution-gateway/internal/api"
	"github.com/popeskul/evolution-gateway/internal/handler"
	"github.com/popeskul/evolution-gateway/internal/middleware"
	"github.com/popeskul/evolution-gateway/internal/models"
	"github.com/popeskul/evolution-gateway/internal/scheduler"
	"github.com/popeskul/evolution-gateway/internal/service"
	"github.com/popeskul/evolution-gateway/internal/service/mocks"
	"github.com/popeskul/evolution-gateway/webhook"
)

func withRequestID(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithRequestID(req.Context(), "test-request-id"))
}

func decodeError(t *testing.T, body []byte) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func storedMessage(status models.MessageStatus) *models.OutboundMessage {
	now := time.Now().UTC()
	msg := &models.OutboundMessage{
		ID:            42,
		CorrelationID: uuid.New(),
		Kind:          "text",
		Recipient:     "5511999887766",
		Payload:       json.RawMessage(`{"type":"text","number":"5511999887766","text":"hi"}`),
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == models.MessageStatusSent {
		msg.MessageID.String, msg.MessageID.Valid = "BAE5F0", true
		msg.SentAt.Time, msg.SentAt.Valid = now, true
		msg.Attempts = 1
	}
	return msg
}

func TestHandler_SendMessage(t *testing.T) {
	const textBody = `{"type":"text","number":"5511999887766","text":"hi"}`

	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.MockMessageService)
		expectedStatus int
		expectedBody   func(*testing.T, []byte)
	}{
		{
			name: "sent immediately",
			body: textBody,
			setupMocks: func(m *mocks.MockMessageService) {
				m.EXPECT().SendMessage(gomock.Any(), gomock.Any(), false).
					DoAndReturn(func(_ context.Context, msg evolution.Message, _ bool) (*service.SendResult, error) {
						assert.Equal(t, evolution.KindText, msg.Kind())
						assert.Equal(t, "5511999887766", msg.Recipient())
						return &service.SendResult{
							Message: storedMessage(models.MessageStatusSent),
							Response: &evolution.Response{
								StatusCode: http.StatusCreated,
								Data:       map[string]any{"key": map[string]any{"id": "BAE5F0"}},
							},
						}, nil
					})
			},
			expectedStatus: http.StatusOK,
			expectedBody: func(t *testing.T, body []byte) {
				var resp api.SendMessageResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, api.Sent, resp.Message.Status)
				require.NotNil(t, resp.Message.MessageId)
				assert.Equal(t, "BAE5F0", *resp.Message.MessageId)
				require.NotNil(t, resp.Upstream)
				assert.Contains(t, *resp.Upstream, "key")
			},
		},
		{
			name: "scheduled for later",
			body: `{"type":"text","number":"5511999887766","text":"hi","schedule":true}`,
			setupMocks: func(m *mocks.MockMessageService) {
				m.EXPECT().SendMessage(gomock.Any(), gomock.Any(), true).
					Return(&service.SendResult{Message: storedMessage(models.MessageStatusPending)}, nil)
			},
			expectedStatus: http.StatusAccepted,
			expectedBody: func(t *testing.T, body []byte) {
				var resp api.SendMessageResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, api.Pending, resp.Message.Status)
				assert.Nil(t, resp.Upstream)
			},
		},
		{
			name:           "malformed json",
			body:           `{"type":`,
			setupMocks:     func(*mocks.MockMessageService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "INVALID_REQUEST", decodeError(t, body).Error)
			},
		},
		{
			name:           "invalid recipient",
			body:           `{"type":"text","number":"123","text":"hi"}`,
			setupMocks:     func(*mocks.MockMessageService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				assert.Equal(t, "VALIDATION_ERROR", resp.Error)
				assert.Contains(t, resp.Message, "number")
			},
		},
		{
			name:           "unsupported type",
			body:           `{"type":"contact","number":"5511999887766"}`,
			setupMocks:     func(*mocks.MockMessageService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "VALIDATION_ERROR", decodeError(t, body).Error)
			},
		},
		{
			name: "upstream rejected",
			body: textBody,
			setupMocks: func(m *mocks.MockMessageService) {
				m.EXPECT().SendMessage(gomock.Any(), gomock.Any(), false).
					Return(nil, &evolution.APIError{StatusCode: http.StatusBadRequest, Path: "/message/sendText/sales", Body: []byte(`{"error":"bad number"}`)})
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "UPSTREAM_REJECTED", decodeError(t, body).Error)
			},
		},
		{
			name: "retries exhausted",
			body: textBody,
			setupMocks: func(m *mocks.MockMessageService) {
				m.EXPECT().SendMessage(gomock.Any(), gomock.Any(), false).
					Return(nil, &evolution.RetryError{
						Attempts: 3,
						Last:     &evolution.APIError{StatusCode: http.StatusServiceUnavailable, Path: "/message/sendText/sales"},
					})
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "UPSTREAM_UNAVAILABLE", decodeError(t, body).Error)
			},
		},
		{
			name: "circuit open",
			body: textBody,
			setupMocks: func(m *mocks.MockMessageService) {
				m.EXPECT().SendMessage(gomock.Any(), gomock.Any(), false).Return(nil, service.ErrCircuitOpen)
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "UPSTREAM_UNAVAILABLE", decodeError(t, body).Error)
			},
		},
		{
			name: "storage failure",
			body: textBody,
			setupMocks: func(m *mocks.MockMessageService) {
				m.EXPECT().SendMessage(gomock.Any(), gomock.Any(), false).Return(nil, errors.New("database is closed"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				assert.Equal(t, middleware.ErrorCodeInternal, resp.Error)
				assert.Equal(t, "Failed to send message", resp.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockMessage := mocks.NewMockMessageService(ctrl)
			tt.setupMocks(mockMessage)

			h := handler.NewHandler(&service.Service{Message: mockMessage}, nil, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.SendMessage(w, withRequestID(req))

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.expectedBody(t, w.Body.Bytes())
		})
	}
}

func TestHandler_ListMessages(t *testing.T) {
	tests := []struct {
		name           string
		params         api.ListMessagesParams
		setupMocks     func(*mocks.MockMessageService)
		expectedStatus int
		expectedBody   func(*testing.T, []byte)
	}{
		{
			name:   "success with defaults",
			params: api.ListMessagesParams{},
			setupMocks: func(m *mocks.MockMessageService) {
				m.EXPECT().ListMessages(gomock.Any(), gomock.Nil(), 1, 20).Return(&api.MessageList{
					Messages:   []api.Message{service.ToAPIMessage(storedMessage(models.MessageStatusSent))},
					Pagination: api.Pagination{Page: 1, Limit: 20, Total: 1, TotalPages: 1},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: func(t *testing.T, body []byte) {
				var resp api.MessageList
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Len(t, resp.Messages, 1)
				assert.Equal(t, 1, resp.Pagination.Page)
				assert.Equal(t, 20, resp.Pagination.Limit)
			},
		},
		{
			name: "filtered by status",
			params: api.ListMessagesParams{
				Page:   ptr(2),
				Limit:  ptr(50),
				Status: ptr(api.Failed),
			},
			setupMocks: func(m *mocks.MockMessageService) {
				m.EXPECT().ListMessages(gomock.Any(), ptr(api.Failed), 2, 50).Return(&api.MessageList{
					Messages:   []api.Message{},
					Pagination: api.Pagination{Page: 2, Limit: 50},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: func(t *testing.T, body []byte) {
				var resp api.MessageList
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Empty(t, resp.Messages)
				assert.Equal(t, 2, resp.Pagination.Page)
			},
		},
		{
			name:           "unknown status",
			params:         api.ListMessagesParams{Status: ptr(api.MessageStatus("delivered"))},
			setupMocks:     func(*mocks.MockMessageService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "INVALID_REQUEST", decodeError(t, body).Error)
			},
		},
		{
			name:   "internal error",
			params: api.ListMessagesParams{},
			setupMocks: func(m *mocks.MockMessageService) {
				m.EXPECT().ListMessages(gomock.Any(), gomock.Nil(), 1, 20).Return(nil, errors.New("database error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				assert.Equal(t, middleware.ErrorCodeInternal, resp.Error)
				assert.Equal(t, "Failed to retrieve messages", resp.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockMessage := mocks.NewMockMessageService(ctrl)
			tt.setupMocks(mockMessage)

			h := handler.NewHandler(&service.Service{Message: mockMessage}, nil, zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
			w := httptest.NewRecorder()

			h.ListMessages(w, withRequestID(req), tt.params)

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.expectedBody(t, w.Body.Bytes())
		})
	}
}

func TestHandler_ListEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockEvent := mocks.NewMockEventService(ctrl)

	mockEvent.EXPECT().ListEvents(gomock.Any(), ptr("messages.upsert"), 1, 20).Return(&api.EventList{
		Events:     []api.WebhookEvent{{Id: 1, Kind: "messages.upsert", Event: "MESSAGES_UPSERT", DedupeKey: "ABC"}},
		Pagination: api.Pagination{Page: 1, Limit: 20, Total: 1, TotalPages: 1},
	}, nil)
	mockEvent.EXPECT().ListEvents(gomock.Any(), gomock.Nil(), 1, 20).Return(nil, errors.New("database error"))

	h := handler.NewHandler(&service.Service{Event: mockEvent}, nil, zap.NewNop())

	w := httptest.NewRecorder()
	h.ListEvents(w, withRequestID(httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)),
		api.ListEventsParams{Kind: ptr("MESSAGES_UPSERT")})

	require.Equal(t, http.StatusOK, w.Code)
	var list api.EventList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Events, 1)
	assert.Equal(t, "ABC", list.Events[0].DedupeKey)

	w = httptest.NewRecorder()
	h.ListEvents(w, withRequestID(httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)), api.ListEventsParams{})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to retrieve webhook events", decodeError(t, w.Body.Bytes()).Message)
}

func TestHandler_ReceiveWebhook(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockEvent := mocks.NewMockEventService(ctrl)

	mockEvent.EXPECT().Accept(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, evt webhook.Event) (bool, error) {
			assert.Equal(t, webhook.KindMessageUpsert, evt.Kind)
			assert.Equal(t, "messages.upsert:ABC", evt.DedupeKey)
			return false, nil
		})

	webhookHandler := webhook.NewHandler(webhook.NewRouter(zap.NewNop()), webhook.HandlerOptions{
		Sink:   mockEvent,
		Logger: zap.NewNop(),
	})
	h := handler.NewHandler(&service.Service{Event: mockEvent}, webhookHandler, zap.NewNop())

	body := `{"event":"messages.upsert","instance":"sales","data":{"key":{"remoteJid":"5511999887766@s.whatsapp.net","id":"ABC"}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.ReceiveWebhook(w, req, api.ReceiveWebhookParams{})

	require.Equal(t, http.StatusOK, w.Code)
	var ack api.WebhookAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, api.Accepted, ack.Status)
	assert.Equal(t, "messages.upsert", ack.Kind)
}

func TestHandler_StartScheduler(t *testing.T) {
	tests := []struct {
		name           string
		setupMocks     func(*mocks.MockSchedulerService)
		expectedStatus int
		expectedBody   func(*testing.T, []byte)
	}{
		{
			name: "success",
			setupMocks: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Start().Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: func(t *testing.T, body []byte) {
				var resp api.SchedulerResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, api.SchedulerResponseStatusStarted, resp.Status)
				assert.Equal(t, "Scheduler started successfully", resp.Message)
			},
		},
		{
			name: "scheduler already running",
			setupMocks: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Start().Return(scheduler.ErrSchedulerAlreadyRunning)
			},
			expectedStatus: http.StatusConflict,
			expectedBody: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				assert.Equal(t, "SCHEDULER_ALREADY_RUNNING", resp.Error)
				assert.Equal(t, "Scheduler is already running", resp.Message)
			},
		},
		{
			name: "internal error",
			setupMocks: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Start().Return(errors.New("internal error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				assert.Equal(t, middleware.ErrorCodeInternal, resp.Error)
				assert.Equal(t, "Failed to start scheduler", resp.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockScheduler := mocks.NewMockSchedulerService(ctrl)
			tt.setupMocks(mockScheduler)

			h := handler.NewHandler(&service.Service{Scheduler: mockScheduler}, nil, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/start", nil)
			w := httptest.NewRecorder()

			h.StartScheduler(w, withRequestID(req))

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.expectedBody(t, w.Body.Bytes())
		})
	}
}

func TestHandler_StopScheduler(t *testing.T) {
	tests := []struct {
		name           string
		setupMocks     func(*mocks.MockSchedulerService)
		expectedStatus int
		expectedBody   func(*testing.T, []byte)
	}{
		{
			name: "success",
			setupMocks: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Stop().Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: func(t *testing.T, body []byte) {
				var resp api.SchedulerResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, api.SchedulerResponseStatusStopped, resp.Status)
				assert.Equal(t, "Scheduler stopped successfully", resp.Message)
			},
		},
		{
			name: "scheduler not running",
			setupMocks: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Stop().Return(scheduler.ErrSchedulerNotRunning)
			},
			expectedStatus: http.StatusConflict,
			expectedBody: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				assert.Equal(t, "SCHEDULER_NOT_RUNNING", resp.Error)
				assert.Equal(t, "Scheduler is not running", resp.Message)
			},
		},
		{
			name: "internal error",
			setupMocks: func(m *mocks.MockSchedulerService) {
				m.EXPECT().Stop().Return(errors.New("internal error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				assert.Equal(t, middleware.ErrorCodeInternal, resp.Error)
				assert.Equal(t, "Failed to stop scheduler", resp.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockScheduler := mocks.NewMockSchedulerService(ctrl)
			tt.setupMocks(mockScheduler)

			h := handler.NewHandler(&service.Service{Scheduler: mockScheduler}, nil, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/stop", nil)
			w := httptest.NewRecorder()

			h.StopScheduler(w, withRequestID(req))

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.expectedBody(t, w.Body.Bytes())
		})
	}
}

func TestHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		health         *service.HealthStatus
		expectedStatus int
		expectedBody   func(*testing.T, []byte)
	}{
		{
			name: "healthy status",
			health: &service.HealthStatus{
				Status:               api.Healthy,
				SchedulerStatus:      service.StatusRunning,
				DatabaseStatus:       service.StatusConnected,
				RedisStatus:          service.StatusConnected,
				CircuitBreakerStatus: "No requests yet",
				CircuitBreakerState:  "closed",
			},
			expectedStatus: http.StatusOK,
			expectedBody: func(t *testing.T, body []byte) {
				var resp api.HealthResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, api.Healthy, resp.Status)
				assert.Equal(t, service.StatusRunning, *resp.SchedulerStatus)
				assert.Equal(t, service.StatusConnected, *resp.DatabaseStatus)
				assert.Equal(t, service.StatusConnected, *resp.RedisStatus)
				assert.Equal(t, "closed", *resp.CircuitBreakerState)
			},
		},
		{
			name: "unhealthy status",
			health: &service.HealthStatus{
				Status:              api.Unhealthy,
				SchedulerStatus:     service.StatusStopped,
				DatabaseStatus:      service.StatusDisconnected,
				RedisStatus:         service.StatusDisconnected,
				CircuitBreakerState: "open",
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody: func(t *testing.T, body []byte) {
				var resp api.HealthResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, api.Unhealthy, resp.Status)
			},
		},
		{
			name: "degraded status",
			health: &service.HealthStatus{
				Status:              api.Degraded,
				SchedulerStatus:     service.StatusRunning,
				DatabaseStatus:      service.StatusConnected,
				RedisStatus:         service.StatusConnected,
				CircuitBreakerState: "open",
			},
			expectedStatus: http.StatusOK,
			expectedBody: func(t *testing.T, body []byte) {
				var resp api.HealthResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, api.Degraded, resp.Status)
				assert.Equal(t, "open", *resp.CircuitBreakerState)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			mockHealth := mocks.NewMockHealthService(ctrl)
			mockHealth.EXPECT().GetHealth(gomock.Any()).Return(tt.health)

			h := handler.NewHandler(&service.Service{Health: mockHealth}, nil, zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()

			h.HealthCheck(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.expectedBody(t, w.Body.Bytes())
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	handler.WriteBadRequest(w, httptest.NewRequest(http.MethodGet, "/api/v1/messages?page=x", nil), "Invalid format for parameter page")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w.Body.Bytes())
	assert.Equal(t, "INVALID_REQUEST", resp.Error)
	assert.NotNil(t, resp.Timestamp)
}
