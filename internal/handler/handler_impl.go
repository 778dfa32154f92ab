// Package handler provides HTTP request handlers for the gateway.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/popeskul/evolution-gateway/evolution"
	"github.com/popeskul/evolution-gateway/internal/api"
	"github.com/popeskul/evolution-gateway/internal/middleware"
	"github.com/popeskul/evolution-gateway/internal/models"
	"github.com/popeskul/evolution-gateway/internal/scheduler"
	"github.com/popeskul/evolution-gateway/internal/service"
	"github.com/popeskul/evolution-gateway/webhook"
)

const maxRequestBytes = 1 << 20

const (
	errorCodeSchedulerAlreadyRunning = "SCHEDULER_ALREADY_RUNNING"
	errorCodeSchedulerNotRunning     = "SCHEDULER_NOT_RUNNING"
	errorCodeInvalidRequest          = "INVALID_REQUEST"
	errorCodeValidation              = "VALIDATION_ERROR"
	errorCodeUpstreamRejected        = "UPSTREAM_REJECTED"
	errorCodeUpstreamUnavailable     = "UPSTREAM_UNAVAILABLE"
)

const (
	errorMessageSchedulerAlreadyRunning  = "Scheduler is already running"
	errorMessageSchedulerNotRunning      = "Scheduler is not running"
	errorMessageFailedToStartScheduler   = "Failed to start scheduler"
	errorMessageFailedToStopScheduler    = "Failed to stop scheduler"
	errorMessageFailedToRetrieveMessages = "Failed to retrieve messages"
	errorMessageFailedToRetrieveEvents   = "Failed to retrieve webhook events"
	errorMessageFailedToSendMessage      = "Failed to send message"
	errorMessageInvalidBody              = "Request body must be a JSON message envelope"
	errorMessageInvalidStatus            = "status must be one of pending, sending, sent, failed"
)

const (
	schedulerMessageStarted = "Scheduler started successfully"
	schedulerMessageStopped = "Scheduler stopped successfully"
)

type Handler struct {
	service *service.Service
	webhook http.Handler
	logger  *zap.Logger
}

// NewHandler creates a new handler instance that implements api.ServerInterface.
// Webhook deliveries are served by webhookHandler.
func NewHandler(service *service.Service, webhookHandler http.Handler, logger *zap.Logger) api.ServerInterface {
	return &Handler{
		service: service,
		webhook: webhookHandler,
		logger:  logger,
	}
}

// SendMessage implements api.ServerInterface.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, errorMessageInvalidBody)
		return
	}

	var envelope api.MessageEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, errorMessageInvalidBody)
		return
	}

	msg, err := evolution.UnmarshalMessage(body)
	if err != nil {
		if errors.Is(err, evolution.ErrValidation) {
			h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, err.Error())
			return
		}
		h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, err.Error())
		return
	}

	schedule := envelope.Schedule != nil && *envelope.Schedule
	result, err := h.service.Message.SendMessage(r.Context(), msg, schedule)
	if err != nil {
		h.sendSendError(w, r, err)
		return
	}

	response := api.SendMessageResponse{
		Message: service.ToAPIMessage(result.Message),
	}
	if result.Response != nil && result.Response.Data != nil {
		upstream := map[string]interface{}(result.Response.Data)
		response.Upstream = &upstream
	}

	if schedule {
		render.Status(r, http.StatusAccepted)
	}
	render.JSON(w, r, response)
}

func (h *Handler) sendSendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, evolution.ErrValidation):
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, err.Error())
	case errors.Is(err, evolution.ErrRejected):
		h.sendError(w, r, http.StatusUnprocessableEntity, errorCodeUpstreamRejected, err.Error())
	case errors.Is(err, evolution.ErrRetriesExhausted),
		errors.Is(err, evolution.ErrTransient),
		errors.Is(err, service.ErrCircuitOpen):
		h.sendError(w, r, http.StatusBadGateway, errorCodeUpstreamUnavailable, err.Error())
	default:
		h.logger.Error("Failed to send message",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageFailedToSendMessage)
	}
}

// ListMessages implements api.ServerInterface.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request, params api.ListMessagesParams) {
	var status *models.MessageStatus
	if params.Status != nil {
		switch *params.Status {
		case models.MessageStatusPending, models.MessageStatusSending, models.MessageStatusSent, models.MessageStatusFailed:
			status = params.Status
		default:
			h.sendError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, errorMessageInvalidStatus)
			return
		}
	}

	result, err := h.service.Message.ListMessages(r.Context(), status, intOr(params.Page, 1), intOr(params.Limit, service.DefaultPageLimit))
	if err != nil {
		h.logger.Error("Failed to list messages",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageFailedToRetrieveMessages)
		return
	}

	render.JSON(w, r, result)
}

// ListEvents implements api.ServerInterface.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request, params api.ListEventsParams) {
	var kind *string
	if params.Kind != nil && *params.Kind != "" {
		k := string(webhook.ParseKind(*params.Kind))
		kind = &k
	}

	result, err := h.service.Event.ListEvents(r.Context(), kind, intOr(params.Page, 1), intOr(params.Limit, service.DefaultPageLimit))
	if err != nil {
		h.logger.Error("Failed to list webhook events",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageFailedToRetrieveEvents)
		return
	}

	render.JSON(w, r, result)
}

// ReceiveWebhook implements api.ServerInterface.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request, _ api.ReceiveWebhookParams) {
	h.webhook.ServeHTTP(w, r)
}

// StartScheduler implements api.ServerInterface.
func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	err := h.service.Scheduler.Start()
	if err != nil {
		if errors.Is(err, scheduler.ErrSchedulerAlreadyRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodeSchedulerAlreadyRunning, errorMessageSchedulerAlreadyRunning)
			return
		}

		h.logger.Error("Failed to start scheduler",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageFailedToStartScheduler)
		return
	}

	render.JSON(w, r, api.SchedulerResponse{
		Status:  api.SchedulerResponseStatusStarted,
		Message: schedulerMessageStarted,
	})
}

// StopScheduler implements api.ServerInterface.
func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	err := h.service.Scheduler.Stop()
	if err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			h.sendError(w, r, http.StatusConflict, errorCodeSchedulerNotRunning, errorMessageSchedulerNotRunning)
			return
		}

		h.logger.Error("Failed to stop scheduler",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.sendError(w, r, http.StatusInternalServerError, middleware.ErrorCodeInternal, errorMessageFailedToStopScheduler)
		return
	}

	render.JSON(w, r, api.SchedulerResponse{
		Status:  api.SchedulerResponseStatusStopped,
		Message: schedulerMessageStopped,
	})
}

// HealthCheck implements api.ServerInterface.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health.GetHealth(r.Context())

	response := api.HealthResponse{
		Status:    health.Status,
		Timestamp: time.Now(),
	}

	if health.SchedulerStatus != "" {
		status := health.SchedulerStatus
		response.SchedulerStatus = &status
	}

	if health.DatabaseStatus != "" {
		status := health.DatabaseStatus
		response.DatabaseStatus = &status
	}

	if health.RedisStatus != "" {
		status := health.RedisStatus
		response.RedisStatus = &status
	}

	if health.CircuitBreakerState != "" {
		state := health.CircuitBreakerState
		response.CircuitBreakerState = &state
	}

	// Degraded still answers 200 so the gateway stays in rotation.
	if health.Status == api.Unhealthy {
		render.Status(r, http.StatusServiceUnavailable)
	}

	render.JSON(w, r, response)
}

// WriteBadRequest renders a 400 in the API error format. It serves requests
// whose parameters fail to bind before reaching a Handler method.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeError(w, r, http.StatusBadRequest, errorCodeInvalidRequest, message)
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	writeError(w, r, statusCode, errorCode, message)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	now := time.Now()
	render.Status(r, statusCode)
	render.JSON(w, r, api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		Timestamp: &now,
	})
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
