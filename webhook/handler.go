package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const (
	DefaultSignatureHeader = "X-Signature"
	DefaultMaxBodyBytes    = 1 << 20
)

// Response statuses returned by Handler.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// Sink receives every verified event before the router runs. A duplicate
// is acknowledged without dispatch; an error fails the delivery with 500 so
// the sender retries it.
type Sink interface {
	Accept(ctx context.Context, evt Event) (duplicate bool, err error)
}

// HandlerOptions configures Handler.
type HandlerOptions struct {
	// Secret enables signature verification when non-empty.
	Secret          string
	SignatureHeader string
	MaxBodyBytes    int64
	Sink            Sink
	Logger          *zap.Logger
}

// Handler is an http.Handler for webhook deliveries.
type Handler struct {
	router *Router
	opts   HandlerOptions
	logger *zap.Logger
}

// AcceptResponse is the body written for a processed delivery.
type AcceptResponse struct {
	Status string `json:"status"`
	Kind   Kind   `json:"kind"`
	ID     string `json:"id,omitempty"`
}

type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHandler creates a Handler dispatching to router.
func NewHandler(router *Router, opts HandlerOptions) *Handler {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = DefaultSignatureHeader
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if router == nil {
		router = NewRouter(logger)
	}
	return &Handler{router: router, opts: opts, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Webhook body exceeds the size limit")
			return
		}
		h.sendError(w, r, http.StatusBadRequest, "INVALID_BODY", "Failed to read webhook body")
		return
	}

	if h.opts.Secret != "" && !Verify(body, r.Header.Get(h.opts.SignatureHeader), h.opts.Secret) {
		h.logger.Warn("Rejected webhook with invalid signature", zap.String("remote_addr", r.RemoteAddr))
		h.sendError(w, r, http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature verification failed")
		return
	}

	evt, err := Parse(body)
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, "INVALID_PAYLOAD", err.Error())
		return
	}

	logger := h.logger.With(
		zap.String("kind", string(evt.Kind)),
		zap.String("event", evt.Name),
		zap.String("dedupe_key", evt.DedupeKey),
	)

	if h.opts.Sink != nil {
		duplicate, err := h.opts.Sink.Accept(r.Context(), evt)
		if err != nil {
			logger.Error("Failed to record webhook event", zap.Error(err))
			h.sendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record webhook event")
			return
		}
		if duplicate {
			logger.Info("Duplicate webhook delivery ignored")
			render.Status(r, http.StatusOK)
			render.JSON(w, r, AcceptResponse{Status: StatusDuplicate, Kind: evt.Kind, ID: evt.MessageID})
			return
		}
	}

	handled := h.router.Dispatch(r.Context(), evt)
	logger.Info("Webhook event processed", zap.Int("handlers_ok", handled))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, AcceptResponse{Status: StatusAccepted, Kind: evt.Kind, ID: evt.MessageID})
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: code, Message: message, Timestamp: time.Now()})
}
