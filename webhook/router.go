package webhook

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, evt Event) error

// Router dispatches events to the handlers registered for their kind.
// Handler errors and panics are logged and never reach the caller.
type Router struct {
	mu       sync.RWMutex
	handlers map[Kind][]HandlerFunc
	catchAll []HandlerFunc
	logger   *zap.Logger
}

// NewRouter creates an empty Router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: make(map[Kind][]HandlerFunc),
		logger:   logger,
	}
}

// On registers fn for events of kind. Handlers run in registration order.
func (r *Router) On(kind Kind, fn HandlerFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = append(r.handlers[kind], fn)
}

// OnAny registers fn for every event, after the kind-specific handlers.
func (r *Router) OnAny(fn HandlerFunc) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catchAll = append(r.catchAll, fn)
}

// Dispatch runs the handlers for evt and returns how many of them
// completed without error.
func (r *Router) Dispatch(ctx context.Context, evt Event) int {
	r.mu.RLock()
	fns := make([]HandlerFunc, 0, len(r.handlers[evt.Kind])+len(r.catchAll))
	fns = append(fns, r.handlers[evt.Kind]...)
	fns = append(fns, r.catchAll...)
	r.mu.RUnlock()

	ok := 0
	for _, fn := range fns {
		if err := r.run(ctx, fn, evt); err != nil {
			r.logger.Error("Webhook handler failed",
				zap.String("kind", string(evt.Kind)),
				zap.String("event", evt.Name),
				zap.String("message_id", evt.MessageID),
				zap.Error(err),
			)
			continue
		}
		ok++
	}
	return ok
}

func (r *Router) run(ctx context.Context, fn HandlerFunc, evt Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return fn(ctx, evt)
}
