// Package router dispatches resolved intents to their mirage handlers.
// The table is closed and built once at startup; handlers receive one
// uniform Request struct rather than intent-specific argument bags.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/wa-concierge/internal/models"
)

// Request is the single context struct every handler receives. Optional
// inputs are explicit: Location is nil unless the inbound message was a
// location share, Intent.Extracted carries the keys documented in models.
type Request struct {
	UserID   string
	Text     string
	Location *models.Coord
	Intent   models.IntentResult
}

// HandlerFunc processes one routed message. Handlers send their own
// replies; an error reaching the router means the generic apology path.
type HandlerFunc func(ctx context.Context, req Request) error

type Router struct {
	handlers map[string]HandlerFunc
	fallback HandlerFunc
	log      *slog.Logger
}

// New builds an empty dispatch table. The fallback handles any intent
// without a registered handler, so routing is total by construction.
func New(log *slog.Logger, fallback HandlerFunc) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		fallback: fallback,
		log:      log,
	}
}

// Register wires an intent to its handler. Registering the same intent
// twice is a wiring bug and panics at startup rather than at routing time.
func (r *Router) Register(intentName string, h HandlerFunc) {
	if _, dup := r.handlers[intentName]; dup {
		panic(fmt.Sprintf("router: duplicate handler for intent %q", intentName))
	}
	r.handlers[intentName] = h
}

// Dispatch routes to the primary intent's handler.
func (r *Router) Dispatch(ctx context.Context, req Request) error {
	h, ok := r.handlers[req.Intent.Intent]
	if !ok {
		r.log.Debug("no handler for intent, using fallback", "intent", req.Intent.Intent)
		h = r.fallback
	}
	if h == nil {
		return fmt.Errorf("router: no handler and no fallback for intent %q", req.Intent.Intent)
	}
	return h(ctx, req)
}
