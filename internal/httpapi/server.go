// Package httpapi exposes the concierge's HTTP surface: the WhatsApp
// webhook (handshake + inbound messages), trip-tracking websockets, and
// the usual health and metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/wa-concierge/internal/alert"
	"github.com/example/wa-concierge/internal/breaker"
	"github.com/example/wa-concierge/internal/intent"
	"github.com/example/wa-concierge/internal/models"
	"github.com/example/wa-concierge/internal/observability"
	"github.com/example/wa-concierge/internal/router"
	"github.com/example/wa-concierge/internal/storage"
	"github.com/example/wa-concierge/internal/tasks"
	"github.com/example/wa-concierge/internal/track"
	"github.com/example/wa-concierge/internal/wa"
)

// CartCounter reports a user's current cart size for the conversation
// context. The shopping mirage implements it.
type CartCounter interface {
	Count(user string) int
}

// convTTL bounds how long a user's last routed intent stays relevant.
const convTTL = 24 * time.Hour

// Deps is everything the server needs; cmd/server does the wiring.
type Deps struct {
	Log         *slog.Logger
	Store       storage.Store
	Resolver    *intent.Resolver
	Router      *router.Router
	Sender      wa.Sender
	Alerts      *alert.Notifier
	Tasks       *tasks.Runner
	Track       *track.Hub
	Carts       CartCounter
	Conv        breaker.KV // conversation context store; Redis in production
	VerifyToken string
}

type Server struct {
	log         *slog.Logger
	store       storage.Store
	resolver    *intent.Resolver
	router      *router.Router
	sender      wa.Sender
	alerts      *alert.Notifier
	tasks       *tasks.Runner
	track       *track.Hub
	carts       CartCounter
	conv        breaker.KV
	verifyToken string

	mux *mux.Router
}

func NewServer(d Deps) *Server {
	s := &Server{
		log:         d.Log,
		store:       d.Store,
		resolver:    d.Resolver,
		router:      d.Router,
		sender:      d.Sender,
		alerts:      d.Alerts,
		tasks:       d.Tasks,
		track:       d.Track,
		carts:       d.Carts,
		conv:        d.Conv,
		verifyToken: d.VerifyToken,
		mux:         mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/webhook", s.handleVerify).Methods("GET")
	s.mux.HandleFunc("/webhook", s.handleWebhook).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/track/{trip_id}", s.handleTrack)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// handleVerify answers the Cloud API subscription handshake: echo
// hub.challenge when the verify token matches, 403 otherwise.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && s.verifyToken != "" && q.Get("hub.verify_token") == s.verifyToken {
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	http.Error(w, "verification failed", http.StatusForbidden)
}

// handleWebhook acknowledges the gateway immediately and hands each
// inbound message to the background runner. The gateway retries on
// anything but a fast 200, so resolution work never holds the response.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload wa.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	for _, in := range payload.Messages() {
		s.background("webhook.message", func(ctx context.Context) error {
			return s.processMessage(ctx, in)
		})
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) processMessage(ctx context.Context, in wa.Inbound) error {
	observability.WebhookMessages.WithLabelValues(in.Type).Inc()
	user := wa.NormalizeSender(in.From)

	if s.store != nil {
		msg := models.ChatMessage{
			ID:        uuid.NewString(),
			UserID:    user,
			Direction: "in",
			Body:      in.Text,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.SaveMessage(ctx, &msg); err != nil {
			s.log.Warn("chat history write failed", "user", user, "error", err)
		}
	}

	if s.handleOperator(ctx, user, in.Text) {
		return nil
	}

	// A location share is the second half of a taxi booking, not a
	// classifiable utterance: it carries no text, so the keyword parser
	// can never recover the intent. Route it straight to the intake.
	primary := models.IntentResult{Intent: intent.IntentTaxi, Confidence: 1}
	if in.Location == nil {
		conv := intent.ConversationContext{LastIntent: s.lastIntent(ctx, user)}
		conv.RecentTaxiBooking = conv.LastIntent == intent.IntentTaxi
		if s.carts != nil {
			conv.CartItems = s.carts.Count(user)
		}
		primary = s.resolver.Resolve(ctx, in.Text, conv)[0]
	}

	req := router.Request{UserID: user, Text: in.Text, Location: in.Location, Intent: primary}
	if err := s.router.Dispatch(ctx, req); err != nil {
		// The user always hears back, even when a handler blows up.
		s.log.Error("handler failed", "intent", primary.Intent, "user", user, "error", err)
		if s.alerts != nil {
			s.alerts.Critical(ctx, "WEBHOOK_HANDLER", fmt.Sprintf("intent %s for user %s: %v", primary.Intent, user, err))
		}
		if s.sender != nil {
			if _, serr := s.sender.SendText(ctx, user, "Sorry, something went wrong on our side. Please try again in a moment."); serr != nil {
				s.log.Error("failed to send error reply", "user", user, "error", serr)
			}
		}
		return nil
	}
	s.setLastIntent(ctx, user, primary.Intent)
	return nil
}

// handleOperator intercepts admin commands from the configured operator
// number. Anything from a regular user falls through to normal routing.
func (s *Server) handleOperator(ctx context.Context, user, text string) bool {
	if s.alerts == nil || !s.alerts.IsOperator(user) {
		return false
	}
	if strings.TrimSpace(text) != "/status" {
		return false
	}
	if s.store == nil || s.sender == nil {
		return true
	}
	corridors, err := s.store.ActiveCorridors(ctx)
	if err != nil {
		s.log.Error("operator status lookup failed", "error", err)
		return true
	}
	var b strings.Builder
	b.WriteString("Corridor status:\n")
	for _, c := range corridors {
		n, err := s.store.CountPending(ctx, c.ID)
		if err != nil {
			s.log.Warn("pending count failed", "corridor", c.ID, "error", err)
			continue
		}
		fmt.Fprintf(&b, "%s: %d/%d waiting\n", c.Name, n, c.MinGroupSize)
	}
	if _, err := s.sender.SendText(ctx, user, strings.TrimRight(b.String(), "\n")); err != nil {
		s.log.Error("operator status reply failed", "user", user, "error", err)
	}
	return true
}

// background prefers the bounded runner; without one (tests, single-shot
// tools) the work runs inline so nothing is silently dropped.
func (s *Server) background(name string, fn func(ctx context.Context) error) {
	if s.tasks != nil {
		s.tasks.Go(name, fn)
		return
	}
	if err := fn(context.Background()); err != nil {
		s.log.Error("background task failed", "task", name, "error", err)
	}
}

// Conversation context is a hint, so KV errors read as "no context".
func (s *Server) lastIntent(ctx context.Context, user string) string {
	if s.conv == nil {
		return ""
	}
	v, err := s.conv.Get(ctx, "conv:last:"+user)
	if err != nil {
		return ""
	}
	return v
}

func (s *Server) setLastIntent(ctx context.Context, user, intentName string) {
	if s.conv == nil {
		return
	}
	if err := s.conv.Set(ctx, "conv:last:"+user, intentName, convTTL); err != nil {
		s.log.Debug("conversation context write failed", "user", user, "error", err)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if s.track == nil {
		http.Error(w, "tracking disabled", http.StatusServiceUnavailable)
		return
	}
	tripID := mux.Vars(r)["trip_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.track.Add(tripID, conn)
}
