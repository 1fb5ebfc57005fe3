// Package track streams live trip status to riders over WebSocket, backing
// the "track ride" affordance in dispatch notifications.
package track

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TripUpdate is one status frame pushed to every watcher of a trip.
type TripUpdate struct {
	TripID  string    `json:"trip_id"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(u TripUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(u)
}

// Hub holds watcher sessions keyed by trip id.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string][]*session
	log      *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{watchers: make(map[string][]*session), log: log}
}

// Add registers a watcher and starts its read pump. Watchers never send
// application frames; the pump exists to notice the close handshake (or a
// dead peer) and unregister the session without waiting for a broadcast.
func (h *Hub) Add(tripID string, conn *websocket.Conn) {
	s := &session{conn: conn}
	h.mu.Lock()
	h.watchers[tripID] = append(h.watchers[tripID], s)
	h.mu.Unlock()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		_ = conn.Close()
		h.remove(tripID, s)
	}()
}

func (h *Hub) remove(tripID string, target *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.watchers[tripID][:0]
	for _, s := range h.watchers[tripID] {
		if s != target {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(h.watchers, tripID)
		return
	}
	h.watchers[tripID] = kept
}

// Broadcast pushes an update to all watchers of a trip, dropping sessions
// whose connection is gone.
func (h *Hub) Broadcast(u TripUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	alive := h.watchers[u.TripID][:0]
	for _, s := range h.watchers[u.TripID] {
		if err := s.send(u); err != nil {
			h.log.Debug("dropping dead tracking session", "trip_id", u.TripID, "error", err)
			_ = s.conn.Close()
			continue
		}
		alive = append(alive, s)
	}
	if len(alive) == 0 {
		delete(h.watchers, u.TripID)
		return
	}
	h.watchers[u.TripID] = alive
}
