package taxi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/wa-concierge/internal/geocode"
	"github.com/example/wa-concierge/internal/models"
	"github.com/example/wa-concierge/internal/router"
	"github.com/example/wa-concierge/internal/storage"
)

func newMirage(store *storage.MemoryStore, sender *fakeSender) *Mirage {
	return &Mirage{
		Store: store,
		Geo: geocode.Static{
			"sandton": {Lat: -26.11, Lon: 28.06},
		},
		Sender:     sender,
		Dispatcher: newDispatcher(store, sender),
		Log:        slog.Default(),
	}
}

func taxiRequest(user string, loc *models.Coord, text string) router.Request {
	return router.Request{
		UserID:   user,
		Text:     text,
		Location: loc,
		Intent:   models.IntentResult{Intent: "taxi", Confidence: 0.85},
	}
}

func lastMessageTo(t *testing.T, s *fakeSender, user string) string {
	t.Helper()
	msgs := s.sent()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].To == user {
			return msgs[i].Body
		}
	}
	t.Fatalf("no message sent to %s", user)
	return ""
}

func TestIntakePromptsForLocation(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	sender := &fakeSender{}
	m := newMirage(store, sender)

	if err := m.HandleBooking(context.Background(), taxiRequest("u1", nil, "taxi to Sandton")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lastMessageTo(t, sender, "u1"), "location") {
		t.Fatalf("expected a location prompt, got %q", lastMessageTo(t, sender, "u1"))
	}
	if n, _ := store.CountPending(context.Background(), "c1"); n != 0 {
		t.Fatal("no booking may be persisted without a location")
	}
}

func TestIntakePromptsForDestination(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	sender := &fakeSender{}
	m := newMirage(store, sender)

	loc := &models.Coord{Lat: -26.20, Lon: 28.05}
	if err := m.HandleBooking(context.Background(), taxiRequest("u1", loc, "I need a taxi")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lastMessageTo(t, sender, "u1"), "headed") {
		t.Fatalf("expected a destination prompt, got %q", lastMessageTo(t, sender, "u1"))
	}
}

func TestIntakeGeocodeMiss(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	sender := &fakeSender{}
	m := newMirage(store, sender)

	loc := &models.Coord{Lat: -26.20, Lon: 28.05}
	if err := m.HandleBooking(context.Background(), taxiRequest("u1", loc, "taxi to Atlantis")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lastMessageTo(t, sender, "u1"), "couldn't find") {
		t.Fatalf("expected a not-found message, got %q", lastMessageTo(t, sender, "u1"))
	}
	if n, _ := store.CountPending(context.Background(), "c1"); n != 0 {
		t.Fatal("no booking may be persisted when geocoding misses")
	}
}

func TestIntakeUnsupportedRoute(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	sender := &fakeSender{}
	m := newMirage(store, sender)
	m.Geo = geocode.Static{"cape town": {Lat: -33.92, Lon: 18.42}}

	loc := &models.Coord{Lat: -26.20, Lon: 28.05}
	if err := m.HandleBooking(context.Background(), taxiRequest("u1", loc, "taxi to Cape Town")); err != nil {
		t.Fatal(err)
	}
	body := lastMessageTo(t, sender, "u1")
	if !strings.Contains(body, "don't serve") || !strings.Contains(body, "Soweto - Sandton") {
		t.Fatalf("expected unsupported-route message listing corridors, got %q", body)
	}
	if n, _ := store.CountPending(context.Background(), "c1"); n != 0 {
		t.Fatal("no booking may be persisted for an unsupported route")
	}
}

func TestIntakeUsesExtractedDestination(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	sender := &fakeSender{}
	m := newMirage(store, sender)

	req := taxiRequest("u1", &models.Coord{Lat: -26.20, Lon: 28.05}, "ride please")
	req.Intent.Extracted = map[string]string{models.ExtractedDestination: "Sandton"}
	if err := m.HandleBooking(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lastMessageTo(t, sender, "u1"), "Booking confirmed") {
		t.Fatalf("expected confirmation, got %q", lastMessageTo(t, sender, "u1"))
	}
}

// The full quorum scenario: three riders wait, the fourth fills the group
// and the corridor dispatches exactly one trip.
func TestIntakeQuorumEndToEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	sender := &fakeSender{}
	m := newMirage(store, sender)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		user := fmt.Sprintf("user%d", i)
		loc := &models.Coord{Lat: -26.21 + 0.005*float64(i), Lon: 28.045}
		if err := m.HandleBooking(ctx, taxiRequest(user, loc, "taxi to Sandton")); err != nil {
			t.Fatal(err)
		}
		body := lastMessageTo(t, sender, user)
		if !strings.Contains(body, fmt.Sprintf("%d/4", i)) {
			t.Fatalf("expected waiting count %d/4 in %q", i, body)
		}
	}
	if trips := store.Trips(); len(trips) != 0 {
		t.Fatalf("no trip may exist below quorum, got %d", len(trips))
	}
	if n, _ := store.CountPending(ctx, "c1"); n != 3 {
		t.Fatalf("expected 3 pending bookings, got %d", n)
	}

	// Fourth rider fills the quorum; the inline dispatch trigger fires.
	loc := &models.Coord{Lat: -26.20, Lon: 28.05}
	if err := m.HandleBooking(ctx, taxiRequest("user4", loc, "taxi to Sandton")); err != nil {
		t.Fatal(err)
	}

	trips := store.Trips()
	if len(trips) != 1 {
		t.Fatalf("expected exactly one trip, got %d", len(trips))
	}
	stops, err := store.StopsByTrip(ctx, trips[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stops) != 8 {
		t.Fatalf("expected 4 pickups + 4 dropoffs, got %d stops", len(stops))
	}
	for i, s := range stops {
		want := models.StopPickup
		if i >= 4 {
			want = models.StopDropoff
		}
		if s.Type != want {
			t.Fatalf("stop seq %d: expected %s, got %s", s.Seq, want, s.Type)
		}
		b, ok := store.Booking(s.BookingID)
		if !ok {
			t.Fatalf("stop %d references unknown booking %s", s.Seq, s.BookingID)
		}
		if b.Status != models.BookingGrouped {
			t.Fatalf("booking %s: expected grouped, got %s", b.ID, b.Status)
		}
	}
	if n, _ := store.CountPending(ctx, "c1"); n != 0 {
		t.Fatalf("expected all bookings grouped, %d still pending", n)
	}
}

// The rider who fills the group triggers dispatch inline, but must still
// see their own confirmation before the trip notification.
func TestIntakeConfirmsBeforeDispatchNotice(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	sender := &fakeSender{}
	m := newMirage(store, sender)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		user := fmt.Sprintf("user%d", i)
		loc := &models.Coord{Lat: -26.21 + 0.004*float64(i), Lon: 28.045}
		if err := m.HandleBooking(ctx, taxiRequest(user, loc, "taxi to Sandton")); err != nil {
			t.Fatal(err)
		}
	}

	var toLast []string
	for _, msg := range sender.sent() {
		if msg.To == "user4" {
			toLast = append(toLast, msg.Body)
		}
	}
	if len(toLast) != 2 {
		t.Fatalf("expected confirmation then trip notice for user4, got %d messages: %v", len(toLast), toLast)
	}
	if !strings.Contains(toLast[0], "Booking confirmed") || !strings.Contains(toLast[0], "4/4") {
		t.Fatalf("first message must be the 4/4 confirmation, got %q", toLast[0])
	}
	if !strings.Contains(toLast[1], "Your shared ride") {
		t.Fatalf("second message must be the trip notice, got %q", toLast[1])
	}
}

func TestIntakeExtractsLastDestination(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	sender := &fakeSender{}
	m := newMirage(store, sender)

	// Two "to"s in one sentence; the destination is the last one.
	loc := &models.Coord{Lat: -26.20, Lon: 28.05}
	if err := m.HandleBooking(context.Background(), taxiRequest("u1", loc, "I want to go to Sandton")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lastMessageTo(t, sender, "u1"), "Booking confirmed") {
		t.Fatalf("expected confirmation, got %q", lastMessageTo(t, sender, "u1"))
	}
}

func TestIntakeFareInConfirmation(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	sender := &fakeSender{}
	m := newMirage(store, sender)

	loc := &models.Coord{Lat: -26.20, Lon: 28.05}
	if err := m.HandleBooking(context.Background(), taxiRequest("u1", loc, "taxi to Sandton")); err != nil {
		t.Fatal(err)
	}
	body := lastMessageTo(t, sender, "u1")
	// ~10km is the short tier.
	if !strings.Contains(body, "R35") {
		t.Fatalf("expected fare R35 in confirmation, got %q", body)
	}
	if !strings.Contains(body, "Soweto - Sandton") {
		t.Fatalf("expected corridor name in confirmation, got %q", body)
	}
}
