package taxi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/wa-concierge/internal/models"
	"github.com/example/wa-concierge/internal/storage"
	"github.com/example/wa-concierge/internal/wa"
)

type sentMessage struct {
	To   string
	Body string
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
}

func (f *fakeSender) record(to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{To: to, Body: body})
	return fmt.Sprintf("wamid.%d", len(f.messages)), nil
}

func (f *fakeSender) SendText(ctx context.Context, to, body string) (string, error) {
	return f.record(to, body)
}

func (f *fakeSender) SendInteractive(ctx context.Context, to, body string, buttons []wa.Button) (string, error) {
	return f.record(to, body)
}

func (f *fakeSender) SendImage(ctx context.Context, to, url, caption string) (string, error) {
	return f.record(to, caption)
}

func (f *fakeSender) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.messages...)
}

var testCorridor = models.Corridor{
	ID:           "c1",
	Name:         "Soweto - Sandton",
	Start:        models.Coord{Lat: -26.26, Lon: 28.02},
	End:          models.Coord{Lat: -26.10, Lon: 28.06},
	RadiusKm:     5,
	Active:       true,
	MinGroupSize: 4,
	MaxGroupSize: 6,
	BaseFare:     35,
}

func seedBookings(t *testing.T, store *storage.MemoryStore, n int) []models.Booking {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	var out []models.Booking
	for i := 0; i < n; i++ {
		b := models.Booking{
			ID:     fmt.Sprintf("b%d", i+1),
			UserID: fmt.Sprintf("user%d", i+1),
			// Pickups staggered along the corridor, dropoffs near the end.
			Pickup:     models.Coord{Lat: -26.24 + 0.01*float64(i), Lon: 28.03},
			Dropoff:    models.Coord{Lat: -26.12 + 0.002*float64(i), Lon: 28.055},
			CorridorID: "c1",
			Fare:       35,
			Status:     models.BookingPending,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveBooking(context.Background(), &b); err != nil {
			t.Fatal(err)
		}
		out = append(out, b)
	}
	return out
}

func newDispatcher(store *storage.MemoryStore, sender *fakeSender) *Dispatcher {
	return &Dispatcher{
		Store:  store,
		Sender: sender,
		Log:    slog.Default(),
	}
}

func TestDispatchBelowQuorumDoesNothing(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	seedBookings(t, store, 3)
	d := newDispatcher(store, &fakeSender{})

	trip, err := d.DispatchCorridor(context.Background(), testCorridor)
	if err != nil {
		t.Fatal(err)
	}
	if trip != nil {
		t.Fatal("no trip may be created below quorum")
	}
	n, _ := store.CountPending(context.Background(), "c1")
	if n != 3 {
		t.Fatalf("bookings must stay pending, got %d", n)
	}
}

func TestDispatchTruncatesAtMaxGroupSize(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	seedBookings(t, store, 7)
	d := newDispatcher(store, &fakeSender{})

	trip, err := d.DispatchCorridor(context.Background(), testCorridor)
	if err != nil {
		t.Fatal(err)
	}
	if trip == nil {
		t.Fatal("expected a trip")
	}
	stops, err := store.StopsByTrip(context.Background(), trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stops) != 12 {
		t.Fatalf("expected 6 passengers = 12 stops, got %d", len(stops))
	}
	// The newest booking (b7) waits for the next cycle.
	n, _ := store.CountPending(context.Background(), "c1")
	if n != 1 {
		t.Fatalf("expected 1 booking left pending, got %d", n)
	}
	if left, _ := store.Booking("b7"); left.Status != models.BookingPending {
		t.Fatalf("oldest-first truncation violated: b7 is %s", left.Status)
	}
}

func TestDispatchRevenueAndCommission(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	seedBookings(t, store, 4)
	d := newDispatcher(store, &fakeSender{})

	trip, err := d.DispatchCorridor(context.Background(), testCorridor)
	if err != nil {
		t.Fatal(err)
	}
	if trip.Revenue != 140 {
		t.Fatalf("expected revenue 140, got %d", trip.Revenue)
	}
	if trip.PlatformEarnings != 21 {
		t.Fatalf("expected 15%% earnings = 21, got %d", trip.PlatformEarnings)
	}
	if trip.Status != models.TripScheduled {
		t.Fatalf("expected scheduled trip, got %s", trip.Status)
	}
}

func TestDispatchStopOrdering(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	seedBookings(t, store, 4)
	d := newDispatcher(store, &fakeSender{})

	trip, err := d.DispatchCorridor(context.Background(), testCorridor)
	if err != nil {
		t.Fatal(err)
	}
	stops, err := store.StopsByTrip(context.Background(), trip.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stops) != 8 {
		t.Fatalf("expected 8 stops, got %d", len(stops))
	}
	for i, s := range stops {
		if s.Seq != i+1 {
			t.Fatalf("stop %d has seq %d", i, s.Seq)
		}
		wantType := models.StopPickup
		if i >= 4 {
			wantType = models.StopDropoff
		}
		if s.Type != wantType {
			t.Fatalf("stop seq %d: expected %s, got %s", s.Seq, wantType, s.Type)
		}
	}
	// Pickups run in corridor order: b1 boarded furthest from Sandton.
	if stops[0].BookingID != "b1" {
		t.Fatalf("expected b1's pickup first, got %s", stops[0].BookingID)
	}
}

func TestDispatchMarksBookingsGrouped(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedCorridors([]models.Corridor{testCorridor})
	bookings := seedBookings(t, store, 4)
	sender := &fakeSender{}
	d := newDispatcher(store, sender)

	if _, err := d.DispatchCorridor(context.Background(), testCorridor); err != nil {
		t.Fatal(err)
	}
	for _, b := range bookings {
		got, _ := store.Booking(b.ID)
		if got.Status != models.BookingGrouped {
			t.Fatalf("booking %s: expected grouped, got %s", b.ID, got.Status)
		}
	}
	if len(sender.sent()) != 4 {
		t.Fatalf("expected 4 passenger notifications, got %d", len(sender.sent()))
	}
}

// staleStore replays a snapshot of the pending queue taken before a
// concurrent cycle claimed part of it, reproducing the read-then-claim race
// between overlapping dispatch triggers.
type staleStore struct {
	*storage.MemoryStore
	snapshot []models.Booking
}

func (s *staleStore) PendingByCorridor(ctx context.Context, corridorID string) ([]models.Booking, error) {
	return s.snapshot, nil
}

func TestDispatchReleasesWhenRaceBreaksQuorum(t *testing.T) {
	mem := storage.NewMemoryStore()
	mem.SeedCorridors([]models.Corridor{testCorridor})
	bookings := seedBookings(t, mem, 4)
	store := &staleStore{MemoryStore: mem, snapshot: bookings}

	// Between our read and our claims, a concurrent cycle takes b1 and b2.
	for _, id := range []string{"b1", "b2"} {
		if ok, err := mem.ClaimBooking(context.Background(), id); err != nil || !ok {
			t.Fatalf("setup claim failed: ok=%v err=%v", ok, err)
		}
	}

	d := &Dispatcher{Store: store, Sender: &fakeSender{}, Log: slog.Default()}
	trip, err := d.DispatchCorridor(context.Background(), testCorridor)
	if err != nil {
		t.Fatal(err)
	}
	if trip != nil {
		t.Fatal("quorum cannot be met once the race is lost; no trip expected")
	}
	// The two bookings this cycle did claim must be handed back.
	for _, id := range []string{"b3", "b4"} {
		got, _ := mem.Booking(id)
		if got.Status != models.BookingPending {
			t.Fatalf("booking %s: expected released to pending, got %s", id, got.Status)
		}
	}
	// The winner's claims are untouched.
	for _, id := range []string{"b1", "b2"} {
		got, _ := mem.Booking(id)
		if got.Status != models.BookingClaiming {
			t.Fatalf("booking %s: expected still claiming, got %s", id, got.Status)
		}
	}
}
