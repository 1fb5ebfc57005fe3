package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/example/wa-concierge/internal/models"
)

// MemoryStore is the zero-setup Store used for local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	corridors []models.Corridor
	bookings  map[string]*models.Booking
	trips     map[string]*models.Trip
	stops     map[string][]models.Stop
	chat      []models.ChatMessage
	alerts    []models.Alert
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[string]*models.Booking),
		trips:    make(map[string]*models.Trip),
		stops:    make(map[string][]models.Stop),
	}
}

// SeedCorridors replaces the corridor set. Used at startup and in tests.
func (m *MemoryStore) SeedCorridors(cs []models.Corridor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corridors = append([]models.Corridor(nil), cs...)
}

func (m *MemoryStore) ActiveCorridors(ctx context.Context) ([]models.Corridor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Corridor, 0, len(m.corridors))
	for _, c := range m.corridors {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryStore) CorridorByID(ctx context.Context, id string) (models.Corridor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.corridors {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Corridor{}, ErrNotFound
}

func (m *MemoryStore) SaveBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) PendingByCorridor(ctx context.Context, corridorID string) ([]models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.CorridorID == corridorID && b.Status == models.BookingPending {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CountPending(ctx context.Context, corridorID string) (int, error) {
	bs, err := m.PendingByCorridor(ctx, corridorID)
	if err != nil {
		return 0, err
	}
	return len(bs), nil
}

// ClaimBooking is a compare-and-swap from pending to claiming. It reports
// false when the booking was already taken by a concurrent cycle.
func (m *MemoryStore) ClaimBooking(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, ErrNotFound
	}
	if b.Status != models.BookingPending {
		return false, nil
	}
	b.Status = models.BookingClaiming
	return true, nil
}

func (m *MemoryStore) ReleaseBooking(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	if b.Status == models.BookingClaiming {
		b.Status = models.BookingPending
	}
	return nil
}

func (m *MemoryStore) MarkGrouped(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if b, ok := m.bookings[id]; ok {
			b.Status = models.BookingGrouped
		}
	}
	return nil
}

func (m *MemoryStore) SaveTrip(ctx context.Context, t *models.Trip, stops []models.Stop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trips[t.ID] = &cp
	m.stops[t.ID] = append([]models.Stop(nil), stops...)
	return nil
}

func (m *MemoryStore) StopsByTrip(ctx context.Context, tripID string) ([]models.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ss, ok := m.stops[tripID]
	if !ok {
		return nil, ErrNotFound
	}
	out := append([]models.Stop(nil), ss...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *MemoryStore) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat = append(m.chat, *msg)
	return nil
}

func (m *MemoryStore) SaveAlert(ctx context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, *a)
	return nil
}

// Booking returns a snapshot of one booking, for tests and tracking.
func (m *MemoryStore) Booking(id string) (models.Booking, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return models.Booking{}, false
	}
	return *b, true
}

// Trips returns all trips, for tests.
func (m *MemoryStore) Trips() []models.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		out = append(out, *t)
	}
	return out
}

// Alerts returns all persisted alerts, for tests.
func (m *MemoryStore) Alerts() []models.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Alert(nil), m.alerts...)
}
