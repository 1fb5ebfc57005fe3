package storage

import (
	"context"
	"errors"

	"github.com/example/wa-concierge/internal/models"
)

// ErrNotFound is returned for lookups of entities that do not exist.
var ErrNotFound = errors.New("storage: not found")

// CorridorStore exposes operator-provisioned corridors, read-only here.
type CorridorStore interface {
	ActiveCorridors(ctx context.Context) ([]models.Corridor, error)
	CorridorByID(ctx context.Context, id string) (models.Corridor, error)
}

// BookingStore persists ride requests. PendingByCorridor must return
// bookings ordered by creation time ascending: the dispatcher relies on
// oldest-first fairness. ClaimBooking is an atomic pending->claiming
// transition and is the serialization point that keeps two overlapping
// dispatch cycles from grouping the same booking twice.
type BookingStore interface {
	SaveBooking(ctx context.Context, b *models.Booking) error
	PendingByCorridor(ctx context.Context, corridorID string) ([]models.Booking, error)
	CountPending(ctx context.Context, corridorID string) (int, error)
	ClaimBooking(ctx context.Context, id string) (bool, error)
	ReleaseBooking(ctx context.Context, id string) error
	MarkGrouped(ctx context.Context, ids []string) error
}

// TripStore persists a dispatched trip together with its ordered stops.
type TripStore interface {
	SaveTrip(ctx context.Context, t *models.Trip, stops []models.Stop) error
	StopsByTrip(ctx context.Context, tripID string) ([]models.Stop, error)
}

type ChatStore interface {
	SaveMessage(ctx context.Context, m *models.ChatMessage) error
}

type AlertStore interface {
	SaveAlert(ctx context.Context, a *models.Alert) error
}

// Store is the full persistence surface the service needs.
type Store interface {
	CorridorStore
	BookingStore
	TripStore
	ChatStore
	AlertStore
}
