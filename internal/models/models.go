package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BookingStatus tracks a booking through its lifecycle. Bookings are never
// deleted, only transitioned.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingClaiming   BookingStatus = "claiming"
	BookingGrouped    BookingStatus = "grouped"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

type TripStatus string

const (
	TripScheduled  TripStatus = "scheduled"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
)

type StopType string

const (
	StopPickup  StopType = "pickup"
	StopDropoff StopType = "dropoff"
)

// Corridor is a named straight-line transit route with a tolerance radius.
// Provisioned by operators, read-only to this service.
type Corridor struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Start        Coord   `json:"start"`
	End          Coord   `json:"end"`
	RadiusKm     float64 `json:"radius_km"`
	Active       bool    `json:"active"`
	MinGroupSize int     `json:"min_group_size"`
	MaxGroupSize int     `json:"max_group_size"`
	BaseFare     int64   `json:"base_fare"`
}

// Booking is a single passenger ride request. Fare is fixed at creation and
// never recomputed.
type Booking struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Pickup      Coord         `json:"pickup"`
	PickupAddr  string        `json:"pickup_addr"`
	Dropoff     Coord         `json:"dropoff"`
	DropoffAddr string        `json:"dropoff_addr"`
	CorridorID  string        `json:"corridor_id"` // empty until assigned
	Fare        int64         `json:"fare"`
	Status      BookingStatus `json:"status"`
	PaymentRef  string        `json:"payment_ref,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Trip is a dispatched batch of bookings on one corridor. Financial fields
// are immutable once created.
type Trip struct {
	ID               string     `json:"id"`
	CorridorID       string     `json:"corridor_id"`
	Status           TripStatus `json:"status"`
	Revenue          int64      `json:"revenue"`
	PlatformEarnings int64      `json:"platform_earnings"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Stop is one ordered waypoint of a trip. Seq is 1-based and strictly
// increasing within a trip.
type Stop struct {
	ID        string   `json:"id"`
	TripID    string   `json:"trip_id"`
	BookingID string   `json:"booking_id"`
	Type      StopType `json:"type"`
	Seq       int      `json:"seq"`
	Loc       Coord    `json:"loc"`
	Address   string   `json:"address"`
}

// IntentResult is the ephemeral output of classification: never persisted,
// consumed by the router and discarded.
type IntentResult struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Extracted  map[string]string `json:"extracted_data,omitempty"`
}

// Known Extracted keys, kept here so handlers and the parser agree.
const (
	ExtractedDestination = "destination"
	ExtractedItem        = "item"
	ExtractedQuantity    = "quantity"
)

// ChatMessage is one line of per-user chat history, persisted before intent
// resolution so the pipeline can use it as context.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Direction string    `json:"direction"` // in | out
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Alert is a persisted record of a critical failure surfaced to the operator.
type Alert struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
