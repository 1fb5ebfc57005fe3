package corridor

import (
	"github.com/example/wa-concierge/internal/geomath"
	"github.com/example/wa-concierge/internal/models"
)

// Fare tier boundaries in km and their prices in whole currency units.
const (
	shortTripKm = 15.0
	midTripKm   = 25.0

	fareShort = 35
	fareMid   = 50
	fareLong  = 75
)

// Fare returns the deterministic tiered fare for a pickup/dropoff pair.
// Same coordinates always price the same; there are no external lookups.
func Fare(pickup, dropoff models.Coord) int64 {
	return FareForDistance(geomath.Haversine(pickup.Lat, pickup.Lon, dropoff.Lat, dropoff.Lon))
}

// FareForDistance maps a straight-line distance in km onto the fare tiers.
// Boundaries are inclusive on the lower tier: exactly 15km is still the
// short-trip price.
func FareForDistance(km float64) int64 {
	switch {
	case km <= shortTripKm:
		return fareShort
	case km <= midTripKm:
		return fareMid
	default:
		return fareLong
	}
}
