package taxi

import (
	"sort"

	"github.com/google/uuid"

	"github.com/example/wa-concierge/internal/geomath"
	"github.com/example/wa-concierge/internal/models"
)

// BuildStops produces the ordered stop sequence for a batch: every pickup
// first, sorted by progress along the corridor, then every dropoff, sorted
// the same way. Sequence numbers are 1-based and contiguous.
//
// This is intentionally not a shortest-path solve. With batches of six or
// fewer, a driver following the corridor once - boarding everyone on the
// way up, dropping everyone off past the last boarding point - is simpler
// to drive and guarantees no passenger's dropoff precedes their own pickup.
// The cost is tolerated route slack (a late boarder may be dropped first).
func BuildStops(tripID string, c models.Corridor, bookings []models.Booking) []models.Stop {
	progress := func(p models.Coord) float64 {
		return geomath.ProgressAlongLine(p.Lat, p.Lon, c.Start.Lat, c.Start.Lon, c.End.Lat, c.End.Lon)
	}

	byPickup := append([]models.Booking(nil), bookings...)
	sort.SliceStable(byPickup, func(i, j int) bool {
		return progress(byPickup[i].Pickup) < progress(byPickup[j].Pickup)
	})
	byDropoff := append([]models.Booking(nil), bookings...)
	sort.SliceStable(byDropoff, func(i, j int) bool {
		return progress(byDropoff[i].Dropoff) < progress(byDropoff[j].Dropoff)
	})

	stops := make([]models.Stop, 0, 2*len(bookings))
	seq := 1
	for _, b := range byPickup {
		stops = append(stops, models.Stop{
			ID:        uuid.NewString(),
			TripID:    tripID,
			BookingID: b.ID,
			Type:      models.StopPickup,
			Seq:       seq,
			Loc:       b.Pickup,
			Address:   b.PickupAddr,
		})
		seq++
	}
	for _, b := range byDropoff {
		stops = append(stops, models.Stop{
			ID:        uuid.NewString(),
			TripID:    tripID,
			BookingID: b.ID,
			Type:      models.StopDropoff,
			Seq:       seq,
			Loc:       b.Dropoff,
			Address:   b.DropoffAddr,
		})
		seq++
	}
	return stops
}
