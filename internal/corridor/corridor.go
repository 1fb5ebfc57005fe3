package corridor

import (
	"github.com/example/wa-concierge/internal/geomath"
	"github.com/example/wa-concierge/internal/models"
)

// Assign picks the corridor serving a pickup/dropoff pair. A corridor
// matches when both points lie within its tolerance radius of the defining
// line and the dropoff sits strictly further along the line than the pickup
// (forward travel only). The first matching corridor in iteration order
// wins; we deliberately do not score across overlapping corridors, trading
// assignment quality for latency on the webhook path.
func Assign(pickup, dropoff models.Coord, corridors []models.Corridor) (models.Corridor, bool) {
	for _, c := range corridors {
		if !c.Active {
			continue
		}
		pd := geomath.PerpendicularDistance(pickup.Lat, pickup.Lon, c.Start.Lat, c.Start.Lon, c.End.Lat, c.End.Lon)
		if pd > c.RadiusKm {
			continue
		}
		dd := geomath.PerpendicularDistance(dropoff.Lat, dropoff.Lon, c.Start.Lat, c.Start.Lon, c.End.Lat, c.End.Lon)
		if dd > c.RadiusKm {
			continue
		}
		pp := geomath.ProgressAlongLine(pickup.Lat, pickup.Lon, c.Start.Lat, c.Start.Lon, c.End.Lat, c.End.Lon)
		dp := geomath.ProgressAlongLine(dropoff.Lat, dropoff.Lon, c.Start.Lat, c.Start.Lon, c.End.Lat, c.End.Lon)
		if dp <= pp {
			continue
		}
		return c, true
	}
	return models.Corridor{}, false
}
