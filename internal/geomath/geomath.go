package geomath

import "math"

// EarthRadiusKm is the mean Earth radius used by all spherical formulas here.
const EarthRadiusKm = 6371.0

func toRad(deg float64) float64 { return deg * math.Pi / 180.0 }

// Haversine returns the great-circle distance in kilometers between two
// points given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// bearing returns the initial bearing in radians from (lat1,lon1) to
// (lat2,lon2), inputs in degrees.
func bearing(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := toRad(lat1)
	p2 := toRad(lat2)
	dLon := toRad(lon2 - lon1)
	y := math.Sin(dLon) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dLon)
	return math.Atan2(y, x)
}

// PerpendicularDistance returns the cross-track distance in kilometers of a
// point from the great-circle path defined by lineStart and lineEnd, using
// the spherical cross-track formula. The result is always non-negative.
func PerpendicularDistance(pLat, pLon, aLat, aLon, bLat, bLon float64) float64 {
	d13 := Haversine(aLat, aLon, pLat, pLon) / EarthRadiusKm // angular distance start->point
	b13 := bearing(aLat, aLon, pLat, pLon)
	b12 := bearing(aLat, aLon, bLat, bLon)
	dxt := math.Asin(math.Sin(d13) * math.Sin(b13-b12))
	return math.Abs(dxt * EarthRadiusKm)
}

// ProgressAlongLine returns the fractional position of a point between the
// two endpoints: haversine(start, point) / haversine(start, end). The value
// is deliberately not clamped; callers treat <0 or >1 as "beyond segment"
// and still use it for ordering. A degenerate zero-length line yields 0.
func ProgressAlongLine(pLat, pLon, aLat, aLon, bLat, bLon float64) float64 {
	total := Haversine(aLat, aLon, bLat, bLon)
	if total == 0 {
		return 0
	}
	return Haversine(aLat, aLon, pLat, pLon) / total
}
