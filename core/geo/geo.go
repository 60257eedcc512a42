// Package geo implements the great-circle distance math the attendance
// geofence checks are built on.
package geo

import (
	"fmt"
	"math"
)

// earthRadius is the mean Earth radius in meters. A fixed spherical radius is
// accurate to tens of meters, which is all a campus geofence needs.
const earthRadius = 6371000.0

// Point is a WGS84 latitude/longitude pair.
type Point struct {
	Lat float64 `json:"latitude" validate:"latitude"`
	Lng float64 `json:"longitude" validate:"longitude"`
}

// IsValid reports whether both components are finite and in range.
func (p Point) IsValid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return -90 <= p.Lat && p.Lat <= 90 && -180 <= p.Lng && p.Lng <= 180
}

// Distance returns the great-circle distance between a and b in meters,
// using the Haversine formula. Both points must be valid; callers validate
// one layer up.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadius * c
}

// FormatDistance renders a distance for display: "245m" below a km, "9.40km" above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.2fkm", meters/1000)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
