package attendance

import (
	"errors"
	"math"

	"github.com/trezcool/hudhurio/core/geo"
)

var (
	// ErrInvalidLocation is returned for coordinates that fail range/finite
	// validation; the event is rejected outright, it is not a failed check.
	ErrInvalidLocation = errors.New("invalid location coordinates")
)

// Evaluation is the outcome of a geofence check.
type Evaluation struct {
	Verified       bool
	DistanceMeters float64 // rounded to 2 decimals for storage/display
	TrustMode      bool    // true when no geofence is configured
}

// Evaluate checks a reported location against a school's geofence.
// A nil geofence means the school never configured one: trust mode, every
// valid point passes with distance 0. The radius comparison is inclusive and
// runs on the unrounded distance; rounding applies to the stored value only.
func Evaluate(gf *Geofence, pt geo.Point) (Evaluation, error) {
	if !pt.IsValid() {
		return Evaluation{}, ErrInvalidLocation
	}
	if gf == nil {
		return Evaluation{Verified: true, TrustMode: true}, nil
	}
	d := geo.Distance(gf.Center, pt)
	return Evaluation{
		Verified:       d <= gf.RadiusMeters,
		DistanceMeters: round2(d),
	}, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
