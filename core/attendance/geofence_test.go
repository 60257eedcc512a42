package attendance

import (
	"math"
	"testing"

	"github.com/trezcool/hudhurio/core/geo"
)

func TestEvaluate(t *testing.T) {
	center := geo.Point{Lat: 6.5250, Lng: 3.3800}
	inside := geo.Point{Lat: 6.5244, Lng: 3.3792}  // ~110m away
	outside := geo.Point{Lat: 6.6000, Lng: 3.4000} // ~8.7km away
	fence := &Geofence{SchoolID: "sch1", Center: center, RadiusMeters: 200}

	t.Run("invalid location", func(t *testing.T) {
		if _, err := Evaluate(fence, geo.Point{Lat: 91, Lng: 0}); err != ErrInvalidLocation {
			t.Errorf("Evaluate() error = %v, want ErrInvalidLocation", err)
		}
		if _, err := Evaluate(fence, geo.Point{Lat: math.NaN(), Lng: 0}); err != ErrInvalidLocation {
			t.Errorf("Evaluate() error = %v, want ErrInvalidLocation", err)
		}
	})

	t.Run("trust mode without geofence", func(t *testing.T) {
		eval, err := Evaluate(nil, inside)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !eval.Verified || !eval.TrustMode || eval.DistanceMeters != 0 {
			t.Errorf("Evaluate() = %+v, want verified trust mode with distance 0", eval)
		}
	})

	t.Run("inside fence", func(t *testing.T) {
		eval, err := Evaluate(fence, inside)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !eval.Verified || eval.TrustMode {
			t.Errorf("Evaluate() = %+v, want verified", eval)
		}
		if eval.DistanceMeters < 100 || eval.DistanceMeters > 120 {
			t.Errorf("Evaluate() distance = %v, want ~110m", eval.DistanceMeters)
		}
	})

	t.Run("outside fence", func(t *testing.T) {
		eval, err := Evaluate(fence, outside)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if eval.Verified {
			t.Errorf("Evaluate() = %+v, want unverified", eval)
		}
		if eval.DistanceMeters < 8000 {
			t.Errorf("Evaluate() distance = %v, want several km", eval.DistanceMeters)
		}
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		d := geo.Distance(center, inside)

		eval, err := Evaluate(&Geofence{Center: center, RadiusMeters: d}, inside)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !eval.Verified {
			t.Error("Evaluate() at exact radius should verify")
		}

		eval, err = Evaluate(&Geofence{Center: center, RadiusMeters: d - 0.01}, inside)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if eval.Verified {
			t.Error("Evaluate() just past the radius should not verify")
		}
	})

	t.Run("stored distance is rounded", func(t *testing.T) {
		eval, err := Evaluate(fence, inside)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if eval.DistanceMeters != math.Round(eval.DistanceMeters*100)/100 {
			t.Errorf("Evaluate() distance = %v, want 2 decimals max", eval.DistanceMeters)
		}
	})
}
