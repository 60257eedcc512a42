package main

import (
	"context"
	"fmt"

	"github.com/trezcool/hudhurio/core/attendance"
	"github.com/trezcool/hudhurio/core/audit"
	"github.com/trezcool/hudhurio/core/geo"
)

const cliActorID = "admin-cli"

// setGeofence replaces a school's clock-in zone and records the change in the
// school's audit trail.
func (cli *commandLine) setGeofence(school string, lat, lng, radius float64) error {
	ctx := context.Background()

	gf, err := cli.attSvc.SetGeofence(ctx, attendance.Geofence{
		SchoolID:     school,
		Center:       geo.Point{Lat: lat, Lng: lng},
		RadiusMeters: radius,
		UpdatedBy:    cliActorID,
	})
	if err != nil {
		return err
	}

	if _, err := cli.auditSvc.Log(ctx, audit.Entry{
		SchoolID:   gf.SchoolID,
		ActorID:    cliActorID,
		Action:     audit.ActionGeofenceUpdated,
		Category:   audit.CategorySettings,
		EntityType: "geofence",
		EntityID:   gf.SchoolID,
		Details:    "geofence updated",
		Metadata: map[string]interface{}{
			"latitude":      gf.Center.Lat,
			"longitude":     gf.Center.Lng,
			"radius_meters": gf.RadiusMeters,
		},
	}); err != nil {
		return err
	}

	fmt.Printf("geofence set for school %s: center (%f, %f), radius %s\n",
		gf.SchoolID, gf.Center.Lat, gf.Center.Lng, geo.FormatDistance(gf.RadiusMeters))
	return nil
}
