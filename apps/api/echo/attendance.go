package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhurio/core/attendance"
	"github.com/trezcool/hudhurio/core/audit"
	"github.com/trezcool/hudhurio/core/device"
)

const (
	deviceIDHeader     = "X-Device-ID"
	deviceSecretHeader = "X-Device-Secret"
)

type attendanceApi struct {
	svc      *attendance.Service
	devSvc   *device.Service
	auditSvc *audit.Service
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *attendance.Service,
	devSvc *device.Service,
	auditSvc *audit.Service,
) {
	api := attendanceApi{
		svc:      svc,
		devSvc:   devSvc,
		auditSvc: auditSvc,
	}

	ag := g.Group("/attendance", jwt)
	ag.POST("/clock-in", api.clockIn)
	ag.POST("/clock-out", api.clockOut)
	ag.GET("", api.query, adminMiddleware())
	ag.GET("/scans/unmatched", api.unmatchedScans, adminMiddleware())

	gg := g.Group("/geofence", jwt)
	gg.GET("", api.getGeofence)
	gg.PUT("", api.setGeofence, adminMiddleware())

	// biometric terminals authenticate with device credentials, not a JWT
	g.POST("/devices/sync", api.syncScans)
}

// Handlers

func (api *attendanceApi) clockIn(ctx echo.Context) error {
	ev, err := api.bindClockEvent(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.ClockIn(ctx.Request().Context(), ev)
	if err != nil {
		return errors.Wrap(err, "clocking in")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) clockOut(ctx echo.Context) error {
	ev, err := api.bindClockEvent(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.ClockOut(ctx.Request().Context(), ev)
	if err != nil {
		if errors.Cause(err) == attendance.ErrRecordNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "clocking out")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// bindClockEvent binds the request body and pins the event to the caller's
// own identity; a subject can only clock themselves, within their own school.
func (api *attendanceApi) bindClockEvent(ctx echo.Context) (attendance.ClockEvent, error) {
	var ev attendance.ClockEvent
	if err := ctx.Bind(&ev); err != nil {
		return ev, errors.Wrap(err, "binding to ClockEvent")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return ev, errors.Wrap(err, "getting context claims")
	}
	ev.SchoolID = claims.SchoolID
	ev.SubjectID = claims.Subject
	return ev, nil
}

func (api *attendanceApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var filter attendance.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var ord Ordering
	ord.Bind(ctx)

	recs, err := api.svc.Query(ctx.Request().Context(), claims.SchoolID, &filter, ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *attendanceApi) unmatchedScans(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	logs, err := api.svc.UnmatchedScans(ctx.Request().Context(), claims.SchoolID)
	if err != nil {
		return errors.Wrap(err, "querying unmatched scans")
	}
	return ctx.JSON(http.StatusOK, logs)
}

func (api *attendanceApi) getGeofence(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	gf, err := api.svc.GetGeofence(ctx.Request().Context(), claims.SchoolID)
	if err != nil {
		if errors.Cause(err) == attendance.ErrGeofenceNotSet {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting geofence")
	}
	return ctx.JSON(http.StatusOK, gf)
}

func (api *attendanceApi) setGeofence(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var gf attendance.Geofence
	if err := ctx.Bind(&gf); err != nil {
		return errors.Wrap(err, "binding to Geofence")
	}
	gf.SchoolID = claims.SchoolID
	gf.UpdatedBy = claims.Subject

	gf, err = api.svc.SetGeofence(ctx.Request().Context(), gf)
	if err != nil {
		return errors.Wrap(err, "setting geofence")
	}

	if _, err := api.auditSvc.Log(ctx.Request().Context(), audit.Entry{
		SchoolID:   gf.SchoolID,
		ActorID:    gf.UpdatedBy,
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
		return errors.Wrap(err, "recording geofence update")
	}

	return ctx.JSON(http.StatusOK, gf)
}

func (api *attendanceApi) syncScans(ctx echo.Context) error {
	id := ctx.Request().Header.Get(deviceIDHeader)
	secret := ctx.Request().Header.Get(deviceSecretHeader)
	if id == "" || secret == "" {
		return errDeviceAuthFailed
	}

	dev, err := api.devSvc.Authenticate(ctx.Request().Context(), id, secret)
	if err != nil {
		switch errors.Cause(err) {
		case device.ErrInvalidCredentials, device.ErrDeviceDisabled:
			return errDeviceAuthFailed
		}
		return errors.Wrap(err, "authenticating device")
	}

	var data struct {
		Scans []attendance.DeviceScan `json:"scans"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeviceScan list")
	}

	res, err := api.svc.SyncScans(ctx.Request().Context(), dev, data.Scans)
	if err != nil {
		return errors.Wrap(err, "syncing scans")
	}
	return ctx.JSON(http.StatusOK, res)
}
