package attendance

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/device"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrRecordNotFound = errors.New("attendance record not found")
	ErrGeofenceNotSet = errors.New("geofence not configured")
)

type (
	Repository interface {
		GetGeofence(ctx context.Context, schoolID string, exec ...core.DBExecutor) (Geofence, error)
		SetGeofence(ctx context.Context, gf Geofence, exec ...core.DBExecutor) (Geofence, error)
		// UpsertCheckIn inserts the record or, on (school, subject, date)
		// conflict, updates the check-in fields of the existing row.
		// Record.LocationVerified never goes back from true to false.
		UpsertCheckIn(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		// UpsertCheckOut inserts the record or, on conflict, updates only the
		// check-out fields; an already-true LocationVerified is preserved.
		UpsertCheckOut(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		GetRecord(ctx context.Context, schoolID, subjectID, date string, exec ...core.DBExecutor) (Record, error)
		GetRecordByID(ctx context.Context, id string, exec ...core.DBExecutor) (Record, error)
		// MarkRecordVerified sets LocationVerified=true (human override).
		MarkRecordVerified(ctx context.Context, id string, exec ...core.DBExecutor) error
		QueryRecords(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
		CreateScanLog(ctx context.Context, sl ScanLog, exec ...core.DBExecutor) (ScanLog, error)
		QueryScanLogs(ctx context.Context, schoolID string, matched *bool, exec ...core.DBExecutor) ([]ScanLog, error)
	}

	Service struct {
		repo    Repository
		devRepo device.Repository
		logger  core.Logger
	}
)

func NewService(repo Repository, devRepo device.Repository, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		devRepo: devRepo,
		logger:  logger,
	}
}

// ClockIn records a subject's first clock event of the day, verifying the
// reported location against the school's geofence. A failed check never
// blocks the clock-in; the record is flagged unverified for review instead.
func (svc *Service) ClockIn(ctx context.Context, ev ClockEvent) (Record, error) {
	rec, err := svc.prepare(ctx, &ev)
	if err != nil {
		return Record{}, err
	}
	rec.Status = StatusPresent
	rec.CheckInTime = ev.Time

	rec, err = svc.repo.UpsertCheckIn(ctx, rec)
	if err != nil {
		return Record{}, pkgerrors.Wrap(err, "upserting check-in")
	}
	return rec, nil
}

// ClockOut records a subject's clock-out, updating the day's existing record.
// It never downgrades LocationVerified or Status set at check-in.
func (svc *Service) ClockOut(ctx context.Context, ev ClockEvent) (Record, error) {
	rec, err := svc.prepare(ctx, &ev)
	if err != nil {
		return Record{}, err
	}
	rec.Status = StatusPresent
	rec.CheckOutTime = ev.Time

	rec, err = svc.repo.UpsertCheckOut(ctx, rec)
	if err != nil {
		return Record{}, pkgerrors.Wrap(err, "upserting check-out")
	}
	return rec, nil
}

// prepare validates the event and runs the geofence evaluation, returning the
// Record fields shared by check-in and check-out.
func (svc *Service) prepare(ctx context.Context, ev *ClockEvent) (Record, error) {
	if err := ev.Validate(); err != nil {
		return Record{}, err
	}
	if ev.Time.IsZero() {
		ev.Time = NowFunc()
	}
	ev.Time = ev.Time.UTC()
	if ev.Date == "" {
		ev.Date = ev.Time.Format(DateLayout)
	}

	rec := Record{
		SchoolID:  ev.SchoolID,
		SubjectID: ev.SubjectID,
		Date:      ev.Date,
		Source:    SourceSelfReported,
	}

	if ev.TrustedDevice {
		// a registered terminal is a stronger trust signal than phone GPS
		rec.LocationVerified = true
		rec.Source = SourceTrustedDevice
		return rec, nil
	}

	gf, err := svc.geofence(ctx, ev.SchoolID)
	if err != nil {
		return Record{}, err
	}
	eval, err := Evaluate(gf, *ev.Location)
	if err != nil {
		return Record{}, core.NewValidationError(err, core.FieldError{Field: "location", Error: err.Error()})
	}
	if eval.TrustMode {
		svc.logger.Debug("geofence unset; location verified by default", map[string]interface{}{"schoolID": ev.SchoolID})
	}
	rec.LocationVerified = eval.Verified
	rec.DistanceMeters = eval.DistanceMeters
	return rec, nil
}

func (svc *Service) geofence(ctx context.Context, schoolID string) (*Geofence, error) {
	gf, err := svc.repo.GetGeofence(ctx, schoolID)
	if err != nil {
		if pkgerrors.Cause(err) == ErrGeofenceNotSet {
			return nil, nil // trust mode
		}
		return nil, pkgerrors.Wrap(err, "getting geofence")
	}
	return &gf, nil
}

// SyncScans processes a batch of biometric scans from an authenticated
// terminal. Scans are isolated: one scan's failure never aborts the rest, and
// every scan is appended to the raw scan log whether or not its biometric id
// matches an enrollment.
func (svc *Service) SyncScans(ctx context.Context, dev device.Device, scans []DeviceScan) (SyncResult, error) {
	var res SyncResult
	for _, scan := range scans {
		if err := svc.syncScan(ctx, dev, scan); err != nil {
			svc.logger.Warn("device scan failed", err, map[string]interface{}{
				"deviceID":    dev.ID,
				"biometricID": scan.BiometricID,
			})
			res.Failed++
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

func (svc *Service) syncScan(ctx context.Context, dev device.Device, scan DeviceScan) error {
	if err := scan.Validate(); err != nil {
		return err
	}

	var subjectID string
	enr, err := svc.devRepo.GetEnrollment(ctx, dev.SchoolID, scan.BiometricID)
	matched := err == nil
	if matched {
		subjectID = enr.SubjectID
	} else if pkgerrors.Cause(err) != device.ErrEnrollmentNotFound {
		return pkgerrors.Wrap(err, "resolving enrollment")
	}

	sl := ScanLog{
		SchoolID:    dev.SchoolID,
		DeviceID:    dev.ID,
		BiometricID: scan.BiometricID,
		SubjectID:   subjectID,
		ScanType:    scan.ScanType,
		ScannedAt:   scan.Timestamp.UTC(),
		Matched:     matched,
	}
	if _, err := svc.repo.CreateScanLog(ctx, sl); err != nil {
		return pkgerrors.Wrap(err, "appending scan log")
	}
	if !matched {
		return pkgerrors.Wrapf(device.ErrEnrollmentNotFound, "biometric id %q", scan.BiometricID)
	}

	ev := ClockEvent{
		SchoolID:      dev.SchoolID,
		SubjectID:     subjectID,
		TrustedDevice: true,
		Time:          scan.Timestamp,
	}
	if scan.ScanType == ScanCheckOut {
		_, err = svc.ClockOut(ctx, ev)
	} else {
		_, err = svc.ClockIn(ctx, ev)
	}
	return err
}

func (svc *Service) GetGeofence(ctx context.Context, schoolID string) (Geofence, error) {
	return svc.repo.GetGeofence(ctx, schoolID)
}

// SetGeofence replaces a school's geofence; center and radius are applied
// atomically so in-flight evaluations never see a half-updated pair.
func (svc *Service) SetGeofence(ctx context.Context, gf Geofence) (Geofence, error) {
	if !gf.Center.IsValid() {
		return Geofence{}, core.NewValidationError(ErrInvalidLocation, core.FieldError{Field: "center", Error: ErrInvalidLocation.Error()})
	}
	if gf.RadiusMeters <= 0 {
		return Geofence{}, core.NewValidationError(nil, core.FieldError{Field: "radius_meters", Error: "radius must be positive"})
	}
	gf.UpdatedAt = NowFunc().UTC()
	return svc.repo.SetGeofence(ctx, gf)
}

func (svc *Service) GetRecord(ctx context.Context, schoolID, subjectID, date string) (Record, error) {
	return svc.repo.GetRecord(ctx, schoolID, core.CleanString(subjectID), core.CleanString(date))
}

func (svc *Service) Query(ctx context.Context, schoolID string, filter *QueryFilter, ordering ...core.DBOrdering) ([]Record, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryRecords(ctx, schoolID, filter, ordering)
}

// UnmatchedScans returns scan-log rows that could not be resolved to a
// subject, for reconciliation.
func (svc *Service) UnmatchedScans(ctx context.Context, schoolID string) ([]ScanLog, error) {
	matched := false
	return svc.repo.QueryScanLogs(ctx, schoolID, &matched)
}
