package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// getExec returns the service-provided transaction when present, the pool otherwise.
func (repo attendanceRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if tx, ok := svcExec[0].(*sql.Tx); ok {
			return sqlx.NewTx(tx, repo.db.DriverName())
		}
	}
	return repo.db
}

type attendanceRow struct {
	ID               string    `db:"id"`
	SchoolID         string    `db:"school_id"`
	SubjectID        string    `db:"subject_id"`
	Date             time.Time `db:"date"`
	Status           string    `db:"status"`
	CheckInTime      null.Time `db:"check_in_time"`
	CheckOutTime     null.Time `db:"check_out_time"`
	LocationVerified bool      `db:"location_verified"`
	DistanceMeters   float64   `db:"distance_meters"`
	Source           string    `db:"source"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (repo attendanceRepository) unpack(row attendanceRow) attendance.Record {
	return attendance.Record{
		ID:               row.ID,
		SchoolID:         row.SchoolID,
		SubjectID:        row.SubjectID,
		Date:             row.Date.Format(attendance.DateLayout),
		Status:           row.Status,
		CheckInTime:      row.CheckInTime.Time,
		CheckOutTime:     row.CheckOutTime.Time,
		LocationVerified: row.LocationVerified,
		DistanceMeters:   row.DistanceMeters,
		Source:           row.Source,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

// trapNoRowsErr maps psql "no rows" err to the given domain sentinel.
func trapNoRowsErr(err, sentinel error, msg string) error {
	if err == sql.ErrNoRows {
		return sentinel
	}
	return errors.Wrap(err, msg)
}

type geofenceRow struct {
	SchoolID     string      `db:"school_id"`
	Latitude     float64     `db:"latitude"`
	Longitude    float64     `db:"longitude"`
	RadiusMeters float64     `db:"radius_meters"`
	UpdatedBy    null.String `db:"updated_by"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func (repo attendanceRepository) GetGeofence(ctx context.Context, schoolID string, exec ...core.DBExecutor) (attendance.Geofence, error) {
	var row geofenceRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT * FROM geofence WHERE school_id = $1", schoolID)
	if err != nil {
		return attendance.Geofence{}, trapNoRowsErr(err, attendance.ErrGeofenceNotSet, "getting geofence")
	}
	gf := attendance.Geofence{
		SchoolID:     row.SchoolID,
		RadiusMeters: row.RadiusMeters,
		UpdatedBy:    row.UpdatedBy.String,
		UpdatedAt:    row.UpdatedAt,
	}
	gf.Center.Lat = row.Latitude
	gf.Center.Lng = row.Longitude
	return gf, nil
}

func (repo attendanceRepository) SetGeofence(ctx context.Context, gf attendance.Geofence, exec ...core.DBExecutor) (attendance.Geofence, error) {
	// center and radius land in one statement; concurrent evaluations never
	// see a half-updated pair
	q := `
INSERT INTO geofence (school_id, latitude, longitude, radius_meters, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (school_id) DO UPDATE SET
    latitude      = EXCLUDED.latitude,
    longitude     = EXCLUDED.longitude,
    radius_meters = EXCLUDED.radius_meters,
    updated_by    = EXCLUDED.updated_by,
    updated_at    = EXCLUDED.updated_at`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		gf.SchoolID, gf.Center.Lat, gf.Center.Lng, gf.RadiusMeters,
		null.NewString(gf.UpdatedBy, gf.UpdatedBy != ""), gf.UpdatedAt.UTC(),
	)
	if err != nil {
		return attendance.Geofence{}, errors.Wrap(err, "setting geofence")
	}
	return gf, nil
}

func (repo attendanceRepository) UpsertCheckIn(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	q := `
INSERT INTO attendance (id, school_id, subject_id, date, status, check_in_time, location_verified, distance_meters, source, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
ON CONFLICT (school_id, subject_id, date) DO UPDATE SET
    check_in_time     = EXCLUDED.check_in_time,
    status            = EXCLUDED.status,
    location_verified = attendance.location_verified OR EXCLUDED.location_verified,
    distance_meters   = EXCLUDED.distance_meters,
    source            = EXCLUDED.source,
    updated_at        = now()
RETURNING *`
	var row attendanceRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q,
		uuid.New().String(), rec.SchoolID, rec.SubjectID, rec.Date, rec.Status,
		null.NewTime(rec.CheckInTime, !rec.CheckInTime.IsZero()),
		rec.LocationVerified, rec.DistanceMeters, rec.Source,
	)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "upserting check-in")
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) UpsertCheckOut(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	q := `
INSERT INTO attendance (id, school_id, subject_id, date, status, check_out_time, location_verified, distance_meters, source, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
ON CONFLICT (school_id, subject_id, date) DO UPDATE SET
    check_out_time    = EXCLUDED.check_out_time,
    location_verified = attendance.location_verified OR EXCLUDED.location_verified,
    updated_at        = now()
RETURNING *`
	var row attendanceRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q,
		uuid.New().String(), rec.SchoolID, rec.SubjectID, rec.Date, rec.Status,
		null.NewTime(rec.CheckOutTime, !rec.CheckOutTime.IsZero()),
		rec.LocationVerified, rec.DistanceMeters, rec.Source,
	)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "upserting check-out")
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) GetRecord(ctx context.Context, schoolID, subjectID, date string, exec ...core.DBExecutor) (attendance.Record, error) {
	var row attendanceRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		"SELECT * FROM attendance WHERE school_id = $1 AND subject_id = $2 AND date = $3", schoolID, subjectID, date)
	if err != nil {
		return attendance.Record{}, trapNoRowsErr(err, attendance.ErrRecordNotFound, "getting attendance record")
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) GetRecordByID(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Record, error) {
	var row attendanceRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT * FROM attendance WHERE id = $1", id)
	if err != nil {
		return attendance.Record{}, trapNoRowsErr(err, attendance.ErrRecordNotFound, "getting attendance record")
	}
	return repo.unpack(row), nil
}

func (repo attendanceRepository) MarkRecordVerified(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx,
		"UPDATE attendance SET location_verified = TRUE, updated_at = now() WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "marking record verified")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.ErrRecordNotFound
	}
	return nil
}

func (repo attendanceRepository) QueryRecords(
	ctx context.Context,
	schoolID string,
	filter *attendance.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]attendance.Record, error) {
	where := []string{"school_id = $1"}
	args := []interface{}{schoolID}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.SubjectID != "" {
			where = append(where, "subject_id = "+arg(filter.SubjectID))
		}
		if filter.Date != "" {
			where = append(where, "date = "+arg(filter.Date))
		}
		if !filter.DateFrom.IsZero() {
			where = append(where, "date >= "+arg(filter.DateFrom.UTC()))
		}
		if !filter.DateTo.IsZero() {
			where = append(where, "date <= "+arg(filter.DateTo.UTC()))
		}
		if filter.Verified != nil {
			where = append(where, "location_verified = "+arg(*filter.Verified))
		}
	}

	orderBy := "date DESC, check_in_time DESC"
	if len(ordering) > 0 {
		parts := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			parts = append(parts, ord.String())
		}
		orderBy = strings.Join(parts, ", ")
	}

	q := "SELECT * FROM attendance WHERE " + strings.Join(where, " AND ") + " ORDER BY " + orderBy
	var rows []attendanceRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}

	recs := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, repo.unpack(row))
	}
	return recs, nil
}

type scanLogRow struct {
	ID          string      `db:"id"`
	SchoolID    string      `db:"school_id"`
	DeviceID    string      `db:"device_id"`
	BiometricID string      `db:"biometric_id"`
	SubjectID   null.String `db:"subject_id"`
	ScanType    string      `db:"scan_type"`
	ScannedAt   time.Time   `db:"scanned_at"`
	Matched     bool        `db:"matched"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (repo attendanceRepository) CreateScanLog(ctx context.Context, sl attendance.ScanLog, exec ...core.DBExecutor) (attendance.ScanLog, error) {
	sl.ID = uuid.New().String()
	sl.CreatedAt = time.Now().UTC()
	q := `
INSERT INTO scan_log (id, school_id, device_id, biometric_id, subject_id, scan_type, scanned_at, matched, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		sl.ID, sl.SchoolID, sl.DeviceID, sl.BiometricID,
		null.NewString(sl.SubjectID, sl.SubjectID != ""), sl.ScanType, sl.ScannedAt.UTC(), sl.Matched, sl.CreatedAt,
	)
	if err != nil {
		return attendance.ScanLog{}, errors.Wrap(err, "inserting scan log")
	}
	return sl, nil
}

func (repo attendanceRepository) QueryScanLogs(ctx context.Context, schoolID string, matched *bool, exec ...core.DBExecutor) ([]attendance.ScanLog, error) {
	q := "SELECT * FROM scan_log WHERE school_id = $1"
	args := []interface{}{schoolID}
	if matched != nil {
		q += " AND matched = $2"
		args = append(args, *matched)
	}
	q += " ORDER BY scanned_at DESC"

	var rows []scanLogRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying scan logs")
	}

	logs := make([]attendance.ScanLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, attendance.ScanLog{
			ID:          row.ID,
			SchoolID:    row.SchoolID,
			DeviceID:    row.DeviceID,
			BiometricID: row.BiometricID,
			SubjectID:   row.SubjectID.String,
			ScanType:    row.ScanType,
			ScannedAt:   row.ScannedAt,
			Matched:     row.Matched,
			CreatedAt:   row.CreatedAt,
		})
	}
	return logs, nil
}
