package attendance

import (
	"time"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/geo"
)

// DateLayout is the storage layout of an attendance day.
const DateLayout = "2006-01-02"

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

// Sources
const (
	SourceSelfReported  = "self-reported"
	SourceTrustedDevice = "trusted-device"
)

// Scan types
const (
	ScanCheckIn  = "check_in"
	ScanCheckOut = "check_out"
)

// Record is a subject's attendance for one school day.
// There is exactly one Record per (school, subject, date).
type Record struct {
	ID               string    `json:"id"`
	SchoolID         string    `json:"school_id"`
	SubjectID        string    `json:"subject_id"`
	Date             string    `json:"date"`
	Status           string    `json:"status"`
	CheckInTime      time.Time `json:"check_in_time"`           // UTC
	CheckOutTime     time.Time `json:"check_out_time,omitempty"` // UTC; zero until checked out
	LocationVerified bool      `json:"location_verified"`
	DistanceMeters   float64   `json:"distance_meters"`
	Source           string    `json:"source"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

// Geofence is a school's allowed clock-in zone. A school without a row is in
// trust mode and every valid location passes verification.
type Geofence struct {
	SchoolID     string    `json:"school_id"`
	Center       geo.Point `json:"center"`
	RadiusMeters float64   `json:"radius_meters"`
	UpdatedBy    string    `json:"updated_by"`
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// ClockEvent contains information needed to clock a subject in or out.
type ClockEvent struct {
	SchoolID      string     `json:"school_id" validate:"required"`
	SubjectID     string     `json:"subject_id" validate:"required"`
	Date          string     `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Location      *geo.Point `json:"location" validate:"required_without=TrustedDevice"`
	TrustedDevice bool       `json:"-"`
	Time          time.Time  `json:"-"` // defaults to now
}

func (ev *ClockEvent) Validate() error {
	ev.SchoolID = core.CleanString(ev.SchoolID)
	ev.SubjectID = core.CleanString(ev.SubjectID)
	ev.Date = core.CleanString(ev.Date)
	return core.Validate.Struct(ev)
}

// DeviceScan is one biometric scan reported by a terminal during a batch sync.
type DeviceScan struct {
	BiometricID string    `json:"biometric_id" validate:"required"`
	Timestamp   time.Time `json:"timestamp" validate:"required"`
	ScanType    string    `json:"scan_type" validate:"required,oneof=check_in check_out"`
}

func (s *DeviceScan) Validate() error {
	s.BiometricID = core.CleanString(s.BiometricID)
	return core.Validate.Struct(s)
}

// ScanLog is the raw, append-only trace of a device scan; unmatched scans are
// kept with an empty SubjectID for later reconciliation.
type ScanLog struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	DeviceID    string    `json:"device_id"`
	BiometricID string    `json:"biometric_id"`
	SubjectID   string    `json:"subject_id,omitempty"`
	ScanType    string    `json:"scan_type"`
	ScannedAt   time.Time `json:"scanned_at"` // UTC
	Matched     bool      `json:"matched"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// SyncResult aggregates per-scan outcomes of a batch sync; exactly one of the
// two counters moves for each input scan.
type SyncResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type QueryFilter struct {
	SubjectID string    `query:"subject"`
	Date      string    `query:"date"`
	DateFrom  time.Time `query:"date_from"`
	DateTo    time.Time `query:"date_to"`
	Verified  *bool     `query:"verified"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.SubjectID == "" && qf.Date == "" && qf.DateFrom.IsZero() && qf.DateTo.IsZero() && qf.Verified == nil
}

func (qf *QueryFilter) Clean() {
	qf.SubjectID = core.CleanString(qf.SubjectID)
	qf.Date = core.CleanString(qf.Date)
}
