package device

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/hudhurio/core"
)

// Device is a registered biometric/terminal device. Its scans bypass the GPS
// geofence check: a physically-installed, access-controlled terminal is a
// stronger trust signal than a phone GPS reading.
type Device struct {
	ID         string    `json:"id"`
	SchoolID   string    `json:"school_id"`
	Name       string    `json:"name"`
	SecretHash []byte    `json:"-"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	LastSeen   time.Time `json:"last_seen"`  // UTC
}

func (d *Device) SetSecret(secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	d.SecretHash = hash
	return nil
}

func (d *Device) CheckSecret(secret string) error {
	return bcrypt.CompareHashAndPassword(d.SecretHash, []byte(secret))
}

// Enrollment maps a stable biometric identifier captured by terminals to a
// school subject (staff or student).
type Enrollment struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	BiometricID string    `json:"biometric_id"`
	SubjectID   string    `json:"subject_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewDevice contains information needed to register a new Device.
type NewDevice struct {
	SchoolID string `json:"school_id" validate:"required"`
	Name     string `json:"name" validate:"required,alphanum_"`
	Secret   string `json:"secret" validate:"required,min=16"`
}

func (nd *NewDevice) Validate() error {
	nd.SchoolID = core.CleanString(nd.SchoolID)
	nd.Name = core.CleanString(nd.Name)
	return core.Validate.Struct(nd)
}

// NewEnrollment contains information needed to enroll a subject's biometric id.
type NewEnrollment struct {
	SchoolID    string `json:"school_id" validate:"required"`
	BiometricID string `json:"biometric_id" validate:"required"`
	SubjectID   string `json:"subject_id" validate:"required"`
}

func (ne *NewEnrollment) Validate() error {
	ne.SchoolID = core.CleanString(ne.SchoolID)
	ne.BiometricID = core.CleanString(ne.BiometricID)
	ne.SubjectID = core.CleanString(ne.SubjectID)
	return core.Validate.Struct(ne)
}
