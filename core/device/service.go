package device

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/hudhurio/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = errors.New("device not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrInvalidCredentials = errors.New("invalid device credentials")
	ErrDeviceDisabled     = errors.New("device disabled")
)

type (
	Repository interface {
		CreateDevice(ctx context.Context, dev Device, exec ...core.DBExecutor) (Device, error)
		GetDevice(ctx context.Context, id string, exec ...core.DBExecutor) (Device, error)
		UpdateDeviceLastSeen(ctx context.Context, id string, seen time.Time, exec ...core.DBExecutor) error
		CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, schoolID, biometricID string, exec ...core.DBExecutor) (Enrollment, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Register(ctx context.Context, nd NewDevice) (Device, error) {
	if err := nd.Validate(); err != nil {
		return Device{}, err
	}
	dev := Device{
		SchoolID:  nd.SchoolID,
		Name:      nd.Name,
		IsActive:  true,
		CreatedAt: NowFunc().UTC(),
	}
	if err := dev.SetSecret(nd.Secret); err != nil {
		return Device{}, err
	}
	return svc.repo.CreateDevice(ctx, dev)
}

// Authenticate checks a terminal's credentials and stamps its last-seen time.
func (svc *Service) Authenticate(ctx context.Context, id, secret string) (Device, error) {
	dev, err := svc.repo.GetDevice(ctx, id)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return Device{}, ErrInvalidCredentials
		}
		return Device{}, pkgerrors.Wrap(err, "getting device")
	}
	if err := dev.CheckSecret(secret); err != nil {
		return Device{}, ErrInvalidCredentials
	}
	if !dev.IsActive {
		return Device{}, ErrDeviceDisabled
	}
	seen := NowFunc().UTC()
	if err := svc.repo.UpdateDeviceLastSeen(ctx, dev.ID, seen); err != nil {
		return Device{}, pkgerrors.Wrap(err, "updating device last-seen")
	}
	dev.LastSeen = seen
	return dev, nil
}

func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	if err := ne.Validate(); err != nil {
		return Enrollment{}, err
	}
	enr := Enrollment{
		SchoolID:    ne.SchoolID,
		BiometricID: ne.BiometricID,
		SubjectID:   ne.SubjectID,
		CreatedAt:   NowFunc().UTC(),
	}
	return svc.repo.CreateEnrollment(ctx, enr)
}
