package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/device"
)

type deviceRepository struct {
	db *DB
}

var _ device.Repository = (*deviceRepository)(nil) // interface compliance check

func NewDeviceRepository(db *DB) *deviceRepository {
	return &deviceRepository{db: db}
}

func (repo *deviceRepository) CreateDevice(_ context.Context, dev device.Device, _ ...core.DBExecutor) (device.Device, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	dev.ID = uuid.New().String()
	repo.db.devices[dev.ID] = &dev
	return dev, nil
}

func (repo *deviceRepository) GetDevice(_ context.Context, id string, _ ...core.DBExecutor) (device.Device, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if dev, ok := repo.db.devices[id]; ok {
		return *dev, nil
	}
	return device.Device{}, device.ErrNotFound
}

func (repo *deviceRepository) UpdateDeviceLastSeen(_ context.Context, id string, seen time.Time, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	dev, ok := repo.db.devices[id]
	if !ok {
		return device.ErrNotFound
	}
	dev.LastSeen = seen
	return nil
}

func (repo *deviceRepository) CreateEnrollment(_ context.Context, enr device.Enrollment, _ ...core.DBExecutor) (device.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	enr.ID = uuid.New().String()
	repo.db.enrollments[enrollmentKey(enr.SchoolID, enr.BiometricID)] = &enr
	return enr, nil
}

func (repo *deviceRepository) GetEnrollment(_ context.Context, schoolID, biometricID string, _ ...core.DBExecutor) (device.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if enr, ok := repo.db.enrollments[enrollmentKey(schoolID, biometricID)]; ok {
		return *enr, nil
	}
	return device.Enrollment{}, device.ErrEnrollmentNotFound
}
