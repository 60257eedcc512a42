package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/device"
)

type deviceRepository struct {
	db *sqlx.DB
}

var _ device.Repository = (*deviceRepository)(nil) // interface compliance check

func NewDeviceRepository(db *sqlx.DB) *deviceRepository {
	return &deviceRepository{db: db}
}

func (repo deviceRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if tx, ok := svcExec[0].(*sql.Tx); ok {
			return sqlx.NewTx(tx, repo.db.DriverName())
		}
	}
	return repo.db
}

type deviceRow struct {
	ID         string    `db:"id"`
	SchoolID   string    `db:"school_id"`
	Name       string    `db:"name"`
	SecretHash []byte    `db:"secret_hash"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	LastSeen   null.Time `db:"last_seen"`
}

func (repo deviceRepository) unpack(row deviceRow) device.Device {
	return device.Device{
		ID:         row.ID,
		SchoolID:   row.SchoolID,
		Name:       row.Name,
		SecretHash: row.SecretHash,
		IsActive:   row.IsActive,
		CreatedAt:  row.CreatedAt,
		LastSeen:   row.LastSeen.Time,
	}
}

func (repo deviceRepository) CreateDevice(ctx context.Context, dev device.Device, exec ...core.DBExecutor) (device.Device, error) {
	dev.ID = uuid.New().String()
	q := `
INSERT INTO device (id, school_id, name, secret_hash, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		dev.ID, dev.SchoolID, dev.Name, dev.SecretHash, dev.IsActive, dev.CreatedAt.UTC())
	if err != nil {
		return device.Device{}, errors.Wrap(err, "inserting device")
	}
	return dev, nil
}

func (repo deviceRepository) GetDevice(ctx context.Context, id string, exec ...core.DBExecutor) (device.Device, error) {
	var row deviceRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT * FROM device WHERE id = $1", id)
	if err != nil {
		return device.Device{}, trapNoRowsErr(err, device.ErrNotFound, "getting device")
	}
	return repo.unpack(row), nil
}

func (repo deviceRepository) UpdateDeviceLastSeen(ctx context.Context, id string, seen time.Time, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "UPDATE device SET last_seen = $1 WHERE id = $2", seen.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "updating device last-seen")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return device.ErrNotFound
	}
	return nil
}

type enrollmentRow struct {
	ID          string    `db:"id"`
	SchoolID    string    `db:"school_id"`
	BiometricID string    `db:"biometric_id"`
	SubjectID   string    `db:"subject_id"`
	CreatedAt   time.Time `db:"created_at"`
}

func (repo deviceRepository) CreateEnrollment(ctx context.Context, enr device.Enrollment, exec ...core.DBExecutor) (device.Enrollment, error) {
	enr.ID = uuid.New().String()
	q := `
INSERT INTO enrollment (id, school_id, biometric_id, subject_id, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (school_id, biometric_id) DO UPDATE SET subject_id = EXCLUDED.subject_id`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		enr.ID, enr.SchoolID, enr.BiometricID, enr.SubjectID, enr.CreatedAt.UTC())
	if err != nil {
		return device.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo deviceRepository) GetEnrollment(ctx context.Context, schoolID, biometricID string, exec ...core.DBExecutor) (device.Enrollment, error) {
	var row enrollmentRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		"SELECT * FROM enrollment WHERE school_id = $1 AND biometric_id = $2", schoolID, biometricID)
	if err != nil {
		return device.Enrollment{}, trapNoRowsErr(err, device.ErrEnrollmentNotFound, "getting enrollment")
	}
	return device.Enrollment{
		ID:          row.ID,
		SchoolID:    row.SchoolID,
		BiometricID: row.BiometricID,
		SubjectID:   row.SubjectID,
		CreatedAt:   row.CreatedAt,
	}, nil
}
