package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) GetGeofence(_ context.Context, schoolID string, _ ...core.DBExecutor) (attendance.Geofence, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if gf, ok := repo.db.geofences[schoolID]; ok {
		return *gf, nil
	}
	return attendance.Geofence{}, attendance.ErrGeofenceNotSet
}

func (repo *attendanceRepository) SetGeofence(_ context.Context, gf attendance.Geofence, _ ...core.DBExecutor) (attendance.Geofence, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.geofences[gf.SchoolID] = &gf
	return gf, nil
}

func (repo *attendanceRepository) find(schoolID, subjectID, date string) *attendance.Record {
	for _, rec := range repo.db.records {
		if rec.SchoolID == schoolID && rec.SubjectID == subjectID && rec.Date == date {
			return rec
		}
	}
	return nil
}

func (repo *attendanceRepository) UpsertCheckIn(_ context.Context, rec attendance.Record, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	if existing := repo.find(rec.SchoolID, rec.SubjectID, rec.Date); existing != nil {
		existing.CheckInTime = rec.CheckInTime
		existing.Status = rec.Status
		existing.LocationVerified = existing.LocationVerified || rec.LocationVerified
		existing.DistanceMeters = rec.DistanceMeters
		existing.Source = rec.Source
		existing.UpdatedAt = now
		return *existing, nil
	}

	rec.ID = uuid.New().String()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	repo.db.records[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) UpsertCheckOut(_ context.Context, rec attendance.Record, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	if existing := repo.find(rec.SchoolID, rec.SubjectID, rec.Date); existing != nil {
		existing.CheckOutTime = rec.CheckOutTime
		existing.LocationVerified = existing.LocationVerified || rec.LocationVerified
		existing.UpdatedAt = now
		return *existing, nil
	}

	rec.ID = uuid.New().String()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	repo.db.records[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) GetRecord(_ context.Context, schoolID, subjectID, date string, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec := repo.find(schoolID, subjectID, date); rec != nil {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (repo *attendanceRepository) GetRecordByID(_ context.Context, id string, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.records[id]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrRecordNotFound
}

func (repo *attendanceRepository) MarkRecordVerified(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.records[id]
	if !ok {
		return attendance.ErrRecordNotFound
	}
	rec.LocationVerified = true
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *attendanceRepository) QueryRecords(
	_ context.Context,
	schoolID string,
	filter *attendance.QueryFilter,
	_ []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	recs := make([]attendance.Record, 0, len(repo.db.records))
	for _, rec := range repo.db.records {
		if rec.SchoolID != schoolID {
			continue
		}
		if filter != nil {
			if filter.SubjectID != "" && rec.SubjectID != filter.SubjectID {
				continue
			}
			if filter.Date != "" && rec.Date != filter.Date {
				continue
			}
			if filter.Verified != nil && rec.LocationVerified != *filter.Verified {
				continue
			}
		}
		recs = append(recs, *rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date > recs[j].Date })
	return recs, nil
}

func (repo *attendanceRepository) CreateScanLog(_ context.Context, sl attendance.ScanLog, _ ...core.DBExecutor) (attendance.ScanLog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sl.ID = uuid.New().String()
	sl.CreatedAt = time.Now().UTC()
	repo.db.scanLogs = append(repo.db.scanLogs, &sl)
	return sl, nil
}

func (repo *attendanceRepository) QueryScanLogs(_ context.Context, schoolID string, matched *bool, _ ...core.DBExecutor) ([]attendance.ScanLog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	logs := make([]attendance.ScanLog, 0, len(repo.db.scanLogs))
	for _, sl := range repo.db.scanLogs {
		if sl.SchoolID != schoolID {
			continue
		}
		if matched != nil && sl.Matched != *matched {
			continue
		}
		logs = append(logs, *sl)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].ScannedAt.After(logs[j].ScannedAt) })
	return logs, nil
}
