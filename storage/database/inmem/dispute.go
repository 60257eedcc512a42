package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/dispute"
)

type disputeRepository struct {
	db *DB
}

var _ dispute.Repository = (*disputeRepository)(nil) // interface compliance check

func NewDisputeRepository(db *DB) *disputeRepository {
	return &disputeRepository{db: db}
}

func (repo *disputeRepository) CreateDispute(_ context.Context, d dispute.Dispute, _ ...core.DBExecutor) (dispute.Dispute, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	d.ID = uuid.New().String()
	repo.db.disputes[d.ID] = &d
	return d, nil
}

func (repo *disputeRepository) GetDispute(_ context.Context, id string, _ ...core.DBExecutor) (dispute.Dispute, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if d, ok := repo.db.disputes[id]; ok {
		return *d, nil
	}
	return dispute.Dispute{}, dispute.ErrNotFound
}

func (repo *disputeRepository) UpdateDispute(_ context.Context, d dispute.Dispute, _ ...core.DBExecutor) (dispute.Dispute, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.disputes[d.ID]; !ok {
		return dispute.Dispute{}, dispute.ErrNotFound
	}
	repo.db.disputes[d.ID] = &d
	return d, nil
}

func (repo *disputeRepository) DeleteDispute(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.disputes, id)
	return nil
}

func (repo *disputeRepository) HasOpenDispute(_ context.Context, attendanceID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, d := range repo.db.disputes {
		if d.AttendanceID == attendanceID && d.Status == dispute.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (repo *disputeRepository) QueryDisputes(
	_ context.Context,
	schoolID string,
	filter *dispute.QueryFilter,
	_ []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]dispute.Dispute, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	disputes := make([]dispute.Dispute, 0, len(repo.db.disputes))
	for _, d := range repo.db.disputes {
		if d.SchoolID != schoolID {
			continue
		}
		if filter != nil {
			if filter.Status != "" && d.Status != filter.Status {
				continue
			}
			if filter.SubjectID != "" && d.SubjectID != filter.SubjectID {
				continue
			}
		}
		disputes = append(disputes, *d)
	}
	sort.Slice(disputes, func(i, j int) bool { return disputes[i].CreatedAt.After(disputes[j].CreatedAt) })
	return disputes, nil
}
