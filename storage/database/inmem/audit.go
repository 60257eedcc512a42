package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(_ context.Context, e audit.Entry, _ ...core.DBExecutor) (audit.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e.ID = uuid.New().String()
	repo.db.audits = append(repo.db.audits, &e)
	return e, nil
}

func (repo *auditRepository) QueryEntries(_ context.Context, schoolID string, filter *audit.QueryFilter, _ ...core.DBExecutor) ([]audit.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]audit.Entry, 0, len(repo.db.audits))
	for _, e := range repo.db.audits {
		if e.SchoolID != schoolID {
			continue
		}
		if filter != nil {
			if filter.Category != "" && e.Category != filter.Category {
				continue
			}
			if filter.Action != "" && e.Action != filter.Action {
				continue
			}
			if filter.EntityType != "" && e.EntityType != filter.EntityType {
				continue
			}
			if filter.EntityID != "" && e.EntityID != filter.EntityID {
				continue
			}
		}
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}
