package audit

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/hudhurio/core"
)

var (
	NowFunc = time.Now // mockable

	ErrMissingFields = errors.New("audit entry missing required fields")
)

type (
	Repository interface {
		// CreateEntry appends an entry; entries are immutable once written.
		CreateEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (Entry, error)
		// QueryEntries returns entries for a school, most recent first.
		QueryEntries(ctx context.Context, schoolID string, filter *QueryFilter, exec ...core.DBExecutor) ([]Entry, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Log appends an entry. An optional executor lets callers fold the append
// into their own transaction so "every critical mutation produces exactly one
// immutable log entry" can be enforced atomically.
func (svc *Service) Log(ctx context.Context, e Entry, exec ...core.DBExecutor) (Entry, error) {
	if e.SchoolID == "" || e.Action == "" || e.Category == "" {
		return Entry{}, ErrMissingFields
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = NowFunc().UTC()
	}
	entry, err := svc.repo.CreateEntry(ctx, e, exec...)
	if err != nil {
		return Entry{}, pkgerrors.Wrap(err, "appending audit entry")
	}
	return entry, nil
}

// Feed returns a school's audit entries, most recent first.
func (svc *Service) Feed(ctx context.Context, schoolID string, filter *QueryFilter) ([]Entry, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryEntries(ctx, schoolID, filter)
}
