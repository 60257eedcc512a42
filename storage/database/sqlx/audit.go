package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/audit"
)

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if tx, ok := svcExec[0].(*sql.Tx); ok {
			return sqlx.NewTx(tx, repo.db.DriverName())
		}
	}
	return repo.db
}

type auditRow struct {
	ID         string      `db:"id"`
	SchoolID   string      `db:"school_id"`
	ActorID    null.String `db:"actor_id"`
	Action     string      `db:"action"`
	Category   string      `db:"category"`
	EntityType null.String `db:"entity_type"`
	EntityID   null.String `db:"entity_id"`
	Details    null.String `db:"details"`
	Metadata   null.JSON   `db:"metadata"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (repo auditRepository) unpack(row auditRow) audit.Entry {
	e := audit.Entry{
		ID:         row.ID,
		SchoolID:   row.SchoolID,
		ActorID:    row.ActorID.String,
		Action:     row.Action,
		Category:   row.Category,
		EntityType: row.EntityType.String,
		EntityID:   row.EntityID.String,
		Details:    row.Details.String,
		CreatedAt:  row.CreatedAt,
	}
	if row.Metadata.Valid {
		_ = json.Unmarshal(row.Metadata.JSON, &e.Metadata)
	}
	return e
}

// CreateEntry appends an entry; there is deliberately no update or delete.
func (repo auditRepository) CreateEntry(ctx context.Context, e audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	e.ID = uuid.New().String()

	var meta null.JSON
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return audit.Entry{}, errors.Wrap(err, "marshaling audit metadata")
		}
		meta = null.JSONFrom(raw)
	}

	q := `
INSERT INTO audit_log (id, school_id, actor_id, action, category, entity_type, entity_id, details, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		e.ID, e.SchoolID, null.NewString(e.ActorID, e.ActorID != ""), e.Action, e.Category,
		null.NewString(e.EntityType, e.EntityType != ""), null.NewString(e.EntityID, e.EntityID != ""),
		null.NewString(e.Details, e.Details != ""), meta, e.CreatedAt.UTC())
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return e, nil
}

func (repo auditRepository) QueryEntries(ctx context.Context, schoolID string, filter *audit.QueryFilter, exec ...core.DBExecutor) ([]audit.Entry, error) {
	where := []string{"school_id = $1"}
	args := []interface{}{schoolID}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.Category != "" {
			where = append(where, "category = "+arg(filter.Category))
		}
		if filter.Action != "" {
			where = append(where, "action = "+arg(filter.Action))
		}
		if filter.EntityType != "" {
			where = append(where, "entity_type = "+arg(filter.EntityType))
		}
		if filter.EntityID != "" {
			where = append(where, "entity_id = "+arg(filter.EntityID))
		}
	}

	q := "SELECT * FROM audit_log WHERE " + strings.Join(where, " AND ") + " ORDER BY created_at DESC"
	var rows []auditRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, repo.unpack(row))
	}
	return entries, nil
}
