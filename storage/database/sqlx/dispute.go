package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/dispute"
)

type disputeRepository struct {
	db *sqlx.DB
}

var _ dispute.Repository = (*disputeRepository)(nil) // interface compliance check

func NewDisputeRepository(db *sqlx.DB) *disputeRepository {
	return &disputeRepository{db: db}
}

func (repo disputeRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if tx, ok := svcExec[0].(*sql.Tx); ok {
			return sqlx.NewTx(tx, repo.db.DriverName())
		}
	}
	return repo.db
}

type disputeRow struct {
	ID             string      `db:"id"`
	SchoolID       string      `db:"school_id"`
	AttendanceID   string      `db:"attendance_id"`
	SubjectID      string      `db:"subject_id"`
	DistanceMeters float64     `db:"distance_meters"`
	Reason         string      `db:"reason"`
	ProofURL       null.String `db:"proof_url"`
	Status         string      `db:"status"`
	ReviewedBy     null.String `db:"reviewed_by"`
	ReviewNote     null.String `db:"review_note"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (repo disputeRepository) unpack(row disputeRow) dispute.Dispute {
	return dispute.Dispute{
		ID:             row.ID,
		SchoolID:       row.SchoolID,
		AttendanceID:   row.AttendanceID,
		SubjectID:      row.SubjectID,
		DistanceMeters: row.DistanceMeters,
		Reason:         row.Reason,
		ProofURL:       row.ProofURL.String,
		Status:         row.Status,
		ReviewedBy:     row.ReviewedBy.String,
		ReviewNote:     row.ReviewNote.String,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func (repo disputeRepository) CreateDispute(ctx context.Context, d dispute.Dispute, exec ...core.DBExecutor) (dispute.Dispute, error) {
	d.ID = uuid.New().String()
	q := `
INSERT INTO dispute (id, school_id, attendance_id, subject_id, distance_meters, reason, proof_url, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		d.ID, d.SchoolID, d.AttendanceID, d.SubjectID, d.DistanceMeters, d.Reason,
		null.NewString(d.ProofURL, d.ProofURL != ""), d.Status, d.CreatedAt.UTC(), d.UpdatedAt.UTC())
	if err != nil {
		return dispute.Dispute{}, errors.Wrap(err, "inserting dispute")
	}
	return d, nil
}

func (repo disputeRepository) GetDispute(ctx context.Context, id string, exec ...core.DBExecutor) (dispute.Dispute, error) {
	var row disputeRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT * FROM dispute WHERE id = $1", id)
	if err != nil {
		return dispute.Dispute{}, trapNoRowsErr(err, dispute.ErrNotFound, "getting dispute")
	}
	return repo.unpack(row), nil
}

func (repo disputeRepository) UpdateDispute(ctx context.Context, d dispute.Dispute, exec ...core.DBExecutor) (dispute.Dispute, error) {
	q := `
UPDATE dispute SET status = $1, reviewed_by = $2, review_note = $3, updated_at = $4
WHERE id = $5`
	res, err := repo.getExec(exec).ExecContext(ctx, q,
		d.Status, null.NewString(d.ReviewedBy, d.ReviewedBy != ""),
		null.NewString(d.ReviewNote, d.ReviewNote != ""), d.UpdatedAt.UTC(), d.ID)
	if err != nil {
		return dispute.Dispute{}, errors.Wrap(err, "updating dispute")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dispute.Dispute{}, dispute.ErrNotFound
	}
	return d, nil
}

func (repo disputeRepository) DeleteDispute(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM dispute WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting dispute")
	}
	return nil
}

func (repo disputeRepository) HasOpenDispute(ctx context.Context, attendanceID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.getExec(exec), &exists,
		"SELECT EXISTS (SELECT 1 FROM dispute WHERE attendance_id = $1 AND status = $2)", attendanceID, dispute.StatusPending)
	if err != nil {
		return false, errors.Wrap(err, "checking open disputes")
	}
	return exists, nil
}

func (repo disputeRepository) QueryDisputes(
	ctx context.Context,
	schoolID string,
	filter *dispute.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]dispute.Dispute, error) {
	where := []string{"school_id = $1"}
	args := []interface{}{schoolID}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.Status != "" {
			where = append(where, "status = "+arg(filter.Status))
		}
		if filter.SubjectID != "" {
			where = append(where, "subject_id = "+arg(filter.SubjectID))
		}
	}

	orderBy := "created_at DESC"
	if len(ordering) > 0 {
		parts := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			parts = append(parts, ord.String())
		}
		orderBy = strings.Join(parts, ", ")
	}

	q := "SELECT * FROM dispute WHERE " + strings.Join(where, " AND ") + " ORDER BY " + orderBy
	var rows []disputeRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying disputes")
	}

	disputes := make([]dispute.Dispute, 0, len(rows))
	for _, row := range rows {
		disputes = append(disputes, repo.unpack(row))
	}
	return disputes, nil
}
