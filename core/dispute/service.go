package dispute

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/attendance"
	"github.com/trezcool/hudhurio/core/audit"
	"github.com/trezcool/hudhurio/core/geo"
)

// reasonExcerptLen caps the reason excerpt copied into the audit feed;
// the full reason stays on the dispute row.
const reasonExcerptLen = 50

const entityType = "attendance_dispute"

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound       = errors.New("dispute not found")
	ErrRecordVerified = errors.New("cannot dispute a location-verified record")
	ErrRecordMismatch = errors.New("attendance record does not belong to subject")
	ErrDisputeOpen    = errors.New("a pending dispute already exists for this record")
	ErrDisputeClosed  = errors.New("dispute has already been reviewed")
)

type (
	Repository interface {
		CreateDispute(ctx context.Context, d Dispute, exec ...core.DBExecutor) (Dispute, error)
		GetDispute(ctx context.Context, id string, exec ...core.DBExecutor) (Dispute, error)
		UpdateDispute(ctx context.Context, d Dispute, exec ...core.DBExecutor) (Dispute, error)
		// DeleteDispute exists solely for compensation when the paired
		// audit append fails; reviewed disputes are never deleted.
		DeleteDispute(ctx context.Context, id string, exec ...core.DBExecutor) error
		HasOpenDispute(ctx context.Context, attendanceID string, exec ...core.DBExecutor) (bool, error)
		QueryDisputes(ctx context.Context, schoolID string, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Dispute, error)
	}

	Service struct {
		repo     Repository
		attRepo  attendance.Repository
		auditSvc *audit.Service
		mailSvc  core.EmailService
		logger   core.Logger
		conf     *core.Config
	}
)

func NewService(
	repo Repository,
	attRepo attendance.Repository,
	auditSvc *audit.Service,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		attRepo:  attRepo,
		auditSvc: auditSvc,
		mailSvc:  mailSvc,
		logger:   logger,
		conf:     conf,
	}
}

// Submit files a dispute against a failed location verification. The dispute
// row and its DISPUTE_SUBMITTED audit entry form a pair: if the audit append
// fails the dispute row is deleted and the operation reported as failed.
func (svc *Service) Submit(ctx context.Context, nd NewDispute) (Dispute, error) {
	if err := nd.Validate(); err != nil {
		return Dispute{}, err
	}

	rec, err := svc.attRepo.GetRecordByID(ctx, nd.AttendanceID)
	if err != nil {
		if pkgerrors.Cause(err) == attendance.ErrRecordNotFound {
			return Dispute{}, core.NewValidationError(err, core.FieldError{Field: "attendance_id", Error: err.Error()})
		}
		return Dispute{}, pkgerrors.Wrap(err, "getting attendance record")
	}
	if rec.SchoolID != nd.SchoolID || rec.SubjectID != nd.SubjectID {
		return Dispute{}, core.NewValidationError(ErrRecordMismatch, core.FieldError{Field: "attendance_id", Error: ErrRecordMismatch.Error()})
	}
	if rec.LocationVerified {
		return Dispute{}, core.NewValidationError(ErrRecordVerified, core.FieldError{Field: "attendance_id", Error: ErrRecordVerified.Error()})
	}
	if open, err := svc.repo.HasOpenDispute(ctx, nd.AttendanceID); err != nil {
		return Dispute{}, pkgerrors.Wrap(err, "checking open disputes")
	} else if open {
		return Dispute{}, core.NewValidationError(ErrDisputeOpen, core.FieldError{Field: "attendance_id", Error: ErrDisputeOpen.Error()})
	}

	now := NowFunc().UTC()
	d := Dispute{
		SchoolID:       nd.SchoolID,
		AttendanceID:   nd.AttendanceID,
		SubjectID:      nd.SubjectID,
		DistanceMeters: rec.DistanceMeters,
		Reason:         nd.Reason,
		ProofURL:       nd.ProofURL,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	d, err = svc.repo.CreateDispute(ctx, d)
	if err != nil {
		return Dispute{}, pkgerrors.Wrap(err, "creating dispute")
	}

	entry := audit.Entry{
		SchoolID:   d.SchoolID,
		ActorID:    d.SubjectID,
		Action:     audit.ActionDisputeSubmitted,
		Category:   audit.CategorySecurity,
		EntityType: entityType,
		EntityID:   d.ID,
		Details:    fmt.Sprintf("%s (%s away)", excerpt(d.Reason), geo.FormatDistance(d.DistanceMeters)),
		Metadata: map[string]interface{}{
			"attendance_id":   d.AttendanceID,
			"distance_meters": d.DistanceMeters,
		},
	}
	if _, aErr := svc.auditSvc.Log(ctx, entry); aErr != nil {
		// every dispute must have its paired audit entry; compensate
		if delErr := svc.repo.DeleteDispute(ctx, d.ID); delErr != nil {
			svc.logger.Error("dispute compensation failed", delErr, map[string]interface{}{"disputeID": d.ID})
			return Dispute{}, core.NewShutdownError(fmt.Sprintf("dispute %s left without audit entry: %v", d.ID, aErr))
		}
		return Dispute{}, pkgerrors.Wrap(aErr, "appending dispute audit entry")
	}

	svc.notifyAdmin(d)
	return d, nil
}

// Review transitions a pending dispute to approved or rejected. Approval
// retroactively marks the attendance record location-verified.
func (svc *Service) Review(ctx context.Context, id string, rv ReviewDispute) (Dispute, error) {
	if err := rv.Validate(); err != nil {
		return Dispute{}, err
	}

	d, err := svc.repo.GetDispute(ctx, id)
	if err != nil {
		return Dispute{}, err
	}
	if d.Status != StatusPending {
		return Dispute{}, core.NewValidationError(ErrDisputeClosed, core.FieldError{Field: "status", Error: ErrDisputeClosed.Error()})
	}

	prev := d
	action := audit.ActionDisputeRejected
	d.Status = StatusRejected
	if rv.Approve {
		action = audit.ActionDisputeApproved
		d.Status = StatusApproved
	}
	d.ReviewedBy = rv.ReviewerID
	d.ReviewNote = rv.Note
	d.UpdatedAt = NowFunc().UTC()

	d, err = svc.repo.UpdateDispute(ctx, d)
	if err != nil {
		return Dispute{}, pkgerrors.Wrap(err, "updating dispute")
	}

	if rv.Approve {
		if err := svc.attRepo.MarkRecordVerified(ctx, d.AttendanceID); err != nil {
			svc.revert(ctx, prev)
			return Dispute{}, pkgerrors.Wrap(err, "marking record verified")
		}
	}

	entry := audit.Entry{
		SchoolID:   d.SchoolID,
		ActorID:    rv.ReviewerID,
		Action:     action,
		Category:   audit.CategorySecurity,
		EntityType: entityType,
		EntityID:   d.ID,
		Details:    excerpt(rv.Note),
		Metadata: map[string]interface{}{
			"attendance_id": d.AttendanceID,
			"subject_id":    d.SubjectID,
		},
	}
	if _, aErr := svc.auditSvc.Log(ctx, entry); aErr != nil {
		svc.revert(ctx, prev)
		return Dispute{}, pkgerrors.Wrap(aErr, "appending review audit entry")
	}
	return d, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Dispute, error) {
	return svc.repo.GetDispute(ctx, id)
}

func (svc *Service) Query(ctx context.Context, schoolID string, filter *QueryFilter, ordering ...core.DBOrdering) ([]Dispute, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryDisputes(ctx, schoolID, filter, ordering)
}

// revert best-effort restores a dispute after a failed review side effect.
func (svc *Service) revert(ctx context.Context, prev Dispute) {
	if _, err := svc.repo.UpdateDispute(ctx, prev); err != nil {
		svc.logger.Error("dispute revert failed", err, map[string]interface{}{"disputeID": prev.ID})
	}
}

func (svc *Service) notifyAdmin(d Dispute) {
	if svc.mailSvc == nil || svc.conf.AdminEmail == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: svc.conf.AdminEmail}},
		Subject: "New attendance dispute",
		BodyStr: fmt.Sprintf(
			"Subject %s disputed attendance record %s (measured %s from campus).\n\nReason: %s\n\nReview it at %s/disputes/%s",
			d.SubjectID, d.AttendanceID, geo.FormatDistance(d.DistanceMeters), d.Reason, svc.conf.FrontendBaseURL, d.ID,
		),
	})
}

func excerpt(s string) string {
	if len(s) <= reasonExcerptLen {
		return s
	}
	return s[:reasonExcerptLen]
}
