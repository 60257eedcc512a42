package dispute

import (
	"time"

	"github.com/trezcool/hudhurio/core"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Dispute is a subject's contest of a failed location verification.
// Approved and rejected are terminal states.
type Dispute struct {
	ID             string    `json:"id"`
	SchoolID       string    `json:"school_id"`
	AttendanceID   string    `json:"attendance_id"`
	SubjectID      string    `json:"subject_id"`
	DistanceMeters float64   `json:"distance_meters"`
	Reason         string    `json:"reason"`
	ProofURL       string    `json:"proof_url,omitempty"`
	Status         string    `json:"status"`
	ReviewedBy     string    `json:"reviewed_by,omitempty"`
	ReviewNote     string    `json:"review_note,omitempty"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// NewDispute contains information needed to submit a Dispute.
type NewDispute struct {
	SchoolID     string `json:"school_id" validate:"required"`
	AttendanceID string `json:"attendance_id" validate:"required"`
	SubjectID    string `json:"subject_id" validate:"required"`
	Reason       string `json:"reason" validate:"required"`
	ProofURL     string `json:"proof_url" validate:"omitempty,url"`
}

func (nd *NewDispute) Validate() error {
	nd.SchoolID = core.CleanString(nd.SchoolID)
	nd.AttendanceID = core.CleanString(nd.AttendanceID)
	nd.SubjectID = core.CleanString(nd.SubjectID)
	nd.Reason = core.CleanString(nd.Reason)
	nd.ProofURL = core.CleanString(nd.ProofURL)
	return core.Validate.Struct(nd)
}

// ReviewDispute contains a reviewer's decision on a pending Dispute.
type ReviewDispute struct {
	ReviewerID string `json:"reviewer_id" validate:"required"`
	Approve    bool   `json:"approve"`
	Note       string `json:"note"`
}

func (rv *ReviewDispute) Validate() error {
	rv.ReviewerID = core.CleanString(rv.ReviewerID)
	rv.Note = core.CleanString(rv.Note)
	return core.Validate.Struct(rv)
}

type QueryFilter struct {
	Status    string `query:"status"`
	SubjectID string `query:"subject"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Status == "" && qf.SubjectID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.SubjectID = core.CleanString(qf.SubjectID)
}
