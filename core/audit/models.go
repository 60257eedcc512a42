package audit

import (
	"time"

	"github.com/trezcool/hudhurio/core"
)

// Categories
const (
	CategorySecurity = "Security"
	CategorySettings = "Settings"
)

// Actions
const (
	ActionDisputeSubmitted = "DISPUTE_SUBMITTED"
	ActionDisputeApproved  = "DISPUTE_APPROVED"
	ActionDisputeRejected  = "DISPUTE_REJECTED"
	ActionGeofenceUpdated  = "GEOFENCE_UPDATED"
	ActionDeviceRegistered = "DEVICE_REGISTERED"
)

// Entry is one append-only forensic record. Entries reference other entities
// by id only and are never updated or deleted; removing a source entity must
// not remove its history.
type Entry struct {
	ID         string                 `json:"id"`
	SchoolID   string                 `json:"school_id"`
	ActorID    string                 `json:"actor_id"`
	Action     string                 `json:"action"`
	Category   string                 `json:"category"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Details    string                 `json:"details"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"` // UTC
}

type QueryFilter struct {
	Category   string `query:"category"`
	Action     string `query:"action"`
	EntityType string `query:"entity_type"`
	EntityID   string `query:"entity_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Category == "" && qf.Action == "" && qf.EntityType == "" && qf.EntityID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Category = core.CleanString(qf.Category)
	qf.Action = core.CleanString(qf.Action)
	qf.EntityType = core.CleanString(qf.EntityType)
	qf.EntityID = core.CleanString(qf.EntityID)
}
