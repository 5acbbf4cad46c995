package consent

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthid/healthid/internal/platform/auth"
)

// AccessType describes the breadth of a requested grant.
type AccessType string

const (
	AccessFull      AccessType = "full"
	AccessEmergency AccessType = "emergency"
	AccessLimited   AccessType = "limited"
)

func (t AccessType) Valid() bool {
	switch t {
	case AccessFull, AccessEmergency, AccessLimited:
		return true
	}
	return false
}

// Status is the request's position in the consent state machine:
// pending -> {granted, rejected}; granted -> revoked. rejected and revoked
// are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusGranted  Status = "granted"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
)

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusRevoked
}

// CanTransition reports whether the state machine permits moving to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusGranted || next == StatusRejected
	case StatusGranted:
		return next == StatusRevoked
	case StatusRejected, StatusRevoked:
		return false
	}
	return false
}

// Decision is the patient's answer to a pending request.
type Decision string

const (
	DecisionGrant  Decision = "grant"
	DecisionReject Decision = "reject"
)

// AccessRequest maps to the access_request table.
type AccessRequest struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	RequesterID   uuid.UUID  `db:"requester_id" json:"requester_id"`
	RequesterRole auth.Role  `db:"requester_role" json:"requester_role"`
	AccessType    AccessType `db:"access_type" json:"access_type"`
	Reason        string     `db:"reason" json:"reason"`
	Status        Status     `db:"status" json:"status"`
	RequestedAt   time.Time  `db:"requested_at" json:"requested_at"`
	RespondedAt   *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}

// Active reports whether the request currently grants access.
func (r *AccessRequest) Active() bool {
	return r.Status == StatusGranted
}
