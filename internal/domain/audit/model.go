package audit

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the consent, emergency and KYC flows.
const (
	ActionAccessRequested = "access_requested"
	ActionAccessGranted   = "access_granted"
	ActionAccessRejected  = "access_rejected"
	ActionAccessRevoked   = "access_revoked"
	ActionEmergencyScan   = "emergency_scan"
	ActionQRGenerated     = "qr_generated"
	ActionKYCSubmitted    = "kyc_submitted"
	ActionKYCApproved     = "kyc_approved"
	ActionUserSuspended   = "user_suspended"
)

// Target types referenced by audit entries.
const (
	TargetAccessRequest = "access_request"
	TargetEmergencyQR   = "emergency_qr"
	TargetUser          = "user"
)

// Entry maps to the audit_log table. The table is append-only: no update or
// delete exists anywhere in the repository contract.
type Entry struct {
	ID         uuid.UUID         `db:"id" json:"id"`
	UserID     uuid.UUID         `db:"user_id" json:"user_id"`
	Action     string            `db:"action" json:"action"`
	TargetType *string           `db:"target_type" json:"target_type,omitempty"`
	TargetID   *uuid.UUID        `db:"target_id" json:"target_id,omitempty"`
	Metadata   map[string]string `db:"metadata" json:"metadata,omitempty"`
	IPAddress  *string           `db:"ip_address" json:"ip_address,omitempty"`
	Timestamp  time.Time         `db:"timestamp" json:"timestamp"`
}

// Filter narrows audit queries. Zero values mean "any".
type Filter struct {
	UserID   uuid.UUID
	Action   string
	TargetID uuid.UUID
}
