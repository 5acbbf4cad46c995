package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthid/healthid/internal/platform/auth"
)

// Status is a user's verification state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusSuspended:
		return true
	}
	return false
}

// User maps to the app_user table. UID and wallet address are each globally
// unique. Role is immutable outside the KYC approval flow.
type User struct {
	ID            uuid.UUID `db:"id" json:"id"`
	UID           string    `db:"uid" json:"uid"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address"`
	Name          *string   `db:"name" json:"name,omitempty"`
	Role          auth.Role `db:"role" json:"role"`
	Status        Status    `db:"status" json:"status"`
	HospitalName  *string   `db:"hospital_name" json:"hospital_name,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// HealthProfile maps to the health_profile table. Patient-owned; the emergency
// scan path discloses exactly this subset and nothing more.
type HealthProfile struct {
	PatientID             uuid.UUID `db:"patient_id" json:"patient_id"`
	BloodType             string    `db:"blood_type" json:"blood_type"`
	Allergies             []string  `db:"allergies" json:"allergies"`
	ChronicConditions     []string  `db:"chronic_conditions" json:"chronic_conditions"`
	Medications           []string  `db:"medications" json:"medications"`
	EmergencyContactName  string    `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone string    `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// KYCSubmission maps to the kyc_submission table. The supporting document is
// pinned to the blob store and referenced by CID.
type KYCSubmission struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	RequestedRole auth.Role  `db:"requested_role" json:"requested_role"`
	DocumentCID   string     `db:"document_cid" json:"document_cid"`
	Status        string     `db:"status" json:"status"`
	SubmittedAt   time.Time  `db:"submitted_at" json:"submitted_at"`
	ReviewedAt    *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// KYC submission states.
const (
	KYCPending  = "pending"
	KYCApproved = "approved"
	KYCRejected = "rejected"
)

// Document maps to the patient_document table.
type Document struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	CID         string    `db:"cid" json:"cid"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploaded_at"`
}
