package emergency

import (
	"time"

	"github.com/google/uuid"
)

// EmergencyQR maps to the emergency_qr table, one row per patient.
// Regenerating replaces the payload; a previously issued payload may still
// decode but no longer matches the stored row and is rejected as stale.
type EmergencyQR struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Payload     string    `db:"payload" json:"qr_data"`
	GeneratedAt time.Time `db:"generated_at" json:"generated_at"`
	ScanCount   int       `db:"scan_count" json:"scan_count"`
}

// EmergencyDetails is the disclosure subset returned to a verified scanner.
// Never the full record archive.
type EmergencyDetails struct {
	BloodType             string   `json:"blood_type"`
	Allergies             []string `json:"allergies"`
	ChronicConditions     []string `json:"chronic_conditions"`
	Medications           []string `json:"medications"`
	EmergencyContactName  string   `json:"emergency_contact_name"`
	EmergencyContactPhone string   `json:"emergency_contact_phone"`
}

// PatientInfo is the scan response body.
type PatientInfo struct {
	UID              string           `json:"uid"`
	Username         string           `json:"username"`
	HospitalName     *string          `json:"hospital_name,omitempty"`
	EmergencyDetails EmergencyDetails `json:"emergency_details"`
	Timestamp        time.Time        `json:"timestamp"`
}
