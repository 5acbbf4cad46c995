package emergency

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert replaces the patient's QR record. Regeneration resets the scan
	// counter along with the payload.
	Upsert(ctx context.Context, qr *EmergencyQR) error
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*EmergencyQR, error)

	// IncrementScanCount bumps the counter in the store (single SQL
	// increment, no read-modify-write) and returns the new value.
	IncrementScanCount(ctx context.Context, patientID uuid.UUID) (int, error)
}
