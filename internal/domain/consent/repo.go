package consent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *AccessRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error)

	// Transition performs a conditional update: the row moves from `from` to
	// `to` only if it is still in `from`. Returns false when another writer
	// won the race (or the request was never in `from`), so racing
	// grant/reject pairs serialize in the store, not in application memory.
	Transition(ctx context.Context, id uuid.UUID, from, to Status, respondedAt time.Time) (bool, error)

	// ActiveGrant returns the most recently responded-to request for the
	// pair when that request is granted, or ErrNotFound. Superseded rows
	// stay in history but never grant access.
	ActiveGrant(ctx context.Context, patientID, requesterID uuid.UUID) (*AccessRequest, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*AccessRequest, int, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*AccessRequest, int, error)
}
