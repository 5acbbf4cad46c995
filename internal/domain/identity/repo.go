package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/healthid/healthid/internal/platform/auth"
)

type UserRepository interface {
	// Create inserts the user unless the wallet address already exists, in
	// which case it is a no-op (concurrent first connects are idempotent).
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByWallet(ctx context.Context, walletAddress string) (*User, error)
	GetByUID(ctx context.Context, uid string) (*User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateRoleAndStatus(ctx context.Context, id uuid.UUID, role auth.Role, status Status, hospitalName *string) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}

type ProfileRepository interface {
	Upsert(ctx context.Context, p *HealthProfile) error
	GetByPatient(ctx context.Context, patientID uuid.UUID) (*HealthProfile, error)
}

type KYCRepository interface {
	Create(ctx context.Context, s *KYCSubmission) error
	LatestByUser(ctx context.Context, userID uuid.UUID) (*KYCSubmission, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type DocumentRepository interface {
	Create(ctx context.Context, d *Document) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Document, int, error)
	GetByCID(ctx context.Context, patientID uuid.UUID, cid string) (*Document, error)
}
