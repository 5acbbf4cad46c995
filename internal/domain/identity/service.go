package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/healthid/healthid/internal/domain/audit"
	"github.com/healthid/healthid/internal/platform/auth"
	"github.com/healthid/healthid/internal/platform/blobstore"
	"github.com/healthid/healthid/internal/platform/db"
)

var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrNotFound       = errors.New("user not found")
	ErrNotAuthorized  = errors.New("caller is not authorized for this operation")
	ErrInvalidRole    = errors.New("invalid role")
)

type Service struct {
	users    UserRepository
	profiles ProfileRepository
	kyc      KYCRepository
	docs     DocumentRepository
	audit    *audit.Service
	blobs    blobstore.Store
	tx       db.Beginner
}

func NewService(users UserRepository, profiles ProfileRepository, kyc KYCRepository, docs DocumentRepository, auditSvc *audit.Service, blobs blobstore.Store, tx db.Beginner) *Service {
	return &Service{users: users, profiles: profiles, kyc: kyc, docs: docs, audit: auditSvc, blobs: blobs, tx: tx}
}

// newUID mints a stable application-level identifier, distinct from the wallet
// address. 8 random bytes keep collisions against the UNIQUE column out of
// reach at any plausible user count.
func newUID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}
	return "HID-" + strings.ToUpper(hex.EncodeToString(b[:])), nil
}

// Resolve maps a wallet address to a user. The first call for an address
// provisions a patient/pending record; repeated calls are read-only. Signature
// verification happens upstream; this layer only validates the address shape.
func (s *Service) Resolve(ctx context.Context, walletAddress string) (*User, error) {
	if !common.IsHexAddress(walletAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, walletAddress)
	}
	normalized := common.HexToAddress(walletAddress).Hex()

	u, err := s.users.GetByWallet(ctx, normalized)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	uid, err := newUID()
	if err != nil {
		return nil, err
	}

	// First-ever connect for this address. The insert is a no-op when a
	// concurrent request wins the race; either way the follow-up read
	// returns the single provisioned row.
	nu := &User{
		UID:           uid,
		WalletAddress: normalized,
		Role:          auth.RolePatient,
		Status:        StatusPending,
	}
	if err := s.users.Create(ctx, nu); err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}
	return s.users.GetByWallet(ctx, normalized)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// SubmitKYC pins the supporting document and files a pending submission.
func (s *Service) SubmitKYC(ctx context.Context, userID uuid.UUID, requestedRole auth.Role, document []byte) (*KYCSubmission, error) {
	if !requestedRole.Valid() || requestedRole == auth.RoleAdmin {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, requestedRole)
	}
	cid, err := s.blobs.Put(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("pin kyc document: %w", err)
	}

	sub := &KYCSubmission{
		UserID:        userID,
		RequestedRole: requestedRole,
		DocumentCID:   cid,
		Status:        KYCPending,
	}
	err = db.WithTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.kyc.Create(ctx, sub); err != nil {
			return err
		}
		targetType := audit.TargetUser
		_, err := s.audit.Record(ctx, &audit.Entry{
			UserID:     userID,
			Action:     audit.ActionKYCSubmitted,
			TargetType: &targetType,
			TargetID:   &userID,
			Metadata:   map[string]string{"requested_role": string(requestedRole), "document_cid": cid},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ApproveKYC verifies the user and applies the role change. Only this flow may
// change a role. hospitalName is set when approving a hospital account.
func (s *Service) ApproveKYC(ctx context.Context, adminID, userID uuid.UUID, role auth.Role, hospitalName *string) (*User, error) {
	if !role.Valid() || role == auth.RoleAdmin {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	err := db.WithTx(ctx, s.tx, func(ctx context.Context) error {
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			return err
		}
		if err := s.users.UpdateRoleAndStatus(ctx, userID, role, StatusVerified, hospitalName); err != nil {
			return err
		}
		if sub, err := s.kyc.LatestByUser(ctx, userID); err == nil && sub.Status == KYCPending {
			if err := s.kyc.UpdateStatus(ctx, sub.ID, KYCApproved); err != nil {
				return err
			}
		}
		targetType := audit.TargetUser
		_, err := s.audit.Record(ctx, &audit.Entry{
			UserID:     adminID,
			Action:     audit.ActionKYCApproved,
			TargetType: &targetType,
			TargetID:   &userID,
			Metadata:   map[string]string{"role": string(role)},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// Suspend blocks the user. Administrators act on User.status only, never on
// consent or QR state.
func (s *Service) Suspend(ctx context.Context, adminID, userID uuid.UUID) error {
	return db.WithTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.users.UpdateStatus(ctx, userID, StatusSuspended); err != nil {
			return err
		}
		targetType := audit.TargetUser
		_, err := s.audit.Record(ctx, &audit.Entry{
			UserID:     adminID,
			Action:     audit.ActionUserSuspended,
			TargetType: &targetType,
			TargetID:   &userID,
		})
		return err
	})
}

// UpsertProfile writes the patient's health profile. Patient-owned: callers
// must pass the authenticated patient's own id.
func (s *Service) UpsertProfile(ctx context.Context, patientID uuid.UUID, p *HealthProfile) error {
	p.PatientID = patientID
	return s.profiles.Upsert(ctx, p)
}

func (s *Service) GetProfile(ctx context.Context, patientID uuid.UUID) (*HealthProfile, error) {
	return s.profiles.GetByPatient(ctx, patientID)
}

// UploadDocument pins patient-owned bytes and records the CID.
func (s *Service) UploadDocument(ctx context.Context, patientID uuid.UUID, fileName, contentType string, data []byte) (*Document, error) {
	cid, err := s.blobs.Put(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("pin document: %w", err)
	}
	d := &Document{
		PatientID:   patientID,
		FileName:    fileName,
		ContentType: contentType,
		CID:         cid,
	}
	if err := s.docs.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDocuments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Document, int, error) {
	return s.docs.ListByPatient(ctx, patientID, limit, offset)
}

// FetchDocument returns the document bytes, scoped to the owning patient.
func (s *Service) FetchDocument(ctx context.Context, patientID uuid.UUID, cid string) (*Document, []byte, error) {
	d, err := s.docs.GetByCID(ctx, patientID, cid)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, d.CID)
	if err != nil {
		return nil, nil, err
	}
	return d, data, nil
}
