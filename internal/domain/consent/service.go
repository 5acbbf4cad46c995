package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthid/healthid/internal/domain/audit"
	"github.com/healthid/healthid/internal/domain/identity"
	"github.com/healthid/healthid/internal/platform/auth"
	"github.com/healthid/healthid/internal/platform/db"
	"github.com/healthid/healthid/internal/platform/ledger"
	"github.com/healthid/healthid/internal/platform/metrics"
)

var (
	ErrNotFound               = errors.New("access request not found")
	ErrNotAuthorized          = errors.New("caller is not authorized for this operation")
	ErrInvalidState           = errors.New("transition not legal from current state")
	ErrDuplicateActiveRequest = errors.New("an active grant already exists for this pair")
	ErrInvalidAccessType      = errors.New("invalid access type")
)

// UserDirectory is the slice of the identity resolver the consent ledger
// needs: role validation and wallet addresses for the ledger mirror.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type Service struct {
	repo   Repository
	audit  *audit.Service
	users  UserDirectory
	mirror ledger.Mirror
	tx     db.Beginner
	log    zerolog.Logger
}

func NewService(repo Repository, auditSvc *audit.Service, users UserDirectory, mirror ledger.Mirror, tx db.Beginner, log zerolog.Logger) *Service {
	if mirror == nil {
		mirror = ledger.NopMirror{}
	}
	return &Service{repo: repo, audit: auditSvc, users: users, mirror: mirror, tx: tx, log: log}
}

// RequestAccess files a pending request from requester to patient. Emergency
// requests may coexist with an active grant; everything else collides with it.
func (s *Service) RequestAccess(ctx context.Context, requesterID, patientID uuid.UUID, accessType AccessType, reason string) (*AccessRequest, error) {
	if !accessType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccessType, accessType)
	}

	requester, err := s.users.GetUser(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("resolve requester: %w", err)
	}
	if !requester.Role.CanRequestAccess() {
		return nil, fmt.Errorf("%w: role %s may not request access", ErrNotAuthorized, requester.Role)
	}
	if _, err := s.users.GetUser(ctx, patientID); err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}

	if accessType != AccessEmergency {
		if _, err := s.repo.ActiveGrant(ctx, patientID, requesterID); err == nil {
			return nil, ErrDuplicateActiveRequest
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	req := &AccessRequest{
		PatientID:     patientID,
		RequesterID:   requesterID,
		RequesterRole: requester.Role,
		AccessType:    accessType,
		Reason:        reason,
		Status:        StatusPending,
	}
	err = db.WithTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, req); err != nil {
			return err
		}
		targetType := audit.TargetAccessRequest
		_, err := s.audit.Record(ctx, &audit.Entry{
			UserID:     requesterID,
			Action:     audit.ActionAccessRequested,
			TargetType: &targetType,
			TargetID:   &req.ID,
			Metadata:   map[string]string{"access_type": string(accessType), "patient_id": patientID.String()},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.ConsentTransitions.WithLabelValues(string(StatusPending)).Inc()
	return req, nil
}

// RespondToRequest applies the patient's grant or reject decision. The store
// serializes racing decisions on the same pending row: exactly one caller
// wins, the rest observe ErrInvalidState.
func (s *Service) RespondToRequest(ctx context.Context, patientID, requestID uuid.UUID, decision Decision) (*AccessRequest, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.PatientID != patientID {
		return nil, fmt.Errorf("%w: only the patient may respond", ErrNotAuthorized)
	}

	var next Status
	var action string
	switch decision {
	case DecisionGrant:
		next, action = StatusGranted, audit.ActionAccessGranted
	case DecisionReject:
		next, action = StatusRejected, audit.ActionAccessRejected
	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	now := time.Now()
	err = db.WithTx(ctx, s.tx, func(ctx context.Context) error {
		won, err := s.repo.Transition(ctx, requestID, StatusPending, next, now)
		if err != nil {
			return err
		}
		if !won {
			return fmt.Errorf("%w: request is not pending", ErrInvalidState)
		}
		targetType := audit.TargetAccessRequest
		_, err = s.audit.Record(ctx, &audit.Entry{
			UserID:     patientID,
			Action:     action,
			TargetType: &targetType,
			TargetID:   &requestID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.ConsentTransitions.WithLabelValues(string(next)).Inc()

	if next == StatusGranted {
		s.mirrorGrant(ctx, req, true)
	}

	req.Status = next
	req.RespondedAt = &now
	return req, nil
}

// RevokeAccess terminates an active grant. Effective immediately: CheckAccess
// reads the store on every call, so there is no window where a revoked grant
// still reads true.
func (s *Service) RevokeAccess(ctx context.Context, patientID, requestID uuid.UUID) (*AccessRequest, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.PatientID != patientID {
		return nil, fmt.Errorf("%w: only the patient may revoke", ErrNotAuthorized)
	}

	now := time.Now()
	err = db.WithTx(ctx, s.tx, func(ctx context.Context) error {
		won, err := s.repo.Transition(ctx, requestID, StatusGranted, StatusRevoked, now)
		if err != nil {
			return err
		}
		if !won {
			return fmt.Errorf("%w: request is not granted", ErrInvalidState)
		}
		targetType := audit.TargetAccessRequest
		_, err = s.audit.Record(ctx, &audit.Entry{
			UserID:     patientID,
			Action:     audit.ActionAccessRevoked,
			TargetType: &targetType,
			TargetID:   &requestID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.ConsentTransitions.WithLabelValues(string(StatusRevoked)).Inc()

	s.mirrorGrant(ctx, req, false)

	req.Status = StatusRevoked
	req.RespondedAt = &now
	return req, nil
}

// CheckAccess reports whether the requester currently holds a grant. It always
// hits the store; callers must not cache the result beyond a single request.
func (s *Service) CheckAccess(ctx context.Context, patientID, requesterID uuid.UUID) (bool, error) {
	_, err := s.repo.ActiveGrant(ctx, patientID, requesterID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AutoGrantEmergency creates an already-granted emergency request for the
// patient's registered hospital after a verified scan. This is the documented
// exception to patient-only granting. Idempotent: an existing active grant is
// returned as-is.
func (s *Service) AutoGrantEmergency(ctx context.Context, patientID, hospitalID uuid.UUID) (*AccessRequest, error) {
	if existing, err := s.repo.ActiveGrant(ctx, patientID, hospitalID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	req := &AccessRequest{
		PatientID:     patientID,
		RequesterID:   hospitalID,
		RequesterRole: auth.RoleHospital,
		AccessType:    AccessEmergency,
		Reason:        "emergency QR scan by registered hospital",
		Status:        StatusGranted,
		RespondedAt:   &now,
	}
	err := db.WithTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, req); err != nil {
			return err
		}
		targetType := audit.TargetAccessRequest
		_, err := s.audit.Record(ctx, &audit.Entry{
			UserID:     hospitalID,
			Action:     audit.ActionAccessGranted,
			TargetType: &targetType,
			TargetID:   &req.ID,
			Metadata:   map[string]string{"via": "emergency_scan", "patient_id": patientID.String()},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.ConsentTransitions.WithLabelValues(string(StatusGranted)).Inc()

	s.mirrorGrant(ctx, req, true)
	return req, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*AccessRequest, int, error) {
	return s.repo.ListByPatient(ctx, patientID, status, limit, offset)
}

func (s *Service) ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*AccessRequest, int, error) {
	return s.repo.ListByRequester(ctx, requesterID, limit, offset)
}

// mirrorGrant relays the decision to the external ledger. Best effort: the
// relational store is the source of truth and mirror failures are only logged.
func (s *Service) mirrorGrant(ctx context.Context, req *AccessRequest, grant bool) {
	patient, err := s.users.GetUser(ctx, req.PatientID)
	if err != nil {
		s.log.Warn().Err(err).Msg("ledger mirror: resolve patient")
		return
	}
	requester, err := s.users.GetUser(ctx, req.RequesterID)
	if err != nil {
		s.log.Warn().Err(err).Msg("ledger mirror: resolve requester")
		return
	}

	p := common.HexToAddress(patient.WalletAddress)
	r := common.HexToAddress(requester.WalletAddress)
	if grant {
		err = s.mirror.GrantAccess(ctx, p, r)
	} else {
		err = s.mirror.RevokeAccess(ctx, p, r)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("request_id", req.ID.String()).Msg("ledger mirror call failed")
	}
}
