package emergency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/healthid/healthid/internal/domain/audit"
	"github.com/healthid/healthid/internal/domain/consent"
	"github.com/healthid/healthid/internal/domain/identity"
	"github.com/healthid/healthid/internal/platform/auth"
	"github.com/healthid/healthid/internal/platform/db"
	"github.com/healthid/healthid/internal/platform/metrics"
)

var (
	ErrNoQR               = errors.New("no emergency QR generated for this patient")
	ErrNotAuthorized      = errors.New("role is not permitted to scan emergency QR codes")
	ErrPatientUnavailable = errors.New("patient record is unavailable")
)

// PatientDirectory is the slice of the identity resolver the emergency path
// reads from.
type PatientDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
	GetProfile(ctx context.Context, patientID uuid.UUID) (*identity.HealthProfile, error)
}

// HospitalGranter creates the post-scan durable grant for the patient's
// registered hospital.
type HospitalGranter interface {
	AutoGrantEmergency(ctx context.Context, patientID, hospitalID uuid.UUID) (*consent.AccessRequest, error)
}

type Service struct {
	repo   Repository
	codec  *TokenCodec
	users  PatientDirectory
	grants HospitalGranter
	audit  *audit.Service
	tx     db.Beginner
	log    zerolog.Logger

	// maxAge is the lazy expiry window for payloads, checked at verification
	// time against GeneratedAt. Zero disables expiry.
	maxAge time.Duration
}

func NewService(repo Repository, codec *TokenCodec, users PatientDirectory, grants HospitalGranter, auditSvc *audit.Service, tx db.Beginner, log zerolog.Logger, maxAge time.Duration) *Service {
	return &Service{repo: repo, codec: codec, users: users, grants: grants, audit: auditSvc, tx: tx, log: log, maxAge: maxAge}
}

// GenerateQR mints a new payload for the patient, replacing (and thereby
// invalidating) any previous one.
func (s *Service) GenerateQR(ctx context.Context, patientID uuid.UUID) (*EmergencyQR, error) {
	patient, err := s.users.GetUser(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	payload, err := s.codec.Encode(patientID, patient.UID, now)
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}

	qr := &EmergencyQR{PatientID: patientID, Payload: payload}
	err = db.WithTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.repo.Upsert(ctx, qr); err != nil {
			return err
		}
		targetType := audit.TargetEmergencyQR
		_, err := s.audit.Record(ctx, &audit.Entry{
			UserID:     patientID,
			Action:     audit.ActionQRGenerated,
			TargetType: &targetType,
			TargetID:   &qr.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return qr, nil
}

func (s *Service) GetQR(ctx context.Context, patientID uuid.UUID) (*EmergencyQR, error) {
	return s.repo.GetByPatient(ctx, patientID)
}

// RenderPNG returns the patient's current payload as a QR image. High ("H")
// error correction so damaged prints still scan.
func (s *Service) RenderPNG(ctx context.Context, patientID uuid.UUID, size int) ([]byte, error) {
	qr, err := s.repo.GetByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 512
	}
	return qrcode.Encode(qr.Payload, qrcode.High, size)
}

// VerifyScan validates a scanned payload and, on success, increments the scan
// counter, writes the disclosure audit entry, auto-grants the patient's
// registered hospital, and returns the emergency subset of the patient's
// profile. Failed verifications produce no disclosure audit entry; they are
// logged separately for security monitoring.
func (s *Service) VerifyScan(ctx context.Context, payload string, scannerID uuid.UUID, ip string) (*PatientInfo, error) {
	scanner, err := s.users.GetUser(ctx, scannerID)
	if err != nil {
		return nil, err
	}
	if !scanner.Role.CanScanEmergencyQR() {
		metrics.EmergencyScans.WithLabelValues("unauthorized").Inc()
		s.log.Warn().Str("scanner_id", scannerID.String()).Str("role", string(scanner.Role)).
			Str("ip", ip).Msg("emergency scan attempt by disallowed role")
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, scanner.Role)
	}

	claims, err := s.codec.Verify(payload)
	if err != nil {
		metrics.EmergencyScans.WithLabelValues("invalid").Inc()
		s.log.Warn().Str("scanner_id", scannerID.String()).Str("ip", ip).
			Msg("emergency scan with unverifiable payload")
		return nil, err
	}

	qr, err := s.repo.GetByPatient(ctx, claims.PatientID)
	if err != nil {
		if errors.Is(err, ErrNoQR) {
			metrics.EmergencyScans.WithLabelValues("stale").Inc()
			return nil, ErrInvalidOrStaleQRPayload
		}
		return nil, err
	}
	// A cryptographically valid payload must also match the current stored
	// record; regeneration invalidates everything issued before it.
	if qr.Payload != payload {
		metrics.EmergencyScans.WithLabelValues("stale").Inc()
		s.log.Warn().Str("scanner_id", scannerID.String()).Str("patient_id", claims.PatientID.String()).
			Str("ip", ip).Msg("emergency scan with superseded payload")
		return nil, ErrInvalidOrStaleQRPayload
	}
	if s.maxAge > 0 && time.Since(qr.GeneratedAt) > s.maxAge {
		metrics.EmergencyScans.WithLabelValues("expired").Inc()
		return nil, ErrInvalidOrStaleQRPayload
	}

	patient, err := s.users.GetUser(ctx, claims.PatientID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			metrics.EmergencyScans.WithLabelValues("patient_unavailable").Inc()
			return nil, ErrPatientUnavailable
		}
		return nil, err
	}
	if patient.Status == identity.StatusSuspended {
		metrics.EmergencyScans.WithLabelValues("patient_unavailable").Inc()
		return nil, ErrPatientUnavailable
	}

	err = db.WithTx(ctx, s.tx, func(ctx context.Context) error {
		if _, err := s.repo.IncrementScanCount(ctx, claims.PatientID); err != nil {
			return err
		}
		targetType := audit.TargetEmergencyQR
		entry := &audit.Entry{
			UserID:     scannerID,
			Action:     audit.ActionEmergencyScan,
			TargetType: &targetType,
			TargetID:   &qr.ID,
			Metadata: map[string]string{
				"patient_id":   patient.ID.String(),
				"scanner_role": string(scanner.Role),
			},
		}
		if ip != "" {
			entry.IPAddress = &ip
		}
		if _, err := s.audit.Record(ctx, entry); err != nil {
			return err
		}
		// Registered-hospital scanners keep durable access after the
		// emergency; the grant joins the scan transaction so it cannot be
		// lost after disclosure.
		if isRegisteredHospital(scanner, patient) {
			if _, err := s.grants.AutoGrantEmergency(ctx, patient.ID, scanner.ID); err != nil {
				return fmt.Errorf("hospital auto-grant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.EmergencyScans.WithLabelValues("ok").Inc()

	info := &PatientInfo{
		UID:          patient.UID,
		Username:     patient.UID,
		HospitalName: patient.HospitalName,
		Timestamp:    time.Now(),
	}
	if patient.Name != nil {
		info.Username = *patient.Name
	}
	profile, err := s.users.GetProfile(ctx, patient.ID)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		// No profile on file yet; identity fields only.
	case err != nil:
		return nil, err
	default:
		info.EmergencyDetails = EmergencyDetails{
			BloodType:             profile.BloodType,
			Allergies:             profile.Allergies,
			ChronicConditions:     profile.ChronicConditions,
			Medications:           profile.Medications,
			EmergencyContactName:  profile.EmergencyContactName,
			EmergencyContactPhone: profile.EmergencyContactPhone,
		}
	}
	return info, nil
}

func isRegisteredHospital(scanner, patient *identity.User) bool {
	return scanner.Role == auth.RoleHospital &&
		scanner.HospitalName != nil && patient.HospitalName != nil &&
		*scanner.HospitalName == *patient.HospitalName
}
