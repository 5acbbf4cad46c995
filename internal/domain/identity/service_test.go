package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/healthid/healthid/internal/domain/audit"
	"github.com/healthid/healthid/internal/platform/auth"
	"github.com/healthid/healthid/internal/platform/blobstore"
)

// -- Mock Repositories --

type mockUserRepo struct {
	byID     map[uuid.UUID]*User
	byWallet map[string]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byID: make(map[uuid.UUID]*User), byWallet: make(map[string]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	if _, exists := m.byWallet[u.WalletAddress]; exists {
		return nil
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	m.byWallet[u.WalletAddress] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByWallet(_ context.Context, walletAddress string) (*User, error) {
	u, ok := m.byWallet[walletAddress]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByUID(_ context.Context, uid string) (*User, error) {
	for _, u := range m.byID {
		if u.UID == uid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockUserRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	return nil
}

func (m *mockUserRepo) UpdateRoleAndStatus(_ context.Context, id uuid.UUID, role auth.Role, status Status, hospitalName *string) error {
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	u.Status = status
	if hospitalName != nil {
		u.HospitalName = hospitalName
	}
	return nil
}

func (m *mockUserRepo) List(_ context.Context, limit, offset int) ([]*User, int, error) {
	var result []*User
	for _, u := range m.byID {
		result = append(result, u)
	}
	return result, len(result), nil
}

type mockProfileRepo struct {
	items map[uuid.UUID]*HealthProfile
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{items: make(map[uuid.UUID]*HealthProfile)}
}

func (m *mockProfileRepo) Upsert(_ context.Context, p *HealthProfile) error {
	p.UpdatedAt = time.Now()
	cp := *p
	m.items[p.PatientID] = &cp
	return nil
}

func (m *mockProfileRepo) GetByPatient(_ context.Context, patientID uuid.UUID) (*HealthProfile, error) {
	p, ok := m.items[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type mockKYCRepo struct {
	items map[uuid.UUID]*KYCSubmission
}

func newMockKYCRepo() *mockKYCRepo {
	return &mockKYCRepo{items: make(map[uuid.UUID]*KYCSubmission)}
}

func (m *mockKYCRepo) Create(_ context.Context, s *KYCSubmission) error {
	s.ID = uuid.New()
	s.SubmittedAt = time.Now()
	cp := *s
	m.items[s.ID] = &cp
	return nil
}

func (m *mockKYCRepo) LatestByUser(_ context.Context, userID uuid.UUID) (*KYCSubmission, error) {
	var latest *KYCSubmission
	for _, s := range m.items {
		if s.UserID != userID {
			continue
		}
		if latest == nil || s.SubmittedAt.After(latest.SubmittedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockKYCRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	s, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = status
	now := time.Now()
	s.ReviewedAt = &now
	return nil
}

type mockDocRepo struct {
	items map[uuid.UUID]*Document
}

func newMockDocRepo() *mockDocRepo {
	return &mockDocRepo{items: make(map[uuid.UUID]*Document)}
}

func (m *mockDocRepo) Create(_ context.Context, d *Document) error {
	d.ID = uuid.New()
	d.UploadedAt = time.Now()
	cp := *d
	m.items[d.ID] = &cp
	return nil
}

func (m *mockDocRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Document, int, error) {
	var result []*Document
	for _, d := range m.items {
		if d.PatientID == patientID {
			result = append(result, d)
		}
	}
	return result, len(result), nil
}

func (m *mockDocRepo) GetByCID(_ context.Context, patientID uuid.UUID, cid string) (*Document, error) {
	for _, d := range m.items {
		if d.PatientID == patientID && d.CID == cid {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

type mockAuditRepo struct {
	entries []*audit.Entry
}

func (m *mockAuditRepo) Create(_ context.Context, e *audit.Entry) error {
	e.ID = uuid.New()
	e.Timestamp = time.Now()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) Query(_ context.Context, f audit.Filter, limit, offset int) ([]*audit.Entry, int, error) {
	return m.entries, len(m.entries), nil
}

func (m *mockAuditRepo) countByAction(action string) int {
	n := 0
	for _, e := range m.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// -- Tests --

func newTestService() (*Service, *mockUserRepo, *mockAuditRepo) {
	users := newMockUserRepo()
	auditRepo := &mockAuditRepo{}
	svc := NewService(users, newMockProfileRepo(), newMockKYCRepo(), newMockDocRepo(),
		audit.NewService(auditRepo), blobstore.NewMemStore(), nil)
	return svc, users, auditRepo
}

const testWallet = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

func TestResolve_ProvisionsNewUser(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Resolve(ctx, testWallet)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if u.Role != auth.RolePatient {
		t.Errorf("expected new users to be patients, got %s", u.Role)
	}
	if u.Status != StatusPending {
		t.Errorf("expected status pending, got %s", u.Status)
	}
	if !strings.HasPrefix(u.UID, "HID-") {
		t.Errorf("expected HID- uid, got %s", u.UID)
	}
	if u.WalletAddress != testWallet {
		t.Errorf("expected checksummed wallet %s, got %s", testWallet, u.WalletAddress)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Resolve(ctx, testWallet)
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	// Same address in a different case normalizes to the same user.
	second, err := svc.Resolve(ctx, strings.ToLower(testWallet))
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the same user on repeat resolve, got %s and %s", first.ID, second.ID)
	}
	if first.UID != second.UID {
		t.Errorf("uid changed across resolves: %s vs %s", first.UID, second.UID)
	}
}

func TestResolve_InvalidAddress(t *testing.T) {
	svc, _, _ := newTestService()

	for _, addr := range []string{"", "not-an-address", "0x123", "8ba1f109551bD432803012645Ac136ddd64DBA72zz"} {
		if _, err := svc.Resolve(context.Background(), addr); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Resolve(%q): expected ErrInvalidAddress, got %v", addr, err)
		}
	}
}

func TestSubmitAndApproveKYC(t *testing.T) {
	svc, users, auditRepo := newTestService()
	ctx := context.Background()

	u, _ := svc.Resolve(ctx, testWallet)
	adminID := uuid.New()
	users.Create(ctx, &User{ID: adminID, UID: "HID-ADMIN", WalletAddress: "0x0000000000000000000000000000000000000001", Role: auth.RoleAdmin, Status: StatusVerified})

	sub, err := svc.SubmitKYC(ctx, u.ID, auth.RoleDoctor, []byte("medical license scan"))
	if err != nil {
		t.Fatalf("SubmitKYC failed: %v", err)
	}
	if sub.Status != KYCPending {
		t.Errorf("expected pending submission, got %s", sub.Status)
	}
	if sub.DocumentCID == "" {
		t.Error("expected the supporting document to be pinned")
	}
	if n := auditRepo.countByAction(audit.ActionKYCSubmitted); n != 1 {
		t.Errorf("expected 1 kyc_submitted audit entry, got %d", n)
	}

	approved, err := svc.ApproveKYC(ctx, adminID, u.ID, auth.RoleDoctor, nil)
	if err != nil {
		t.Fatalf("ApproveKYC failed: %v", err)
	}
	if approved.Role != auth.RoleDoctor {
		t.Errorf("expected role doctor after approval, got %s", approved.Role)
	}
	if approved.Status != StatusVerified {
		t.Errorf("expected status verified after approval, got %s", approved.Status)
	}
	if n := auditRepo.countByAction(audit.ActionKYCApproved); n != 1 {
		t.Errorf("expected 1 kyc_approved audit entry, got %d", n)
	}
}

func TestSubmitKYC_AdminRoleRejected(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, _ := svc.Resolve(ctx, testWallet)
	if _, err := svc.SubmitKYC(ctx, u.ID, auth.RoleAdmin, []byte("doc")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for admin, got %v", err)
	}
	if _, err := svc.SubmitKYC(ctx, u.ID, auth.Role("superuser"), []byte("doc")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for unknown role, got %v", err)
	}
}

func TestApproveKYC_HospitalName(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, _ := svc.Resolve(ctx, testWallet)
	name := "General Hospital"
	approved, err := svc.ApproveKYC(ctx, uuid.New(), u.ID, auth.RoleHospital, &name)
	if err != nil {
		t.Fatalf("ApproveKYC failed: %v", err)
	}
	if approved.HospitalName == nil || *approved.HospitalName != name {
		t.Errorf("expected hospital name %q, got %v", name, approved.HospitalName)
	}
}

func TestApproveKYC_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.ApproveKYC(context.Background(), uuid.New(), uuid.New(), auth.RoleDoctor, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSuspend(t *testing.T) {
	svc, _, auditRepo := newTestService()
	ctx := context.Background()

	u, _ := svc.Resolve(ctx, testWallet)
	if err := svc.Suspend(ctx, uuid.New(), u.ID); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}

	got, _ := svc.GetUser(ctx, u.ID)
	if got.Status != StatusSuspended {
		t.Errorf("expected status suspended, got %s", got.Status)
	}
	if n := auditRepo.countByAction(audit.ActionUserSuspended); n != 1 {
		t.Errorf("expected 1 user_suspended audit entry, got %d", n)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, _ := svc.Resolve(ctx, testWallet)
	err := svc.UpsertProfile(ctx, u.ID, &HealthProfile{
		BloodType: "AB+",
		Allergies: []string{"latex"},
	})
	if err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	p, err := svc.GetProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p.BloodType != "AB+" {
		t.Errorf("expected blood type AB+, got %s", p.BloodType)
	}
	if p.PatientID != u.ID {
		t.Errorf("expected profile bound to patient %s, got %s", u.ID, p.PatientID)
	}
}

func TestDocumentUploadAndFetch(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, _ := svc.Resolve(ctx, testWallet)
	data := []byte("lab results pdf bytes")
	doc, err := svc.UploadDocument(ctx, u.ID, "labs.pdf", "application/pdf", data)
	if err != nil {
		t.Fatalf("UploadDocument failed: %v", err)
	}
	if doc.CID == "" {
		t.Fatal("expected a CID")
	}

	got, fetched, err := svc.FetchDocument(ctx, u.ID, doc.CID)
	if err != nil {
		t.Fatalf("FetchDocument failed: %v", err)
	}
	if got.FileName != "labs.pdf" {
		t.Errorf("expected file name labs.pdf, got %s", got.FileName)
	}
	if string(fetched) != string(data) {
		t.Error("fetched bytes do not match the upload")
	}

	// Documents are scoped to their owning patient.
	if _, _, err := svc.FetchDocument(ctx, uuid.New(), doc.CID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another patient, got %v", err)
	}

	docs, total, err := svc.ListDocuments(ctx, u.ID, 20, 0)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if total != 1 || len(docs) != 1 {
		t.Errorf("expected 1 document, got %d", total)
	}
}

func TestResolve_UIDFormat(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Resolve(ctx, testWallet)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	b, err := svc.Resolve(ctx, "0x0000000000000000000000000000000000000002")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	for _, u := range []*User{a, b} {
		if !strings.HasPrefix(u.UID, "HID-") || len(u.UID) != len("HID-")+16 {
			t.Errorf("uid %q should be HID- plus 16 hex characters", u.UID)
		}
	}
	if a.UID == b.UID {
		t.Errorf("distinct users share uid %q", a.UID)
	}
}
