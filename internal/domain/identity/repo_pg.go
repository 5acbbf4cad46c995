package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthid/healthid/internal/platform/auth"
	"github.com/healthid/healthid/internal/platform/db"
)

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, uid, wallet_address, name, role, status, hospital_name, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.UID, &u.WalletAddress, &u.Name, &u.Role, &u.Status, &u.HospitalName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO app_user (id, uid, wallet_address, name, role, status, hospital_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (wallet_address) DO NOTHING`,
		u.ID, u.UID, u.WalletAddress, u.Name, u.Role, u.Status, u.HospitalName)
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id))
}

func (r *userRepoPG) GetByWallet(ctx context.Context, walletAddress string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE wallet_address = $1`, walletAddress))
}

func (r *userRepoPG) GetByUID(ctx context.Context, uid string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE uid = $1`, uid))
}

func (r *userRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE app_user SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepoPG) UpdateRoleAndStatus(ctx context.Context, id uuid.UUID, role auth.Role, status Status, hospitalName *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE app_user SET role = $2, status = $3, hospital_name = COALESCE($4, hospital_name)
		WHERE id = $1`, id, role, status, hospitalName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM app_user`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM app_user ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// =========== Profile Repository ===========

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository { return &profileRepoPG{pool: pool} }

func (r *profileRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *profileRepoPG) Upsert(ctx context.Context, p *HealthProfile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO health_profile (patient_id, blood_type, allergies, chronic_conditions, medications,
			emergency_contact_name, emergency_contact_phone, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
		ON CONFLICT (patient_id) DO UPDATE SET
			blood_type = EXCLUDED.blood_type,
			allergies = EXCLUDED.allergies,
			chronic_conditions = EXCLUDED.chronic_conditions,
			medications = EXCLUDED.medications,
			emergency_contact_name = EXCLUDED.emergency_contact_name,
			emergency_contact_phone = EXCLUDED.emergency_contact_phone,
			updated_at = NOW()`,
		p.PatientID, p.BloodType, p.Allergies, p.ChronicConditions, p.Medications,
		p.EmergencyContactName, p.EmergencyContactPhone)
	return err
}

func (r *profileRepoPG) GetByPatient(ctx context.Context, patientID uuid.UUID) (*HealthProfile, error) {
	var p HealthProfile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient_id, blood_type, allergies, chronic_conditions, medications,
			emergency_contact_name, emergency_contact_phone, updated_at
		FROM health_profile WHERE patient_id = $1`, patientID).
		Scan(&p.PatientID, &p.BloodType, &p.Allergies, &p.ChronicConditions, &p.Medications,
			&p.EmergencyContactName, &p.EmergencyContactPhone, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

// =========== KYC Repository ===========

type kycRepoPG struct{ pool *pgxpool.Pool }

func NewKYCRepoPG(pool *pgxpool.Pool) KYCRepository { return &kycRepoPG{pool: pool} }

func (r *kycRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *kycRepoPG) Create(ctx context.Context, s *KYCSubmission) error {
	s.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO kyc_submission (id, user_id, requested_role, document_cid, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING submitted_at`,
		s.ID, s.UserID, s.RequestedRole, s.DocumentCID, s.Status)
	return row.Scan(&s.SubmittedAt)
}

func (r *kycRepoPG) LatestByUser(ctx context.Context, userID uuid.UUID) (*KYCSubmission, error) {
	var s KYCSubmission
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, user_id, requested_role, document_cid, status, submitted_at, reviewed_at
		FROM kyc_submission WHERE user_id = $1
		ORDER BY submitted_at DESC LIMIT 1`, userID).
		Scan(&s.ID, &s.UserID, &s.RequestedRole, &s.DocumentCID, &s.Status, &s.SubmittedAt, &s.ReviewedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *kycRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE kyc_submission SET status = $2, reviewed_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Document Repository ===========

type documentRepoPG struct{ pool *pgxpool.Pool }

func NewDocumentRepoPG(pool *pgxpool.Pool) DocumentRepository { return &documentRepoPG{pool: pool} }

func (r *documentRepoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const documentCols = `id, patient_id, file_name, content_type, cid, uploaded_at`

func (r *documentRepoPG) Create(ctx context.Context, d *Document) error {
	d.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_document (id, patient_id, file_name, content_type, cid)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING uploaded_at`,
		d.ID, d.PatientID, d.FileName, d.ContentType, d.CID)
	return row.Scan(&d.UploadedAt)
}

func (r *documentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Document, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_document WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+documentCols+` FROM patient_document WHERE patient_id = $1 ORDER BY uploaded_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var docs []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.PatientID, &d.FileName, &d.ContentType, &d.CID, &d.UploadedAt); err != nil {
			return nil, 0, err
		}
		docs = append(docs, &d)
	}
	return docs, total, rows.Err()
}

func (r *documentRepoPG) GetByCID(ctx context.Context, patientID uuid.UUID, cid string) (*Document, error) {
	var d Document
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+documentCols+` FROM patient_document WHERE patient_id = $1 AND cid = $2`, patientID, cid).
		Scan(&d.ID, &d.PatientID, &d.FileName, &d.ContentType, &d.CID, &d.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}
