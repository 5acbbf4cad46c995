package emergency

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthid/healthid/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) Upsert(ctx context.Context, qr *EmergencyQR) error {
	qr.ID = uuid.New()
	qr.ScanCount = 0
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO emergency_qr (id, patient_id, payload, scan_count)
		VALUES ($1,$2,$3,0)
		ON CONFLICT (patient_id) DO UPDATE SET
			id = EXCLUDED.id,
			payload = EXCLUDED.payload,
			generated_at = NOW(),
			scan_count = 0
		RETURNING generated_at`,
		qr.ID, qr.PatientID, qr.Payload)
	return row.Scan(&qr.GeneratedAt)
}

func (r *repoPG) GetByPatient(ctx context.Context, patientID uuid.UUID) (*EmergencyQR, error) {
	var qr EmergencyQR
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, payload, generated_at, scan_count
		FROM emergency_qr WHERE patient_id = $1`, patientID).
		Scan(&qr.ID, &qr.PatientID, &qr.Payload, &qr.GeneratedAt, &qr.ScanCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoQR
	}
	return &qr, err
}

func (r *repoPG) IncrementScanCount(ctx context.Context, patientID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE emergency_qr SET scan_count = scan_count + 1
		WHERE patient_id = $1
		RETURNING scan_count`, patientID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoQR
	}
	return count, err
}
