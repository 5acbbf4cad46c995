package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const requestCols = `id, patient_id, requester_id, requester_role, access_type, reason, status, requested_at, responded_at`

func scanRequest(row pgx.Row) (*AccessRequest, error) {
	var a AccessRequest
	err := row.Scan(&a.ID, &a.PatientID, &a.RequesterID, &a.RequesterRole, &a.AccessType,
		&a.Reason, &a.Status, &a.RequestedAt, &a.RespondedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *AccessRequest) error {
	a.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO access_request (id, patient_id, requester_id, requester_role, access_type, reason, status, responded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING requested_at`,
		a.ID, a.PatientID, a.RequesterID, a.RequesterRole, a.AccessType, a.Reason, a.Status, a.RespondedAt)
	return row.Scan(&a.RequestedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM access_request WHERE id = $1`, id))
}

func (r *repoPG) Transition(ctx context.Context, id uuid.UUID, from, to Status, respondedAt time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE access_request SET status = $3, responded_at = $4
		WHERE id = $1 AND status = $2`,
		id, from, to, respondedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ActiveGrant(ctx context.Context, patientID, requesterID uuid.UUID) (*AccessRequest, error) {
	a, err := scanRequest(r.conn(ctx).QueryRow(ctx, `
		SELECT `+requestCols+` FROM access_request
		WHERE patient_id = $1 AND requester_id = $2 AND responded_at IS NOT NULL
		ORDER BY responded_at DESC LIMIT 1`,
		patientID, requesterID))
	if err != nil {
		return nil, err
	}
	if a.Status != StatusGranted {
		return nil, ErrNotFound
	}
	return a, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*AccessRequest, int, error) {
	where := `WHERE patient_id = $1`
	args := []interface{}{patientID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM access_request `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM access_request %s ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`,
		requestCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	return r.queryRequests(ctx, query, args, total)
}

func (r *repoPG) ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*AccessRequest, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM access_request WHERE requester_id = $1`, requesterID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return r.queryRequests(ctx,
		`SELECT `+requestCols+` FROM access_request WHERE requester_id = $1 ORDER BY requested_at DESC LIMIT $2 OFFSET $3`,
		[]interface{}{requesterID, limit, offset}, total)
}

func (r *repoPG) queryRequests(ctx context.Context, query string, args []interface{}, total int) ([]*AccessRequest, int, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AccessRequest
	for rows.Next() {
		a, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
