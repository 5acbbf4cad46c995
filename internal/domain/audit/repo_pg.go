package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
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

const entryCols = `id, user_id, action, target_type, target_id, metadata, ip_address, timestamp`

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_log (id, user_id, action, target_type, target_id, metadata, ip_address)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING timestamp`,
		e.ID, e.UserID, e.Action, e.TargetType, e.TargetID, e.Metadata, e.IPAddress)
	return row.Scan(&e.Timestamp)
}

func (r *repoPG) Query(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	query := `SELECT ` + entryCols + ` FROM audit_log WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM audit_log WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.UserID != uuid.Nil {
		query += fmt.Sprintf(` AND user_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND user_id = $%d`, idx)
		args = append(args, f.UserID)
		idx++
	}
	if f.Action != "" {
		query += fmt.Sprintf(` AND action = $%d`, idx)
		countQuery += fmt.Sprintf(` AND action = $%d`, idx)
		args = append(args, f.Action)
		idx++
	}
	if f.TargetID != uuid.Nil {
		query += fmt.Sprintf(` AND target_id = $%d`, idx)
		countQuery += fmt.Sprintf(` AND target_id = $%d`, idx)
		args = append(args, f.TargetID)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.TargetType, &e.TargetID,
			&e.Metadata, &e.IPAddress, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}
