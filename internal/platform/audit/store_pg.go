package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StorePG persists audit records in the audit_log table.
type StorePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) *StorePG {
	return &StorePG{pool: pool}
}

func (s *StorePG) Insert(ctx context.Context, rec *Record) error {
	const query = `
		INSERT INTO audit_log (
			id, user_id, user_role, action, entity, entity_id,
			new_values, justification, ip_address, user_agent,
			status_code, request_id, recorded_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.UserRole, rec.Action, rec.Entity, rec.EntityID,
		rec.NewValues, rec.Justification, rec.IPAddress, rec.UserAgent,
		rec.StatusCode, rec.RequestID, rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert record: %w", err)
	}
	return nil
}

const auditCols = `id, user_id, user_role, action, entity, entity_id,
	new_values, justification, ip_address, user_agent,
	status_code, request_id, recorded_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.UserID, &r.UserRole, &r.Action, &r.Entity, &r.EntityID,
		&r.NewValues, &r.Justification, &r.IPAddress, &r.UserAgent,
		&r.StatusCode, &r.RequestID, &r.RecordedAt,
	)
	return &r, err
}

// Search returns records matching the given filters, newest first. Supported
// filter keys: action, entity, entity-id, user-id, break-glass ("true"
// restricts to records carrying a justification).
func (s *StorePG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Record, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["action"]; ok {
		where = append(where, fmt.Sprintf("action = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["entity"]; ok {
		where = append(where, fmt.Sprintf("entity = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["entity-id"]; ok {
		where = append(where, fmt.Sprintf("entity_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["user-id"]; ok {
		where = append(where, fmt.Sprintf("user_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["break-glass"]; ok && v == "true" {
		where = append(where, "justification IS NOT NULL")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM audit_log %s", whereClause)
	var total int
	if err := s.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM audit_log %s ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d",
		auditCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, nil
}
