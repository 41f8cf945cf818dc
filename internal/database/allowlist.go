package database

import (
	"context"

	"github.com/google/uuid"
)

const allowedIPColumns = `id, tenant_id, ip, added_at`

func scanAllowedIP(row interface{ Scan(dest ...interface{}) error }) (AllowedIP, error) {
	var a AllowedIP
	err := row.Scan(&a.ID, &a.TenantID, &a.IP, &a.AddedAt)
	return a, err
}

func (q *Queries) ListAllowedIPs(ctx context.Context, tenantID uuid.UUID) ([]AllowedIP, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+allowedIPColumns+` FROM allowed_ips WHERE tenant_id = $1 ORDER BY added_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ips []AllowedIP
	for rows.Next() {
		a, err := scanAllowedIP(rows)
		if err != nil {
			return nil, err
		}
		ips = append(ips, a)
	}
	return ips, rows.Err()
}

type IsIPAllowedParams struct {
	TenantID uuid.UUID
	IP       string
}

// IsIPAllowed does an exact string match against the tenant's list.
// Normalization of the caller address happens before the query.
func (q *Queries) IsIPAllowed(ctx context.Context, arg IsIPAllowedParams) (bool, error) {
	var allowed bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM allowed_ips WHERE tenant_id = $1 AND ip = $2)`,
		arg.TenantID, arg.IP).Scan(&allowed)
	return allowed, err
}

type CreateAllowedIPParams struct {
	TenantID uuid.UUID
	IP       string
}

func (q *Queries) CreateAllowedIP(ctx context.Context, arg CreateAllowedIPParams) (AllowedIP, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO allowed_ips (tenant_id, ip) VALUES ($1, $2)
		 RETURNING `+allowedIPColumns,
		arg.TenantID, arg.IP)
	return scanAllowedIP(row)
}

type DeleteAllowedIPByAddressParams struct {
	TenantID uuid.UUID
	IP       string
}

func (q *Queries) DeleteAllowedIPByAddress(ctx context.Context, arg DeleteAllowedIPByAddressParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM allowed_ips WHERE tenant_id = $1 AND ip = $2 RETURNING id`,
		arg.TenantID, arg.IP).Scan(&id)
	return id, err
}

type DeleteAllowedIPParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeleteAllowedIP(ctx context.Context, arg DeleteAllowedIPParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM allowed_ips WHERE id = $1 AND tenant_id = $2 RETURNING id`,
		arg.ID, arg.TenantID).Scan(&id)
	return id, err
}
