package database

import (
	"context"

	"github.com/google/uuid"
)

const staffColumns = `id, tenant_id, email, hashed_password, full_name, role, is_active, created_at, updated_at`

func scanStaff(row interface{ Scan(dest ...interface{}) error }) (Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.TenantID, &s.Email, &s.HashedPassword, &s.FullName, &s.Role,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (q *Queries) GetStaffByEmail(ctx context.Context, email string) (Staff, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE email = $1`, email)
	return scanStaff(row)
}

type GetStaffParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetStaff(ctx context.Context, arg GetStaffParams) (Staff, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE id = $1 AND tenant_id = $2`,
		arg.ID, arg.TenantID)
	return scanStaff(row)
}

func (q *Queries) ListStaffByTenant(ctx context.Context, tenantID uuid.UUID) ([]Staff, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var staff []Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		staff = append(staff, s)
	}
	return staff, rows.Err()
}

type CreateStaffParams struct {
	TenantID       uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
}

func (q *Queries) CreateStaff(ctx context.Context, arg CreateStaffParams) (Staff, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO staff (tenant_id, email, hashed_password, full_name, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+staffColumns,
		arg.TenantID, arg.Email, arg.HashedPassword, arg.FullName, arg.Role)
	return scanStaff(row)
}

type UpdateStaffParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	FullName string
	Role     string
	IsActive bool
}

func (q *Queries) UpdateStaff(ctx context.Context, arg UpdateStaffParams) (Staff, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE staff SET full_name = $3, role = $4, is_active = $5, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+staffColumns,
		arg.ID, arg.TenantID, arg.FullName, arg.Role, arg.IsActive)
	return scanStaff(row)
}

type UpdateStaffPasswordParams struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	HashedPassword string
}

func (q *Queries) UpdateStaffPassword(ctx context.Context, arg UpdateStaffPasswordParams) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE staff SET hashed_password = $3, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2`,
		arg.ID, arg.TenantID, arg.HashedPassword)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type DeleteStaffParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeleteStaff(ctx context.Context, arg DeleteStaffParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM staff WHERE id = $1 AND tenant_id = $2 RETURNING id`,
		arg.ID, arg.TenantID).Scan(&id)
	return id, err
}
