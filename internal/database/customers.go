package database

import (
	"context"

	"github.com/google/uuid"
)

const customerColumns = `id, tenant_id, name, phone, table_id, created_at`

func scanCustomer(row interface{ Scan(dest ...interface{}) error }) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.TableID, &c.CreatedAt)
	return c, err
}

func (q *Queries) ListCustomersByTenant(ctx context.Context, tenantID uuid.UUID) ([]Customer, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

type GetCustomerByPhoneParams struct {
	TenantID uuid.UUID
	Phone    string
}

func (q *Queries) GetCustomerByPhone(ctx context.Context, arg GetCustomerByPhoneParams) (Customer, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 AND phone = $2`,
		arg.TenantID, arg.Phone)
	return scanCustomer(row)
}

type CreateCustomerParams struct {
	TenantID uuid.UUID
	Name     string
	Phone    string
	TableID  string
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO customers (tenant_id, name, phone, table_id) VALUES ($1, $2, $3, $4)
		 RETURNING `+customerColumns,
		arg.TenantID, arg.Name, arg.Phone, arg.TableID)
	return scanCustomer(row)
}

type UpdateCustomerParams struct {
	ID      uuid.UUID
	Name    string
	TableID string
}

// UpdateCustomer re-binds a returning customer to their current name
// and table.
func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE customers SET name = $2, table_id = $3 WHERE id = $1 RETURNING `+customerColumns,
		arg.ID, arg.Name, arg.TableID)
	return scanCustomer(row)
}

type UpdateCustomerTableParams struct {
	ID      uuid.UUID
	TableID string
}

func (q *Queries) UpdateCustomerTable(ctx context.Context, arg UpdateCustomerTableParams) (Customer, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE customers SET table_id = $2 WHERE id = $1 RETURNING `+customerColumns,
		arg.ID, arg.TableID)
	return scanCustomer(row)
}

type DeleteCustomerParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeleteCustomer(ctx context.Context, arg DeleteCustomerParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM customers WHERE id = $1 AND tenant_id = $2 RETURNING id`,
		arg.ID, arg.TenantID).Scan(&id)
	return id, err
}
