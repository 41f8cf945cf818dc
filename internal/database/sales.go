package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const saleColumns = `id, tenant_id, table_id, customer_id, subtotal, discount_pct, discount_amount,
	vat_pct, vat_amount, total_amount, payment_method, status, created_at`

func scanSale(row interface{ Scan(dest ...interface{}) error }) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.TenantID, &s.TableID, &s.CustomerID, &s.Subtotal, &s.DiscountPct,
		&s.DiscountAmount, &s.VatPct, &s.VatAmount, &s.TotalAmount, &s.PaymentMethod, &s.Status,
		&s.CreatedAt)
	return s, err
}

type CreateSaleParams struct {
	TenantID       uuid.UUID
	TableID        string
	CustomerID     pgtype.Text
	Subtotal       pgtype.Numeric
	DiscountPct    pgtype.Numeric
	DiscountAmount pgtype.Numeric
	VatPct         pgtype.Numeric
	VatAmount      pgtype.Numeric
	TotalAmount    pgtype.Numeric
	PaymentMethod  string
	Status         string
}

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO sales (tenant_id, table_id, customer_id, subtotal, discount_pct,
		   discount_amount, vat_pct, vat_amount, total_amount, payment_method, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+saleColumns,
		arg.TenantID, arg.TableID, arg.CustomerID, arg.Subtotal, arg.DiscountPct,
		arg.DiscountAmount, arg.VatPct, arg.VatAmount, arg.TotalAmount, arg.PaymentMethod,
		arg.Status)
	return scanSale(row)
}

type GetSaleParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetSale(ctx context.Context, arg GetSaleParams) (Sale, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1 AND tenant_id = $2`,
		arg.ID, arg.TenantID)
	return scanSale(row)
}

func (q *Queries) ListSalesByTenant(ctx context.Context, tenantID uuid.UUID) ([]Sale, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

type ListSalesByCustomerParams struct {
	TenantID   uuid.UUID
	CustomerID string
}

func (q *Queries) ListSalesByCustomer(ctx context.Context, arg ListSalesByCustomerParams) ([]Sale, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+saleColumns+` FROM sales
		 WHERE tenant_id = $1 AND customer_id = $2 ORDER BY created_at DESC`,
		arg.TenantID, arg.CustomerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

type DeleteSaleParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeleteSale(ctx context.Context, arg DeleteSaleParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM sales WHERE id = $1 AND tenant_id = $2 RETURNING id`,
		arg.ID, arg.TenantID).Scan(&id)
	return id, err
}

type CreateSaleItemParams struct {
	SaleID   uuid.UUID
	Name     string
	Size     pgtype.Text
	Quantity int32
	Price    pgtype.Numeric
}

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	var si SaleItem
	err := q.db.QueryRow(ctx,
		`INSERT INTO sale_items (sale_id, name, size, quantity, price)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, sale_id, name, size, quantity, price`,
		arg.SaleID, arg.Name, arg.Size, arg.Quantity, arg.Price).
		Scan(&si.ID, &si.SaleID, &si.Name, &si.Size, &si.Quantity, &si.Price)
	return si, err
}

func (q *Queries) ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]SaleItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, sale_id, name, size, quantity, price FROM sale_items
		 WHERE sale_id = $1 ORDER BY id`,
		saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItem
	for rows.Next() {
		var si SaleItem
		if err := rows.Scan(&si.ID, &si.SaleID, &si.Name, &si.Size, &si.Quantity, &si.Price); err != nil {
			return nil, err
		}
		items = append(items, si)
	}
	return items, rows.Err()
}
