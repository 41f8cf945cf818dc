package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Categories ---

const categoryColumns = `id, tenant_id, name, status, created_at`

func scanCategory(row interface{ Scan(dest ...interface{}) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Status, &c.CreatedAt)
	return c, err
}

func (q *Queries) ListCategoriesByTenant(ctx context.Context, tenantID uuid.UUID) ([]Category, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

type GetCategoryParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetCategory(ctx context.Context, arg GetCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND tenant_id = $2`,
		arg.ID, arg.TenantID)
	return scanCategory(row)
}

type CategoryNameExistsParams struct {
	TenantID  uuid.UUID
	Name      string
	ExcludeID uuid.UUID
}

// CategoryNameExists reports a case-insensitive name collision within
// the tenant, ignoring ExcludeID (zero UUID for inserts).
func (q *Queries) CategoryNameExists(ctx context.Context, arg CategoryNameExistsParams) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM categories
		   WHERE tenant_id = $1 AND LOWER(name) = LOWER($2) AND id <> $3
		 )`,
		arg.TenantID, arg.Name, arg.ExcludeID).Scan(&exists)
	return exists, err
}

type CreateCategoryParams struct {
	TenantID uuid.UUID
	Name     string
	Status   string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO categories (tenant_id, name, status) VALUES ($1, $2, $3)
		 RETURNING `+categoryColumns,
		arg.TenantID, arg.Name, arg.Status)
	return scanCategory(row)
}

type UpdateCategoryParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	Status   string
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE categories SET name = $3, status = $4 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+categoryColumns,
		arg.ID, arg.TenantID, arg.Name, arg.Status)
	return scanCategory(row)
}

type DeleteCategoryParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeleteCategory(ctx context.Context, arg DeleteCategoryParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM categories WHERE id = $1 AND tenant_id = $2 RETURNING id`,
		arg.ID, arg.TenantID).Scan(&id)
	return id, err
}

func (q *Queries) CountProductsByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE category_id = $1`, categoryID).Scan(&n)
	return n, err
}

// --- Units ---

const unitColumns = `id, tenant_id, name, status, created_at`

func scanUnit(row interface{ Scan(dest ...interface{}) error }) (Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Status, &u.CreatedAt)
	return u, err
}

func (q *Queries) ListUnitsByTenant(ctx context.Context, tenantID uuid.UUID) ([]Unit, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+unitColumns+` FROM units WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

type GetUnitParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetUnit(ctx context.Context, arg GetUnitParams) (Unit, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+unitColumns+` FROM units WHERE id = $1 AND tenant_id = $2`,
		arg.ID, arg.TenantID)
	return scanUnit(row)
}

type UnitNameExistsParams struct {
	TenantID  uuid.UUID
	Name      string
	ExcludeID uuid.UUID
}

func (q *Queries) UnitNameExists(ctx context.Context, arg UnitNameExistsParams) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM units
		   WHERE tenant_id = $1 AND LOWER(name) = LOWER($2) AND id <> $3
		 )`,
		arg.TenantID, arg.Name, arg.ExcludeID).Scan(&exists)
	return exists, err
}

type CreateUnitParams struct {
	TenantID uuid.UUID
	Name     string
	Status   string
}

func (q *Queries) CreateUnit(ctx context.Context, arg CreateUnitParams) (Unit, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO units (tenant_id, name, status) VALUES ($1, $2, $3)
		 RETURNING `+unitColumns,
		arg.TenantID, arg.Name, arg.Status)
	return scanUnit(row)
}

type UpdateUnitParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	Status   string
}

func (q *Queries) UpdateUnit(ctx context.Context, arg UpdateUnitParams) (Unit, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE units SET name = $3, status = $4 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+unitColumns,
		arg.ID, arg.TenantID, arg.Name, arg.Status)
	return scanUnit(row)
}

type DeleteUnitParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeleteUnit(ctx context.Context, arg DeleteUnitParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM units WHERE id = $1 AND tenant_id = $2 RETURNING id`,
		arg.ID, arg.TenantID).Scan(&id)
	return id, err
}

func (q *Queries) CountProductUnitsByUnit(ctx context.Context, unitID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM product_units WHERE unit_id = $1`, unitID).Scan(&n)
	return n, err
}

// --- Products ---

const productColumns = `id, tenant_id, name, category_id, status, image, created_at`

func scanProduct(row interface{ Scan(dest ...interface{}) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.CategoryID, &p.Status, &p.Image, &p.CreatedAt)
	return p, err
}

func (q *Queries) ListProductsByTenant(ctx context.Context, tenantID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type GetProductParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND tenant_id = $2`,
		arg.ID, arg.TenantID)
	return scanProduct(row)
}

type ProductNameExistsParams struct {
	TenantID  uuid.UUID
	Name      string
	ExcludeID uuid.UUID
}

func (q *Queries) ProductNameExists(ctx context.Context, arg ProductNameExistsParams) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM products
		   WHERE tenant_id = $1 AND LOWER(name) = LOWER($2) AND id <> $3
		 )`,
		arg.TenantID, arg.Name, arg.ExcludeID).Scan(&exists)
	return exists, err
}

type CreateProductParams struct {
	TenantID   uuid.UUID
	Name       string
	CategoryID uuid.UUID
	Status     string
	Image      pgtype.Text
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO products (tenant_id, name, category_id, status, image)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+productColumns,
		arg.TenantID, arg.Name, arg.CategoryID, arg.Status, arg.Image)
	return scanProduct(row)
}

type UpdateProductParams struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Name       string
	CategoryID uuid.UUID
	Status     string
	Image      pgtype.Text
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE products SET name = $3, category_id = $4, status = $5, image = $6
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+productColumns,
		arg.ID, arg.TenantID, arg.Name, arg.CategoryID, arg.Status, arg.Image)
	return scanProduct(row)
}

type DeleteProductParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) DeleteProduct(ctx context.Context, arg DeleteProductParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM products WHERE id = $1 AND tenant_id = $2 RETURNING id`,
		arg.ID, arg.TenantID).Scan(&id)
	return id, err
}

type CreateProductUnitParams struct {
	ProductID uuid.UUID
	UnitID    uuid.UUID
	Price     pgtype.Numeric
}

func (q *Queries) CreateProductUnit(ctx context.Context, arg CreateProductUnitParams) (ProductUnit, error) {
	var pu ProductUnit
	err := q.db.QueryRow(ctx,
		`INSERT INTO product_units (product_id, unit_id, price) VALUES ($1, $2, $3)
		 RETURNING id, product_id, unit_id, price`,
		arg.ProductID, arg.UnitID, arg.Price).Scan(&pu.ID, &pu.ProductID, &pu.UnitID, &pu.Price)
	return pu, err
}

func (q *Queries) ListProductUnits(ctx context.Context, productID uuid.UUID) ([]ProductUnit, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, product_id, unit_id, price FROM product_units WHERE product_id = $1 ORDER BY id`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pus []ProductUnit
	for rows.Next() {
		var pu ProductUnit
		if err := rows.Scan(&pu.ID, &pu.ProductID, &pu.UnitID, &pu.Price); err != nil {
			return nil, err
		}
		pus = append(pus, pu)
	}
	return pus, rows.Err()
}

func (q *Queries) DeleteProductUnits(ctx context.Context, productID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM product_units WHERE product_id = $1`, productID)
	return err
}
