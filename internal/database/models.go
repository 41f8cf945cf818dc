package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Order is one open dining session per (tenant, table). total_amount is
// derived: it always equals the sum of the order's batch totals.
type Order struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	TableID     string
	CustomerID  string
	Status      string
	TotalAmount pgtype.Numeric
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderBatch is one checkout action within an order. total is derived
// from its items.
type OrderBatch struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Total     pgtype.Numeric
	Status    string
	Seen      bool
	CreatedAt time.Time
}

type OrderItem struct {
	ID           uuid.UUID
	BatchID      uuid.UUID
	Name         string
	Category     pgtype.Text
	Size         pgtype.Text
	Quantity     int32
	Price        pgtype.Numeric
	Instructions pgtype.Text
	Image        pgtype.Text
}

type Category struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Status    string
	CreatedAt time.Time
}

type Unit struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Status    string
	CreatedAt time.Time
}

type Product struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Name       string
	CategoryID uuid.UUID
	Status     string
	Image      pgtype.Text
	CreatedAt  time.Time
}

// ProductUnit is a size/price option on a product, referencing a Unit.
type ProductUnit struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	UnitID    uuid.UUID
	Price     pgtype.Numeric
}

// Sale is an immutable settlement snapshot; the originating order is
// deleted in the same transaction that creates it.
type Sale struct {
	ID             uuid.UUID
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
	CreatedAt      time.Time
}

type SaleItem struct {
	ID       uuid.UUID
	SaleID   uuid.UUID
	Name     string
	Size     pgtype.Text
	Quantity int32
	Price    pgtype.Numeric
}

type AllowedIP struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	IP       string
	AddedAt  time.Time
}

type Staff struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Customer struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Phone     string
	TableID   string
	CreatedAt time.Time
}
