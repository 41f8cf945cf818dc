package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dinescan/api/internal/database"
	"github.com/dinescan/api/internal/enum"
)

// Errors returned by the order service.
var (
	ErrIPNotAllowed    = errors.New("ip address not allowed")
	ErrTableClaimed    = errors.New("table is claimed by another customer")
	ErrEmptyItems      = errors.New("items are required")
	ErrMissingTable    = errors.New("table_id is required")
	ErrMissingIP       = errors.New("ip_address is required")
	ErrItemName        = errors.New("item name is required")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrInvalidPrice    = errors.New("invalid price")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to append a checkout batch.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	IsIPAllowed(ctx context.Context, arg database.IsIPAllowedParams) (bool, error)
	GetOrderByTableForUpdate(ctx context.Context, arg database.GetOrderByTableParams) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderBatch(ctx context.Context, arg database.CreateOrderBatchParams) (database.OrderBatch, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	SumBatchTotals(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// AppendCheckoutRequest is the validated input for a checkout batch.
type AppendCheckoutRequest struct {
	TenantID   uuid.UUID
	TableID    string
	CustomerID string
	IPAddress  string
	Items      []CheckoutItemRequest
}

// CheckoutItemRequest is a single item in the batch.
type CheckoutItemRequest struct {
	Name         string
	Category     string
	Size         string
	Quantity     int32
	Price        string
	Instructions string
	Image        string
}

// AppendCheckoutResult is the appended batch plus the updated order.
type AppendCheckoutResult struct {
	Order database.Order
	Batch database.OrderBatch
	Items []database.OrderItem
}

// OrderService handles checkout-append business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// preparedItem holds a validated item ready for insert.
type preparedItem struct {
	params database.CreateOrderItemParams
	line   decimal.Decimal
}

// AppendCheckout validates the batch, checks the caller's IP against the
// tenant's allow-list, and appends it to the table's open order inside a
// single transaction. The order row is locked FOR UPDATE so concurrent
// checkouts for the same table serialize; a table already claimed by a
// different customer returns ErrTableClaimed.
func (s *OrderService) AppendCheckout(ctx context.Context, req AppendCheckoutRequest) (*AppendCheckoutResult, error) {
	if req.TableID == "" {
		return nil, ErrMissingTable
	}
	if req.IPAddress == "" {
		return nil, ErrMissingIP
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// --- Validate items + compute the batch total ---
	batchTotal := decimal.Zero
	var items []preparedItem
	for i, item := range req.Items {
		if item.Name == "" {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrItemName)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		price, err := decimal.NewFromString(item.Price)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidPrice)
		}

		line := price.Mul(decimal.NewFromInt32(item.Quantity))
		batchTotal = batchTotal.Add(line)

		items = append(items, preparedItem{
			params: database.CreateOrderItemParams{
				Name:         item.Name,
				Category:     textOrNull(item.Category),
				Size:         textOrNull(item.Size),
				Quantity:     item.Quantity,
				Price:        decimalToNumeric(price),
				Instructions: textOrNull(item.Instructions),
				Image:        textOrNull(item.Image),
			},
			line: line,
		})
	}

	// --- Begin transaction ---
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- IP gate ---
	allowed, err := store.IsIPAllowed(ctx, database.IsIPAllowedParams{
		TenantID: req.TenantID,
		IP:       req.IPAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("check ip: %w", err)
	}
	if !allowed {
		return nil, ErrIPNotAllowed
	}

	// --- Find or create the table's order, locking it for the tx ---
	order, err := store.GetOrderByTableForUpdate(ctx, database.GetOrderByTableParams{
		TenantID: req.TenantID,
		TableID:  req.TableID,
	})
	switch {
	case err == nil:
		if order.CustomerID != "" && req.CustomerID != "" && order.CustomerID != req.CustomerID {
			return nil, ErrTableClaimed
		}
	case errors.Is(err, pgx.ErrNoRows):
		order, err = store.CreateOrder(ctx, database.CreateOrderParams{
			TenantID:    req.TenantID,
			TableID:     req.TableID,
			CustomerID:  req.CustomerID,
			Status:      enum.OrderStatusRunning,
			TotalAmount: decimalToNumeric(decimal.Zero),
		})
		if err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
	default:
		return nil, fmt.Errorf("get order: %w", err)
	}

	// --- Append the batch ---
	batch, err := store.CreateOrderBatch(ctx, database.CreateOrderBatchParams{
		OrderID: order.ID,
		Total:   decimalToNumeric(batchTotal),
		Status:  enum.BatchStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	var inserted []database.OrderItem
	for _, pi := range items {
		pi.params.BatchID = batch.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create item: %w", err)
		}
		inserted = append(inserted, item)
	}

	// --- Recompute the order total from its batches ---
	total, err := store.SumBatchTotals(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("sum batch totals: %w", err)
	}
	order, err = store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{
		ID:          order.ID,
		TotalAmount: total,
	})
	if err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &AppendCheckoutResult{
		Order: order,
		Batch: batch,
		Items: inserted,
	}, nil
}

// --- Helpers ---

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
