package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, tenant_id, table_id, customer_id, status, total_amount, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TenantID, &o.TableID, &o.CustomerID,
		&o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

type GetOrderByTableParams struct {
	TenantID uuid.UUID
	TableID  string
}

func (q *Queries) GetOrderByTable(ctx context.Context, arg GetOrderByTableParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND table_id = $2`,
		arg.TenantID, arg.TableID)
	return scanOrder(row)
}

// GetOrderByTableForUpdate locks the order row for the remainder of the
// transaction, serializing concurrent mutations of the same table.
func (q *Queries) GetOrderByTableForUpdate(ctx context.Context, arg GetOrderByTableParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND table_id = $2 FOR UPDATE`,
		arg.TenantID, arg.TableID)
	return scanOrder(row)
}

type GetOrderByTableAndCustomerParams struct {
	TenantID   uuid.UUID
	TableID    string
	CustomerID string
}

func (q *Queries) GetOrderByTableAndCustomer(ctx context.Context, arg GetOrderByTableAndCustomerParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND table_id = $2 AND customer_id = $3`,
		arg.TenantID, arg.TableID, arg.CustomerID)
	return scanOrder(row)
}

func (q *Queries) ListOrdersByTenant(ctx context.Context, tenantID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CreateOrderParams struct {
	TenantID    uuid.UUID
	TableID     string
	CustomerID  string
	Status      string
	TotalAmount pgtype.Numeric
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO orders (tenant_id, table_id, customer_id, status, total_amount)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+orderColumns,
		arg.TenantID, arg.TableID, arg.CustomerID, arg.Status, arg.TotalAmount)
	return scanOrder(row)
}

type UpdateOrderTotalParams struct {
	ID          uuid.UUID
	TotalAmount pgtype.Numeric
}

func (q *Queries) UpdateOrderTotal(ctx context.Context, arg UpdateOrderTotalParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET total_amount = $2, updated_at = now() WHERE id = $1
		 RETURNING `+orderColumns,
		arg.ID, arg.TotalAmount)
	return scanOrder(row)
}

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

// SumBatchTotals recomputes an order's derived total from its batches.
// Returns a zero-valued numeric when the order has no batches left.
func (q *Queries) SumBatchTotals(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(total), 0) FROM order_batches WHERE order_id = $1`,
		orderID).Scan(&sum)
	return sum, err
}

// --- Batches ---

const batchColumns = `id, order_id, total, status, seen, created_at`

func scanBatch(row interface{ Scan(dest ...interface{}) error }) (OrderBatch, error) {
	var b OrderBatch
	err := row.Scan(&b.ID, &b.OrderID, &b.Total, &b.Status, &b.Seen, &b.CreatedAt)
	return b, err
}

type CreateOrderBatchParams struct {
	OrderID uuid.UUID
	Total   pgtype.Numeric
	Status  string
}

func (q *Queries) CreateOrderBatch(ctx context.Context, arg CreateOrderBatchParams) (OrderBatch, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO order_batches (order_id, total, status)
		 VALUES ($1, $2, $3)
		 RETURNING `+batchColumns,
		arg.OrderID, arg.Total, arg.Status)
	return scanBatch(row)
}

func (q *Queries) ListBatchesByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderBatch, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+batchColumns+` FROM order_batches WHERE order_id = $1 ORDER BY created_at`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []OrderBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

type GetBatchParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) GetBatch(ctx context.Context, arg GetBatchParams) (OrderBatch, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM order_batches WHERE id = $1 AND order_id = $2`,
		arg.ID, arg.OrderID)
	return scanBatch(row)
}

type UpdateBatchStatusParams struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	Status     string
	PrevStatus string
}

// UpdateBatchStatus is a compare-and-swap: it only writes if the batch
// still carries PrevStatus. A raced transition surfaces as ErrNoRows.
func (q *Queries) UpdateBatchStatus(ctx context.Context, arg UpdateBatchStatusParams) (OrderBatch, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE order_batches SET status = $3
		 WHERE id = $1 AND order_id = $2 AND status = $4
		 RETURNING `+batchColumns,
		arg.ID, arg.OrderID, arg.Status, arg.PrevStatus)
	return scanBatch(row)
}

type UpdateBatchTotalParams struct {
	ID    uuid.UUID
	Total pgtype.Numeric
}

func (q *Queries) UpdateBatchTotal(ctx context.Context, arg UpdateBatchTotalParams) (OrderBatch, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE order_batches SET total = $2 WHERE id = $1 RETURNING `+batchColumns,
		arg.ID, arg.Total)
	return scanBatch(row)
}

type MarkBatchSeenParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) MarkBatchSeen(ctx context.Context, arg MarkBatchSeenParams) (OrderBatch, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE order_batches SET seen = true WHERE id = $1 AND order_id = $2
		 RETURNING `+batchColumns,
		arg.ID, arg.OrderID)
	return scanBatch(row)
}

type DeleteBatchParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) DeleteBatch(ctx context.Context, arg DeleteBatchParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM order_batches WHERE id = $1 AND order_id = $2 RETURNING id`,
		arg.ID, arg.OrderID).Scan(&id)
	return id, err
}

func (q *Queries) CountBatchesByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_batches WHERE order_id = $1`, orderID).Scan(&n)
	return n, err
}

func (q *Queries) CountUnfinishedBatches(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_batches WHERE order_id = $1 AND status <> 'FINISHED'`,
		orderID).Scan(&n)
	return n, err
}

func (q *Queries) CountUnseenBatches(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_batches b
		 JOIN orders o ON o.id = b.order_id
		 WHERE o.tenant_id = $1 AND b.seen = false`,
		tenantID).Scan(&n)
	return n, err
}

// --- Items ---

const itemColumns = `id, batch_id, name, category, size, quantity, price, instructions, image`

func scanItem(row interface{ Scan(dest ...interface{}) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(
		&it.ID, &it.BatchID, &it.Name, &it.Category, &it.Size,
		&it.Quantity, &it.Price, &it.Instructions, &it.Image,
	)
	return it, err
}

type CreateOrderItemParams struct {
	BatchID      uuid.UUID
	Name         string
	Category     pgtype.Text
	Size         pgtype.Text
	Quantity     int32
	Price        pgtype.Numeric
	Instructions pgtype.Text
	Image        pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO order_items (batch_id, name, category, size, quantity, price, instructions, image)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+itemColumns,
		arg.BatchID, arg.Name, arg.Category, arg.Size, arg.Quantity,
		arg.Price, arg.Instructions, arg.Image)
	return scanItem(row)
}

func (q *Queries) ListItemsByBatch(ctx context.Context, batchID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+itemColumns+` FROM order_items WHERE batch_id = $1 ORDER BY id`,
		batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type GetOrderItemParams struct {
	ID      uuid.UUID
	BatchID uuid.UUID
}

func (q *Queries) GetOrderItem(ctx context.Context, arg GetOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM order_items WHERE id = $1 AND batch_id = $2`,
		arg.ID, arg.BatchID)
	return scanItem(row)
}

type UpdateOrderItemParams struct {
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

func (q *Queries) UpdateOrderItem(ctx context.Context, arg UpdateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE order_items
		 SET name = $3, category = $4, size = $5, quantity = $6, price = $7, instructions = $8, image = $9
		 WHERE id = $1 AND batch_id = $2
		 RETURNING `+itemColumns,
		arg.ID, arg.BatchID, arg.Name, arg.Category, arg.Size,
		arg.Quantity, arg.Price, arg.Instructions, arg.Image)
	return scanItem(row)
}

type DeleteOrderItemParams struct {
	ID      uuid.UUID
	BatchID uuid.UUID
}

func (q *Queries) DeleteOrderItem(ctx context.Context, arg DeleteOrderItemParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM order_items WHERE id = $1 AND batch_id = $2 RETURNING id`,
		arg.ID, arg.BatchID).Scan(&id)
	return id, err
}

func (q *Queries) CountItemsByBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_items WHERE batch_id = $1`, batchID).Scan(&n)
	return n, err
}

// SumItemTotals recomputes a batch's derived total (price × quantity).
func (q *Queries) SumItemTotals(ctx context.Context, batchID uuid.UUID) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(price * quantity), 0) FROM order_items WHERE batch_id = $1`,
		batchID).Scan(&sum)
	return sum, err
}
