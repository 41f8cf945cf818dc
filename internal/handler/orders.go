package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dinescan/api/internal/database"
	"github.com/dinescan/api/internal/enum"
	"github.com/dinescan/api/internal/service"
)

// allowedTransitions is the closed batch status machine. ACCEPTED can
// fall back to PENDING when the kitchen rejects a batch it had taken.
var allowedTransitions = map[string][]string{
	enum.BatchStatusPending:  {enum.BatchStatusAccepted},
	enum.BatchStatusAccepted: {enum.BatchStatusReady, enum.BatchStatusPending},
	enum.BatchStatusReady:    {enum.BatchStatusFinished},
	enum.BatchStatusFinished: {},
}

func validateStatusTransition(from, to string) error {
	next, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	for _, s := range next {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", from, to)
}

// OrderStore defines the database methods needed by order handlers.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetOrderByTable(ctx context.Context, arg database.GetOrderByTableParams) (database.Order, error)
	GetOrderByTableForUpdate(ctx context.Context, arg database.GetOrderByTableParams) (database.Order, error)
	GetOrderByTableAndCustomer(ctx context.Context, arg database.GetOrderByTableAndCustomerParams) (database.Order, error)
	ListOrdersByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	SumBatchTotals(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
	ListBatchesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderBatch, error)
	GetBatch(ctx context.Context, arg database.GetBatchParams) (database.OrderBatch, error)
	UpdateBatchStatus(ctx context.Context, arg database.UpdateBatchStatusParams) (database.OrderBatch, error)
	UpdateBatchTotal(ctx context.Context, arg database.UpdateBatchTotalParams) (database.OrderBatch, error)
	MarkBatchSeen(ctx context.Context, arg database.MarkBatchSeenParams) (database.OrderBatch, error)
	DeleteBatch(ctx context.Context, arg database.DeleteBatchParams) (uuid.UUID, error)
	CountBatchesByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	CountUnseenBatches(ctx context.Context, tenantID uuid.UUID) (int64, error)
	ListItemsByBatch(ctx context.Context, batchID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderItem(ctx context.Context, arg database.UpdateOrderItemParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, arg database.DeleteOrderItemParams) (uuid.UUID, error)
	CountItemsByBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
	SumItemTotals(ctx context.Context, batchID uuid.UUID) (pgtype.Numeric, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CheckoutService appends a checkout batch to a table's open order.
// Satisfied by *service.OrderService.
type CheckoutService interface {
	AppendCheckout(ctx context.Context, req service.AppendCheckoutRequest) (*service.AppendCheckoutResult, error)
}

// OrderHandler handles order lifecycle endpoints.
type OrderHandler struct {
	store    OrderStore
	pool     service.TxBeginner
	newStore NewOrderStore
	checkout CheckoutService
	events   EventPublisher
}

func NewOrderHandler(store OrderStore, pool service.TxBeginner, newStore NewOrderStore, checkout CheckoutService, events EventPublisher) *OrderHandler {
	return &OrderHandler{store: store, pool: pool, newStore: newStore, checkout: checkout, events: events}
}

// RegisterPublicRoutes mounts the customer-facing order endpoints
// under /tenants/{tid}/orders. Checkout is IP-gated instead of
// JWT-protected; the rest operate on the customer's own table.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/", h.AppendCheckout)
	r.Get("/{table}", h.GetByTable)
	r.Put("/{table}/batches/{bid}/items/{iid}", h.EditItem)
	r.Delete("/{table}/batches/{bid}/items/{iid}", h.DeleteItem)
	r.Delete("/{table}/batches/{bid}", h.DeleteBatch)
}

// RegisterStaffRoutes mounts the authenticated order endpoints.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Delete("/{table}", h.Delete)
	r.Patch("/{table}/batches/{bid}/status", h.UpdateBatchStatus)
	r.Post("/{table}/batches/{bid}/seen", h.MarkSeen)
}

// --- Request / Response types ---

type checkoutItemRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Size         string `json:"size"`
	Quantity     int32  `json:"quantity"`
	Price        string `json:"price"`
	Instructions string `json:"instructions"`
	Image        string `json:"image"`
}

type appendCheckoutRequest struct {
	TableID    string                `json:"table_id"`
	CustomerID string                `json:"customer_id"`
	IPAddress  string                `json:"ip_address"`
	Items      []checkoutItemRequest `json:"items"`
}

type updateBatchStatusRequest struct {
	Status string `json:"status"`
}

type editItemRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Size         string `json:"size"`
	Quantity     int32  `json:"quantity"`
	Price        string `json:"price"`
	Instructions string `json:"instructions"`
	Image        string `json:"image"`
}

type orderItemResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Category     *string   `json:"category"`
	Size         *string   `json:"size"`
	Quantity     int32     `json:"quantity"`
	Price        string    `json:"price"`
	Instructions *string   `json:"instructions"`
	Image        *string   `json:"image"`
}

type batchResponse struct {
	ID        uuid.UUID           `json:"id"`
	Total     string              `json:"total"`
	Status    string              `json:"status"`
	Seen      bool                `json:"seen"`
	Items     []orderItemResponse `json:"items"`
	CreatedAt time.Time           `json:"created_at"`
}

type orderResponse struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	TableID     string          `json:"table_id"`
	CustomerID  string          `json:"customer_id"`
	Status      string          `json:"status"`
	TotalAmount string          `json:"total_amount"`
	Batches     []batchResponse `json:"batches"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toOrderItemResponse(it database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:           it.ID,
		Name:         it.Name,
		Category:     textPtr(it.Category),
		Size:         textPtr(it.Size),
		Quantity:     it.Quantity,
		Price:        numericToString(it.Price),
		Instructions: textPtr(it.Instructions),
		Image:        textPtr(it.Image),
	}
}

// buildOrderResponse assembles the full order with its batches and items,
// oldest batch first.
func (h *OrderHandler) buildOrderResponse(ctx context.Context, order database.Order) (orderResponse, error) {
	resp := orderResponse{
		ID:          order.ID,
		TenantID:    order.TenantID,
		TableID:     order.TableID,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		TotalAmount: numericToString(order.TotalAmount),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}

	batches, err := h.store.ListBatchesByOrder(ctx, order.ID)
	if err != nil {
		return resp, err
	}
	resp.Batches = make([]batchResponse, len(batches))
	for i, b := range batches {
		items, err := h.store.ListItemsByBatch(ctx, b.ID)
		if err != nil {
			return resp, err
		}
		br := batchResponse{
			ID:        b.ID,
			Total:     numericToString(b.Total),
			Status:    b.Status,
			Seen:      b.Seen,
			Items:     make([]orderItemResponse, len(items)),
			CreatedAt: b.CreatedAt,
		}
		for j, it := range items {
			br.Items[j] = toOrderItemResponse(it)
		}
		resp.Batches[i] = br
	}
	return resp, nil
}

// --- Handlers ---

// AppendCheckout appends a checkout batch to the table's open order,
// creating the order when the table has none.
func (h *OrderHandler) AppendCheckout(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req appendCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq := service.AppendCheckoutRequest{
		TenantID:   tenantID,
		TableID:    req.TableID,
		CustomerID: req.CustomerID,
		IPAddress:  req.IPAddress,
		Items:      make([]service.CheckoutItemRequest, len(req.Items)),
	}
	for i, it := range req.Items {
		svcReq.Items[i] = service.CheckoutItemRequest{
			Name:         it.Name,
			Category:     it.Category,
			Size:         it.Size,
			Quantity:     it.Quantity,
			Price:        it.Price,
			Instructions: it.Instructions,
			Image:        it.Image,
		}
	}

	result, err := h.checkout.AppendCheckout(r.Context(), svcReq)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIPNotAllowed):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Please connect to the restaurant WiFi to continue."})
		case errors.Is(err, service.ErrTableClaimed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table is claimed by another customer"})
		case errors.Is(err, service.ErrEmptyItems),
			errors.Is(err, service.ErrMissingTable),
			errors.Is(err, service.ErrMissingIP),
			errors.Is(err, service.ErrItemName),
			errors.Is(err, service.ErrInvalidQuantity),
			errors.Is(err, service.ErrInvalidPrice):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: append checkout: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp, err := h.buildOrderResponse(r.Context(), result.Order)
	if err != nil {
		log.Printf("ERROR: build order response: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "orderAdded", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List returns every open order for the tenant.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	orders, err := h.store.ListOrdersByTenant(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		or, err := h.buildOrderResponse(r.Context(), o)
		if err != nil {
			log.Printf("ERROR: build order response: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp[i] = or
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetByTable returns the table's open order. With ?customer_id= the
// order must also belong to that customer.
func (h *OrderHandler) GetByTable(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableID := chi.URLParam(r, "table")

	var order database.Order
	if customerID := r.URL.Query().Get("customer_id"); customerID != "" {
		order, err = h.store.GetOrderByTableAndCustomer(r.Context(), database.GetOrderByTableAndCustomerParams{
			TenantID:   tenantID,
			TableID:    tableID,
			CustomerID: customerID,
		})
	} else {
		order, err = h.store.GetOrderByTable(r.Context(), database.GetOrderByTableParams{
			TenantID: tenantID,
			TableID:  tableID,
		})
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.buildOrderResponse(r.Context(), order)
	if err != nil {
		log.Printf("ERROR: build order response: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete removes the table's order wholesale.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableID := chi.URLParam(r, "table")

	order, err := h.store.GetOrderByTable(r.Context(), database.GetOrderByTableParams{
		TenantID: tenantID,
		TableID:  tableID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := h.store.DeleteOrder(r.Context(), order.ID); err != nil {
		log.Printf("ERROR: delete order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "orderRemoved", map[string]interface{}{
		"id":       order.ID,
		"table_id": order.TableID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// UpdateBatchStatus drives a batch through the status machine. The
// write is a compare-and-swap on the status the caller observed, so a
// raced transition comes back as 409 rather than silently overwriting.
func (h *OrderHandler) UpdateBatchStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableID := chi.URLParam(r, "table")
	batchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return
	}

	var req updateBatchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.store.GetOrderByTable(r.Context(), database.GetOrderByTableParams{
		TenantID: tenantID,
		TableID:  tableID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	batch, err := h.store.GetBatch(r.Context(), database.GetBatchParams{
		ID:      batchID,
		OrderID: order.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
			return
		}
		log.Printf("ERROR: get batch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := validateStatusTransition(batch.Status, req.Status); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	if _, err := h.store.UpdateBatchStatus(r.Context(), database.UpdateBatchStatusParams{
		ID:         batchID,
		OrderID:    order.ID,
		Status:     req.Status,
		PrevStatus: batch.Status,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "batch status changed concurrently"})
			return
		}
		log.Printf("ERROR: update batch status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.buildOrderResponse(r.Context(), order)
	if err != nil {
		log.Printf("ERROR: build order response: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "orderUpdated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// EditItem mutates an item and recomputes the batch total, then the
// order total, in one transaction behind the order row lock.
func (h *OrderHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableID := chi.URLParam(r, "table")
	batchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "iid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req editItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be > 0"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	store := h.newStore(tx)

	order, err := store.GetOrderByTableForUpdate(r.Context(), database.GetOrderByTableParams{
		TenantID: tenantID,
		TableID:  tableID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := store.GetBatch(r.Context(), database.GetBatchParams{ID: batchID, OrderID: order.ID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
			return
		}
		log.Printf("ERROR: get batch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := store.UpdateOrderItem(r.Context(), database.UpdateOrderItemParams{
		ID:           itemID,
		BatchID:      batchID,
		Name:         req.Name,
		Category:     textOrNull(req.Category),
		Size:         textOrNull(req.Size),
		Quantity:     req.Quantity,
		Price:        decimalToNumeric(price),
		Instructions: textOrNull(req.Instructions),
		Image:        textOrNull(req.Image),
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
			return
		}
		log.Printf("ERROR: update item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	order, err = h.recomputeTotals(r.Context(), store, order.ID, batchID)
	if err != nil {
		log.Printf("ERROR: recompute totals: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.buildOrderResponse(r.Context(), order)
	if err != nil {
		log.Printf("ERROR: build order response: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "orderItemUpdated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// recomputeTotals refreshes the batch total from its items, then the
// order total from its batches, inside the caller's transaction.
func (h *OrderHandler) recomputeTotals(ctx context.Context, store OrderStore, orderID, batchID uuid.UUID) (database.Order, error) {
	batchTotal, err := store.SumItemTotals(ctx, batchID)
	if err != nil {
		return database.Order{}, fmt.Errorf("sum item totals: %w", err)
	}
	if _, err := store.UpdateBatchTotal(ctx, database.UpdateBatchTotalParams{
		ID:    batchID,
		Total: batchTotal,
	}); err != nil {
		return database.Order{}, fmt.Errorf("update batch total: %w", err)
	}
	orderTotal, err := store.SumBatchTotals(ctx, orderID)
	if err != nil {
		return database.Order{}, fmt.Errorf("sum batch totals: %w", err)
	}
	order, err := store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{
		ID:          orderID,
		TotalAmount: orderTotal,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update order total: %w", err)
	}
	return order, nil
}

// DeleteItem removes an item. An emptied batch is removed with it; an
// emptied order is removed wholesale and broadcast as orderRemoved.
func (h *OrderHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableID := chi.URLParam(r, "table")
	batchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "iid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	store := h.newStore(tx)

	order, err := store.GetOrderByTableForUpdate(r.Context(), database.GetOrderByTableParams{
		TenantID: tenantID,
		TableID:  tableID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := store.DeleteOrderItem(r.Context(), database.DeleteOrderItemParams{
		ID:      itemID,
		BatchID: batchID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
			return
		}
		log.Printf("ERROR: delete item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	itemsLeft, err := store.CountItemsByBatch(r.Context(), batchID)
	if err != nil {
		log.Printf("ERROR: count batch items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if itemsLeft == 0 {
		if _, err := store.DeleteBatch(r.Context(), database.DeleteBatchParams{
			ID:      batchID,
			OrderID: order.ID,
		}); err != nil {
			log.Printf("ERROR: delete emptied batch: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		batchesLeft, err := store.CountBatchesByOrder(r.Context(), order.ID)
		if err != nil {
			log.Printf("ERROR: count batches: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if batchesLeft == 0 {
			if err := store.DeleteOrder(r.Context(), order.ID); err != nil {
				log.Printf("ERROR: delete emptied order: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			if err := tx.Commit(r.Context()); err != nil {
				log.Printf("ERROR: commit tx: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			h.events.Publish(tenantID, "orderRemoved", map[string]interface{}{
				"id":       order.ID,
				"table_id": order.TableID,
			})
			w.WriteHeader(http.StatusNoContent)
			return
		}

		orderTotal, err := store.SumBatchTotals(r.Context(), order.ID)
		if err != nil {
			log.Printf("ERROR: sum batch totals: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		order, err = store.UpdateOrderTotal(r.Context(), database.UpdateOrderTotalParams{
			ID:          order.ID,
			TotalAmount: orderTotal,
		})
		if err != nil {
			log.Printf("ERROR: update order total: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	} else {
		order, err = h.recomputeTotals(r.Context(), store, order.ID, batchID)
		if err != nil {
			log.Printf("ERROR: recompute totals: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.buildOrderResponse(r.Context(), order)
	if err != nil {
		log.Printf("ERROR: build order response: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "orderItemRemoved", resp)
	writeJSON(w, http.StatusOK, resp)
}

// DeleteBatch lets a customer cancel a whole checkout batch. An emptied
// order is removed wholesale.
func (h *OrderHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableID := chi.URLParam(r, "table")
	batchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context()) //nolint:errcheck

	store := h.newStore(tx)

	order, err := store.GetOrderByTableForUpdate(r.Context(), database.GetOrderByTableParams{
		TenantID: tenantID,
		TableID:  tableID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := store.DeleteBatch(r.Context(), database.DeleteBatchParams{
		ID:      batchID,
		OrderID: order.ID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
			return
		}
		log.Printf("ERROR: delete batch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	batchesLeft, err := store.CountBatchesByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: count batches: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if batchesLeft == 0 {
		if err := store.DeleteOrder(r.Context(), order.ID); err != nil {
			log.Printf("ERROR: delete emptied order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if err := tx.Commit(r.Context()); err != nil {
			log.Printf("ERROR: commit tx: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		h.events.Publish(tenantID, "orderRemoved", map[string]interface{}{
			"id":       order.ID,
			"table_id": order.TableID,
		})
		w.WriteHeader(http.StatusNoContent)
		return
	}

	orderTotal, err := store.SumBatchTotals(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: sum batch totals: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	order, err = store.UpdateOrderTotal(r.Context(), database.UpdateOrderTotalParams{
		ID:          order.ID,
		TotalAmount: orderTotal,
	})
	if err != nil {
		log.Printf("ERROR: update order total: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.buildOrderResponse(r.Context(), order)
	if err != nil {
		log.Printf("ERROR: build order response: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "orderHistoryRemoved", resp)
	writeJSON(w, http.StatusOK, resp)
}

// MarkSeen flags a batch notification as acknowledged by staff.
func (h *OrderHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableID := chi.URLParam(r, "table")
	batchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch ID"})
		return
	}

	order, err := h.store.GetOrderByTable(r.Context(), database.GetOrderByTableParams{
		TenantID: tenantID,
		TableID:  tableID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	batch, err := h.store.MarkBatchSeen(r.Context(), database.MarkBatchSeenParams{
		ID:      batchID,
		OrderID: order.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
			return
		}
		log.Printf("ERROR: mark batch seen: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "notificationSeen", map[string]uuid.UUID{"id": batch.ID})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":   batch.ID,
		"seen": batch.Seen,
	})
}

// CountUnseen returns the number of unacknowledged batches across the
// tenant's open orders. Mounted at /tenants/{tid}/notifications/unseen.
func (h *OrderHandler) CountUnseen(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	count, err := h.store.CountUnseenBatches(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: count unseen batches: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}
