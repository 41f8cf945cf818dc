package handler

import (
	"context"
	"encoding/json"
	"errors"
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

// ReportStore defines the database methods needed by settlement and
// sales report handlers.
type ReportStore interface {
	GetOrderByTableForUpdate(ctx context.Context, arg database.GetOrderByTableParams) (database.Order, error)
	ListBatchesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderBatch, error)
	CountUnfinishedBatches(ctx context.Context, orderID uuid.UUID) (int64, error)
	ListItemsByBatch(ctx context.Context, batchID uuid.UUID) ([]database.OrderItem, error)
	SumBatchTotals(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
	ListSalesByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.Sale, error)
	ListSalesByCustomer(ctx context.Context, arg database.ListSalesByCustomerParams) ([]database.Sale, error)
	GetSale(ctx context.Context, arg database.GetSaleParams) (database.Sale, error)
	ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error)
	DeleteSale(ctx context.Context, arg database.DeleteSaleParams) (uuid.UUID, error)
}

// NewReportStore creates a ReportStore from a DBTX (pool or tx).
type NewReportStore func(db database.DBTX) ReportStore

// ReportHandler handles settlement and sales report endpoints.
type ReportHandler struct {
	store    ReportStore
	pool     service.TxBeginner
	newStore NewReportStore
	events   EventPublisher
}

func NewReportHandler(store ReportStore, pool service.TxBeginner, newStore NewReportStore, events EventPublisher) *ReportHandler {
	return &ReportHandler{store: store, pool: pool, newStore: newStore, events: events}
}

// RegisterRoutes mounts sales reads under /tenants/{tid}/sales.
// Settle is mounted separately on the orders subrouter.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{sid}", h.Get)
	r.Get("/customers/{cid}", h.ListByCustomer)
	r.Delete("/{sid}", h.Delete)
}

// --- Request / Response types ---

type settleRequest struct {
	DiscountPct   string `json:"discount_pct"`
	VatPct        string `json:"vat_pct"`
	PaymentMethod string `json:"payment_method"`
}

type saleItemResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Size     *string   `json:"size"`
	Quantity int32     `json:"quantity"`
	Price    string    `json:"price"`
}

type saleResponse struct {
	ID             uuid.UUID          `json:"id"`
	TenantID       uuid.UUID          `json:"tenant_id"`
	TableID        string             `json:"table_id"`
	CustomerID     *string            `json:"customer_id"`
	Subtotal       string             `json:"subtotal"`
	DiscountPct    string             `json:"discount_pct"`
	DiscountAmount string             `json:"discount_amount"`
	VatPct         string             `json:"vat_pct"`
	VatAmount      string             `json:"vat_amount"`
	TotalAmount    string             `json:"total_amount"`
	PaymentMethod  string             `json:"payment_method"`
	Status         string             `json:"status"`
	Items          []saleItemResponse `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
}

func toSaleResponse(s database.Sale, items []database.SaleItem) saleResponse {
	resp := saleResponse{
		ID:             s.ID,
		TenantID:       s.TenantID,
		TableID:        s.TableID,
		CustomerID:     textPtr(s.CustomerID),
		Subtotal:       numericToString(s.Subtotal),
		DiscountPct:    numericToString(s.DiscountPct),
		DiscountAmount: numericToString(s.DiscountAmount),
		VatPct:         numericToString(s.VatPct),
		VatAmount:      numericToString(s.VatAmount),
		TotalAmount:    numericToString(s.TotalAmount),
		PaymentMethod:  s.PaymentMethod,
		Status:         s.Status,
		Items:          make([]saleItemResponse, len(items)),
		CreatedAt:      s.CreatedAt,
	}
	for i, it := range items {
		resp.Items[i] = saleItemResponse{
			ID:       it.ID,
			Name:     it.Name,
			Size:     textPtr(it.Size),
			Quantity: it.Quantity,
			Price:    numericToString(it.Price),
		}
	}
	return resp
}

func validPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodCard,
		enum.PaymentMethodTransfer, enum.PaymentMethodDue:
		return true
	}
	return false
}

// parsePct accepts an optional non-negative percentage; empty means 0.
func parsePct(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, errors.New("invalid percentage")
	}
	return d, nil
}

// --- Handlers ---

// Settle closes a table: every batch must be FINISHED, the order's
// items are snapshotted into an immutable sale, and the order is
// deleted in the same transaction.
//
//	vat      = subtotal × vat_pct / 100
//	discount = (subtotal + vat) × discount_pct / 100
//	total    = subtotal + vat − discount
func (h *ReportHandler) Settle(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableID := chi.URLParam(r, "table")

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !validPaymentMethod(req.PaymentMethod) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment_method"})
		return
	}
	discountPct, err := parsePct(req.DiscountPct)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount_pct"})
		return
	}
	vatPct, err := parsePct(req.VatPct)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid vat_pct"})
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

	unfinished, err := store.CountUnfinishedBatches(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: count unfinished batches: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if unfinished > 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order has unfinished batches"})
		return
	}

	subtotalNum, err := store.SumBatchTotals(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: sum batch totals: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	subtotal := numericToDecimal(subtotalNum)

	hundred := decimal.NewFromInt(100)
	vat := subtotal.Mul(vatPct).Div(hundred)
	discount := subtotal.Add(vat).Mul(discountPct).Div(hundred)
	total := subtotal.Add(vat).Sub(discount)

	status := enum.SaleStatusPaid
	if req.PaymentMethod == enum.PaymentMethodDue {
		status = enum.SaleStatusUnpaid
	}

	sale, err := store.CreateSale(r.Context(), database.CreateSaleParams{
		TenantID:       tenantID,
		TableID:        order.TableID,
		CustomerID:     textOrNull(order.CustomerID),
		Subtotal:       decimalToNumeric(subtotal),
		DiscountPct:    decimalToNumeric(discountPct),
		DiscountAmount: decimalToNumeric(discount),
		VatPct:         decimalToNumeric(vatPct),
		VatAmount:      decimalToNumeric(vat),
		TotalAmount:    decimalToNumeric(total),
		PaymentMethod:  req.PaymentMethod,
		Status:         status,
	})
	if err != nil {
		log.Printf("ERROR: create sale: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	batches, err := store.ListBatchesByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list batches: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	var saleItems []database.SaleItem
	for _, b := range batches {
		items, err := store.ListItemsByBatch(r.Context(), b.ID)
		if err != nil {
			log.Printf("ERROR: list batch items: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		for _, it := range items {
			si, err := store.CreateSaleItem(r.Context(), database.CreateSaleItemParams{
				SaleID:   sale.ID,
				Name:     it.Name,
				Size:     it.Size,
				Quantity: it.Quantity,
				Price:    it.Price,
			})
			if err != nil {
				log.Printf("ERROR: create sale item: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			saleItems = append(saleItems, si)
		}
	}

	if err := store.DeleteOrder(r.Context(), order.ID); err != nil {
		log.Printf("ERROR: delete settled order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toSaleResponse(sale, saleItems)
	h.events.Publish(tenantID, "reportAdded", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List returns the tenant's sales, newest first.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	sales, err := h.store.ListSalesByTenant(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.buildSaleResponses(r.Context(), sales)
	if err != nil {
		log.Printf("ERROR: build sale responses: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single sale with its snapshotted items.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	saleID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	sale, err := h.store.GetSale(r.Context(), database.GetSaleParams{
		ID:       saleID,
		TenantID: tenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale not found"})
			return
		}
		log.Printf("ERROR: get sale: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListSaleItems(r.Context(), sale.ID)
	if err != nil {
		log.Printf("ERROR: list sale items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSaleResponse(sale, items))
}

// ListByCustomer returns a customer's settlement history.
func (h *ReportHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	customerID := chi.URLParam(r, "cid")

	sales, err := h.store.ListSalesByCustomer(r.Context(), database.ListSalesByCustomerParams{
		TenantID:   tenantID,
		CustomerID: customerID,
	})
	if err != nil {
		log.Printf("ERROR: list customer sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp, err := h.buildSaleResponses(r.Context(), sales)
	if err != nil {
		log.Printf("ERROR: build sale responses: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete removes a sale record.
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	saleID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}

	if _, err := h.store.DeleteSale(r.Context(), database.DeleteSaleParams{
		ID:       saleID,
		TenantID: tenantID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale not found"})
			return
		}
		log.Printf("ERROR: delete sale: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "saleDeleted", map[string]uuid.UUID{"id": saleID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReportHandler) buildSaleResponses(ctx context.Context, sales []database.Sale) ([]saleResponse, error) {
	resp := make([]saleResponse, len(sales))
	for i, s := range sales {
		items, err := h.store.ListSaleItems(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		resp[i] = toSaleResponse(s, items)
	}
	return resp, nil
}
