package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dinescan/api/internal/database"
	"github.com/dinescan/api/internal/enum"
	"github.com/dinescan/api/internal/handler"
)

// mockReportStore backs handler.ReportStore with in-memory data.
type mockReportStore struct {
	orders    map[uuid.UUID]database.Order
	batches   []database.OrderBatch
	items     []database.OrderItem
	sales     map[uuid.UUID]database.Sale
	saleItems []database.SaleItem
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{
		orders: make(map[uuid.UUID]database.Order),
		sales:  make(map[uuid.UUID]database.Sale),
	}
}

func (m *mockReportStore) addOrder(tenantID uuid.UUID, tableID, customerID string) database.Order {
	o := database.Order{
		ID:         uuid.New(),
		TenantID:   tenantID,
		TableID:    tableID,
		CustomerID: customerID,
		Status:     enum.OrderStatusRunning,
		CreatedAt:  time.Now(),
	}
	m.orders[o.ID] = o
	return o
}

func (m *mockReportStore) addBatch(orderID uuid.UUID, status, total string) database.OrderBatch {
	b := database.OrderBatch{
		ID:      uuid.New(),
		OrderID: orderID,
		Total:   makeNum(total),
		Status:  status,
	}
	m.batches = append(m.batches, b)
	return b
}

func (m *mockReportStore) addItem(batchID uuid.UUID, name string, quantity int32, price string) database.OrderItem {
	it := database.OrderItem{
		ID:       uuid.New(),
		BatchID:  batchID,
		Name:     name,
		Quantity: quantity,
		Price:    makeNum(price),
	}
	m.items = append(m.items, it)
	return it
}

func (m *mockReportStore) addSale(tenantID uuid.UUID, tableID, customerID, total string) database.Sale {
	s := database.Sale{
		ID:            uuid.New(),
		TenantID:      tenantID,
		TableID:       tableID,
		Subtotal:      makeNum(total),
		TotalAmount:   makeNum(total),
		PaymentMethod: enum.PaymentMethodCash,
		Status:        enum.SaleStatusPaid,
		CreatedAt:     time.Now(),
	}
	if customerID != "" {
		s.CustomerID = pgtype.Text{String: customerID, Valid: true}
	}
	m.sales[s.ID] = s
	return s
}

func (m *mockReportStore) GetOrderByTableForUpdate(ctx context.Context, arg database.GetOrderByTableParams) (database.Order, error) {
	for _, o := range m.orders {
		if o.TenantID == arg.TenantID && o.TableID == arg.TableID {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockReportStore) ListBatchesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderBatch, error) {
	var out []database.OrderBatch
	for _, b := range m.batches {
		if b.OrderID == orderID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockReportStore) CountUnfinishedBatches(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	for _, b := range m.batches {
		if b.OrderID == orderID && b.Status != enum.BatchStatusFinished {
			n++
		}
	}
	return n, nil
}

func (m *mockReportStore) ListItemsByBatch(ctx context.Context, batchID uuid.UUID) ([]database.OrderItem, error) {
	var out []database.OrderItem
	for _, it := range m.items {
		if it.BatchID == batchID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockReportStore) SumBatchTotals(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	total := decimal.Zero
	for _, b := range m.batches {
		if b.OrderID == orderID {
			total = total.Add(numToDecimal(b.Total))
		}
	}
	return makeNum(total.StringFixed(2)), nil
}

func (m *mockReportStore) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	delete(m.orders, id)
	return nil
}

func (m *mockReportStore) CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error) {
	s := database.Sale{
		ID:             uuid.New(),
		TenantID:       arg.TenantID,
		TableID:        arg.TableID,
		CustomerID:     arg.CustomerID,
		Subtotal:       arg.Subtotal,
		DiscountPct:    arg.DiscountPct,
		DiscountAmount: arg.DiscountAmount,
		VatPct:         arg.VatPct,
		VatAmount:      arg.VatAmount,
		TotalAmount:    arg.TotalAmount,
		PaymentMethod:  arg.PaymentMethod,
		Status:         arg.Status,
		CreatedAt:      time.Now(),
	}
	m.sales[s.ID] = s
	return s, nil
}

func (m *mockReportStore) CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error) {
	si := database.SaleItem{
		ID:       uuid.New(),
		SaleID:   arg.SaleID,
		Name:     arg.Name,
		Size:     arg.Size,
		Quantity: arg.Quantity,
		Price:    arg.Price,
	}
	m.saleItems = append(m.saleItems, si)
	return si, nil
}

func (m *mockReportStore) ListSalesByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.Sale, error) {
	var out []database.Sale
	for _, s := range m.sales {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockReportStore) ListSalesByCustomer(ctx context.Context, arg database.ListSalesByCustomerParams) ([]database.Sale, error) {
	var out []database.Sale
	for _, s := range m.sales {
		if s.TenantID == arg.TenantID && s.CustomerID.Valid && s.CustomerID.String == arg.CustomerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockReportStore) GetSale(ctx context.Context, arg database.GetSaleParams) (database.Sale, error) {
	s, ok := m.sales[arg.ID]
	if !ok || s.TenantID != arg.TenantID {
		return database.Sale{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockReportStore) ListSaleItems(ctx context.Context, saleID uuid.UUID) ([]database.SaleItem, error) {
	var out []database.SaleItem
	for _, si := range m.saleItems {
		if si.SaleID == saleID {
			out = append(out, si)
		}
	}
	return out, nil
}

func (m *mockReportStore) DeleteSale(ctx context.Context, arg database.DeleteSaleParams) (uuid.UUID, error) {
	s, ok := m.sales[arg.ID]
	if !ok || s.TenantID != arg.TenantID {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.sales, arg.ID)
	return s.ID, nil
}

func setupReportRouter(store handler.ReportStore, events handler.EventPublisher) http.Handler {
	h := handler.NewReportHandler(store, stubPool{}, func(db database.DBTX) handler.ReportStore {
		return store
	}, events)
	r := chi.NewRouter()
	r.Route("/tenants/{tid}/sales", h.RegisterRoutes)
	r.Post("/tenants/{tid}/orders/{table}/settle", h.Settle)
	return r
}

// --- Settlement ---

func TestSettle(t *testing.T) {
	store := newMockReportStore()
	events := &mockPublisher{}
	tenantID := uuid.New()
	order := store.addOrder(tenantID, "T1", "cust-1")
	batch := store.addBatch(order.ID, enum.BatchStatusFinished, "250.00")
	store.addItem(batch.ID, "Biryani", 2, "100.50")
	store.addItem(batch.ID, "Lassi", 1, "49.00")

	router := setupReportRouter(store, events)
	rec := doRequest(t, router, http.MethodPost,
		"/tenants/"+tenantID.String()+"/orders/T1/settle",
		map[string]string{"vat_pct": "13", "discount_pct": "10", "payment_method": enum.PaymentMethodCash})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var got map[string]interface{}
	decodeBody(t, rec, &got)

	// subtotal 250.00, vat 32.50, discount 10% of 282.50 = 28.25
	if got["subtotal"] != "250.00" {
		t.Errorf("subtotal: got %v, want 250.00", got["subtotal"])
	}
	if got["vat_amount"] != "32.50" {
		t.Errorf("vat_amount: got %v, want 32.50", got["vat_amount"])
	}
	if got["discount_amount"] != "28.25" {
		t.Errorf("discount_amount: got %v, want 28.25", got["discount_amount"])
	}
	if got["total_amount"] != "254.25" {
		t.Errorf("total_amount: got %v, want 254.25", got["total_amount"])
	}
	if got["status"] != enum.SaleStatusPaid {
		t.Errorf("status: got %v, want %s", got["status"], enum.SaleStatusPaid)
	}

	items := got["items"].([]interface{})
	if len(items) != 2 {
		t.Errorf("snapshotted items: got %d, want 2", len(items))
	}
	if _, ok := store.orders[order.ID]; ok {
		t.Error("settled order should be deleted")
	}
	if ev, ok := events.lastEvent(); !ok || ev.EventType != "reportAdded" {
		t.Errorf("expected reportAdded event, got %+v", ev)
	}
}

func TestSettle_ZeroPercentages(t *testing.T) {
	store := newMockReportStore()
	tenantID := uuid.New()
	order := store.addOrder(tenantID, "T1", "")
	store.addBatch(order.ID, enum.BatchStatusFinished, "100.00")

	router := setupReportRouter(store, &mockPublisher{})
	rec := doRequest(t, router, http.MethodPost,
		"/tenants/"+tenantID.String()+"/orders/T1/settle",
		map[string]string{"payment_method": enum.PaymentMethodCard})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var got map[string]interface{}
	decodeBody(t, rec, &got)
	if got["total_amount"] != "100.00" {
		t.Errorf("total_amount: got %v, want 100.00", got["total_amount"])
	}
	if got["customer_id"] != nil {
		t.Errorf("customer_id: got %v, want null", got["customer_id"])
	}
}

func TestSettle_UnfinishedBatches(t *testing.T) {
	store := newMockReportStore()
	tenantID := uuid.New()
	order := store.addOrder(tenantID, "T1", "cust-1")
	store.addBatch(order.ID, enum.BatchStatusFinished, "100.00")
	store.addBatch(order.ID, enum.BatchStatusPending, "50.00")

	router := setupReportRouter(store, &mockPublisher{})
	rec := doRequest(t, router, http.MethodPost,
		"/tenants/"+tenantID.String()+"/orders/T1/settle",
		map[string]string{"payment_method": enum.PaymentMethodCash})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}
	if _, ok := store.orders[order.ID]; !ok {
		t.Error("order must survive a rejected settlement")
	}
	if len(store.sales) != 0 {
		t.Error("no sale should be created for a rejected settlement")
	}
}

func TestSettle_DuePaymentIsUnpaid(t *testing.T) {
	store := newMockReportStore()
	tenantID := uuid.New()
	order := store.addOrder(tenantID, "T1", "cust-1")
	store.addBatch(order.ID, enum.BatchStatusFinished, "100.00")

	router := setupReportRouter(store, &mockPublisher{})
	rec := doRequest(t, router, http.MethodPost,
		"/tenants/"+tenantID.String()+"/orders/T1/settle",
		map[string]string{"payment_method": enum.PaymentMethodDue})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var got map[string]interface{}
	decodeBody(t, rec, &got)
	if got["status"] != enum.SaleStatusUnpaid {
		t.Errorf("status: got %v, want %s", got["status"], enum.SaleStatusUnpaid)
	}
}

func TestSettle_InvalidPaymentMethod(t *testing.T) {
	router := setupReportRouter(newMockReportStore(), &mockPublisher{})
	rec := doRequest(t, router, http.MethodPost,
		"/tenants/"+uuid.New().String()+"/orders/T1/settle",
		map[string]string{"payment_method": "BARTER"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSettle_NegativeDiscount(t *testing.T) {
	router := setupReportRouter(newMockReportStore(), &mockPublisher{})
	rec := doRequest(t, router, http.MethodPost,
		"/tenants/"+uuid.New().String()+"/orders/T1/settle",
		map[string]string{"payment_method": enum.PaymentMethodCash, "discount_pct": "-5"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSettle_OrderNotFound(t *testing.T) {
	router := setupReportRouter(newMockReportStore(), &mockPublisher{})
	rec := doRequest(t, router, http.MethodPost,
		"/tenants/"+uuid.New().String()+"/orders/T1/settle",
		map[string]string{"payment_method": enum.PaymentMethodCash})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// --- Sales reads ---

func TestListSales(t *testing.T) {
	store := newMockReportStore()
	tenantID := uuid.New()
	store.addSale(tenantID, "T1", "cust-1", "100.00")
	store.addSale(tenantID, "T2", "", "80.00")
	store.addSale(uuid.New(), "T1", "", "50.00")

	router := setupReportRouter(store, &mockPublisher{})
	rec := doRequest(t, router, http.MethodGet, "/tenants/"+tenantID.String()+"/sales/", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	var got []map[string]interface{}
	decodeBody(t, rec, &got)
	if len(got) != 2 {
		t.Errorf("sales: got %d, want 2", len(got))
	}
}

func TestGetSale(t *testing.T) {
	store := newMockReportStore()
	tenantID := uuid.New()
	sale := store.addSale(tenantID, "T1", "cust-1", "100.00")

	router := setupReportRouter(store, &mockPublisher{})
	rec := doRequest(t, router, http.MethodGet,
		fmt.Sprintf("/tenants/%s/sales/%s", tenantID, sale.ID), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var got map[string]interface{}
	decodeBody(t, rec, &got)
	if got["table_id"] != "T1" {
		t.Errorf("table_id: got %v, want T1", got["table_id"])
	}
}

func TestGetSale_NotFound(t *testing.T) {
	router := setupReportRouter(newMockReportStore(), &mockPublisher{})
	rec := doRequest(t, router, http.MethodGet,
		fmt.Sprintf("/tenants/%s/sales/%s", uuid.New(), uuid.New()), nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListSalesByCustomer(t *testing.T) {
	store := newMockReportStore()
	tenantID := uuid.New()
	store.addSale(tenantID, "T1", "cust-1", "100.00")
	store.addSale(tenantID, "T2", "cust-1", "60.00")
	store.addSale(tenantID, "T3", "cust-2", "40.00")

	router := setupReportRouter(store, &mockPublisher{})
	rec := doRequest(t, router, http.MethodGet,
		"/tenants/"+tenantID.String()+"/sales/customers/cust-1", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	var got []map[string]interface{}
	decodeBody(t, rec, &got)
	if len(got) != 2 {
		t.Errorf("sales: got %d, want 2", len(got))
	}
}

func TestDeleteSale(t *testing.T) {
	store := newMockReportStore()
	events := &mockPublisher{}
	tenantID := uuid.New()
	sale := store.addSale(tenantID, "T1", "", "100.00")

	router := setupReportRouter(store, events)
	rec := doRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/tenants/%s/sales/%s", tenantID, sale.ID), nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNoContent)
	}
	if _, ok := store.sales[sale.ID]; ok {
		t.Error("sale should be removed")
	}
	if ev, ok := events.lastEvent(); !ok || ev.EventType != "saleDeleted" {
		t.Errorf("expected saleDeleted event, got %+v", ev)
	}
}
