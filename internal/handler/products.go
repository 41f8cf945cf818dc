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
	"github.com/shopspring/decimal"

	"github.com/dinescan/api/internal/database"
	"github.com/dinescan/api/internal/enum"
)

// ProductStore defines the database methods needed by product handlers.
type ProductStore interface {
	ListProductsByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.Product, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	ProductNameExists(ctx context.Context, arg database.ProductNameExistsParams) (bool, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	DeleteProduct(ctx context.Context, arg database.DeleteProductParams) (uuid.UUID, error)
	CreateProductUnit(ctx context.Context, arg database.CreateProductUnitParams) (database.ProductUnit, error)
	ListProductUnits(ctx context.Context, productID uuid.UUID) ([]database.ProductUnit, error)
	DeleteProductUnits(ctx context.Context, productID uuid.UUID) error
}

// ProductHandler handles product CRUD endpoints.
type ProductHandler struct {
	store  ProductStore
	events EventPublisher
}

func NewProductHandler(store ProductStore, events EventPublisher) *ProductHandler {
	return &ProductHandler{store: store, events: events}
}

// RegisterPublicRoutes mounts menu reads under /tenants/{tid}/products.
func (h *ProductHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterStaffRoutes mounts the authenticated write endpoints.
func (h *ProductHandler) RegisterStaffRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type productUnitRequest struct {
	UnitID string `json:"unit_id"`
	Price  string `json:"price"`
}

type upsertProductRequest struct {
	Name       string               `json:"name"`
	CategoryID string               `json:"category_id"`
	Status     string               `json:"status"`
	Image      string               `json:"image"`
	Units      []productUnitRequest `json:"units"`
}

type productUnitResponse struct {
	ID     uuid.UUID `json:"id"`
	UnitID uuid.UUID `json:"unit_id"`
	Price  string    `json:"price"`
}

type productResponse struct {
	ID         uuid.UUID             `json:"id"`
	TenantID   uuid.UUID             `json:"tenant_id"`
	Name       string                `json:"name"`
	CategoryID uuid.UUID             `json:"category_id"`
	Status     string                `json:"status"`
	Image      *string               `json:"image"`
	Units      []productUnitResponse `json:"units"`
	CreatedAt  time.Time             `json:"created_at"`
}

func toProductResponse(p database.Product, units []database.ProductUnit) productResponse {
	resp := productResponse{
		ID:         p.ID,
		TenantID:   p.TenantID,
		Name:       p.Name,
		CategoryID: p.CategoryID,
		Status:     p.Status,
		Image:      textPtr(p.Image),
		Units:      make([]productUnitResponse, len(units)),
		CreatedAt:  p.CreatedAt,
	}
	for i, pu := range units {
		resp.Units[i] = productUnitResponse{
			ID:     pu.ID,
			UnitID: pu.UnitID,
			Price:  numericToString(pu.Price),
		}
	}
	return resp
}

// parseProductUnits validates unit options up front so nothing is
// written when any option is malformed.
func parseProductUnits(reqs []productUnitRequest) ([]database.CreateProductUnitParams, error) {
	var out []database.CreateProductUnitParams
	for _, r := range reqs {
		unitID, err := uuid.Parse(r.UnitID)
		if err != nil {
			return nil, errors.New("invalid unit_id")
		}
		price, err := decimal.NewFromString(r.Price)
		if err != nil || price.IsNegative() {
			return nil, errors.New("invalid price")
		}
		out = append(out, database.CreateProductUnitParams{
			UnitID: unitID,
			Price:  decimalToNumeric(price),
		})
	}
	return out, nil
}

// --- Handlers ---

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	products, err := h.store.ListProductsByTenant(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		units, err := h.store.ListProductUnits(r.Context(), p.ID)
		if err != nil {
			log.Printf("ERROR: list product units: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp[i] = toProductResponse(p, units)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), database.GetProductParams{
		ID:       productID,
		TenantID: tenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	units, err := h.store.ListProductUnits(r.Context(), product.ID)
	if err != nil {
		log.Printf("ERROR: list product units: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product, units))
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req upsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
		return
	}
	if req.Status == "" {
		req.Status = enum.CatalogStatusActive
	}
	if !validCatalogStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}
	unitParams, err := parseProductUnits(req.Units)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	exists, err := h.store.ProductNameExists(r.Context(), database.ProductNameExistsParams{
		TenantID: tenantID,
		Name:     req.Name,
	})
	if err != nil {
		log.Printf("ERROR: check product name: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "product name already exists"})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		TenantID:   tenantID,
		Name:       req.Name,
		CategoryID: categoryID,
		Status:     req.Status,
		Image:      textOrNull(req.Image),
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var units []database.ProductUnit
	for _, up := range unitParams {
		up.ProductID = product.ID
		pu, err := h.store.CreateProductUnit(r.Context(), up)
		if err != nil {
			log.Printf("ERROR: create product unit: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		units = append(units, pu)
	}

	resp := toProductResponse(product, units)
	h.events.Publish(tenantID, "productAdded", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// Update replaces the product's fields and its unit options wholesale.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req upsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
		return
	}
	if !validCatalogStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}
	unitParams, err := parseProductUnits(req.Units)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	exists, err := h.store.ProductNameExists(r.Context(), database.ProductNameExistsParams{
		TenantID:  tenantID,
		Name:      req.Name,
		ExcludeID: productID,
	})
	if err != nil {
		log.Printf("ERROR: check product name: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "product name already exists"})
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:         productID,
		TenantID:   tenantID,
		Name:       req.Name,
		CategoryID: categoryID,
		Status:     req.Status,
		Image:      textOrNull(req.Image),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := h.store.DeleteProductUnits(r.Context(), product.ID); err != nil {
		log.Printf("ERROR: clear product units: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	var units []database.ProductUnit
	for _, up := range unitParams {
		up.ProductID = product.ID
		pu, err := h.store.CreateProductUnit(r.Context(), up)
		if err != nil {
			log.Printf("ERROR: create product unit: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		units = append(units, pu)
	}

	resp := toProductResponse(product, units)
	h.events.Publish(tenantID, "productUpdated", resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	if _, err := h.store.DeleteProduct(r.Context(), database.DeleteProductParams{
		ID:       productID,
		TenantID: tenantID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "productDeleted", map[string]uuid.UUID{"id": productID})
	w.WriteHeader(http.StatusNoContent)
}
