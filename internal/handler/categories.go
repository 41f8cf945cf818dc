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

	"github.com/dinescan/api/internal/database"
	"github.com/dinescan/api/internal/enum"
)

// CategoryStore defines the database methods needed by category handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CategoryStore interface {
	ListCategoriesByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.Category, error)
	CategoryNameExists(ctx context.Context, arg database.CategoryNameExistsParams) (bool, error)
	CreateCategory(ctx context.Context, arg database.CreateCategoryParams) (database.Category, error)
	UpdateCategory(ctx context.Context, arg database.UpdateCategoryParams) (database.Category, error)
	DeleteCategory(ctx context.Context, arg database.DeleteCategoryParams) (uuid.UUID, error)
	CountProductsByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
}

// CategoryHandler handles category CRUD endpoints.
type CategoryHandler struct {
	store  CategoryStore
	events EventPublisher
}

func NewCategoryHandler(store CategoryStore, events EventPublisher) *CategoryHandler {
	return &CategoryHandler{store: store, events: events}
}

// RegisterPublicRoutes mounts menu reads under /tenants/{tid}/categories.
func (h *CategoryHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// RegisterStaffRoutes mounts the authenticated write endpoints.
func (h *CategoryHandler) RegisterStaffRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type upsertCategoryRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type categoryResponse struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toCategoryResponse(c database.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		TenantID:  c.TenantID,
		Name:      c.Name,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
}

func validCatalogStatus(s string) bool {
	switch s {
	case enum.CatalogStatusActive, enum.CatalogStatusInactive:
		return true
	}
	return false
}

// --- Handlers ---

// List returns all categories for the given tenant.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	categories, err := h.store.ListCategoriesByTenant(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list categories: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create adds a category. Names are unique per tenant, case-insensitively.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req upsertCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Status == "" {
		req.Status = enum.CatalogStatusActive
	}
	if !validCatalogStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	exists, err := h.store.CategoryNameExists(r.Context(), database.CategoryNameExistsParams{
		TenantID: tenantID,
		Name:     req.Name,
	})
	if err != nil {
		log.Printf("ERROR: check category name: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "category name already exists"})
		return
	}

	category, err := h.store.CreateCategory(r.Context(), database.CreateCategoryParams{
		TenantID: tenantID,
		Name:     req.Name,
		Status:   req.Status,
	})
	if err != nil {
		log.Printf("ERROR: create category: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toCategoryResponse(category)
	h.events.Publish(tenantID, "categoryAdded", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// Update modifies an existing category.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	catID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category ID"})
		return
	}

	var req upsertCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if !validCatalogStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	exists, err := h.store.CategoryNameExists(r.Context(), database.CategoryNameExistsParams{
		TenantID:  tenantID,
		Name:      req.Name,
		ExcludeID: catID,
	})
	if err != nil {
		log.Printf("ERROR: check category name: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "category name already exists"})
		return
	}

	category, err := h.store.UpdateCategory(r.Context(), database.UpdateCategoryParams{
		ID:       catID,
		TenantID: tenantID,
		Name:     req.Name,
		Status:   req.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
			return
		}
		log.Printf("ERROR: update category: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toCategoryResponse(category)
	h.events.Publish(tenantID, "categoryUpdated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// Delete removes a category. Rejected while any product references it.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	catID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category ID"})
		return
	}

	count, err := h.store.CountProductsByCategory(r.Context(), catID)
	if err != nil {
		log.Printf("ERROR: count category products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if count > 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "category is in use by products"})
		return
	}

	if _, err := h.store.DeleteCategory(r.Context(), database.DeleteCategoryParams{
		ID:       catID,
		TenantID: tenantID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
			return
		}
		log.Printf("ERROR: delete category: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "categoryDeleted", map[string]uuid.UUID{"id": catID})
	w.WriteHeader(http.StatusNoContent)
}
