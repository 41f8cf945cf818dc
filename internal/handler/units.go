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

// UnitStore defines the database methods needed by unit handlers.
type UnitStore interface {
	ListUnitsByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.Unit, error)
	UnitNameExists(ctx context.Context, arg database.UnitNameExistsParams) (bool, error)
	CreateUnit(ctx context.Context, arg database.CreateUnitParams) (database.Unit, error)
	UpdateUnit(ctx context.Context, arg database.UpdateUnitParams) (database.Unit, error)
	DeleteUnit(ctx context.Context, arg database.DeleteUnitParams) (uuid.UUID, error)
	CountProductUnitsByUnit(ctx context.Context, unitID uuid.UUID) (int64, error)
}

// UnitHandler handles unit CRUD endpoints.
type UnitHandler struct {
	store  UnitStore
	events EventPublisher
}

func NewUnitHandler(store UnitStore, events EventPublisher) *UnitHandler {
	return &UnitHandler{store: store, events: events}
}

// RegisterPublicRoutes mounts menu reads under /tenants/{tid}/units.
func (h *UnitHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// RegisterStaffRoutes mounts the authenticated write endpoints.
func (h *UnitHandler) RegisterStaffRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type upsertUnitRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type unitResponse struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toUnitResponse(u database.Unit) unitResponse {
	return unitResponse{
		ID:        u.ID,
		TenantID:  u.TenantID,
		Name:      u.Name,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

func (h *UnitHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	units, err := h.store.ListUnitsByTenant(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list units: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]unitResponse, len(units))
	for i, u := range units {
		resp[i] = toUnitResponse(u)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *UnitHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req upsertUnitRequest
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

	exists, err := h.store.UnitNameExists(r.Context(), database.UnitNameExistsParams{
		TenantID: tenantID,
		Name:     req.Name,
	})
	if err != nil {
		log.Printf("ERROR: check unit name: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "unit name already exists"})
		return
	}

	unit, err := h.store.CreateUnit(r.Context(), database.CreateUnitParams{
		TenantID: tenantID,
		Name:     req.Name,
		Status:   req.Status,
	})
	if err != nil {
		log.Printf("ERROR: create unit: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toUnitResponse(unit)
	h.events.Publish(tenantID, "unitAdded", resp)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *UnitHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	unitID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit ID"})
		return
	}

	var req upsertUnitRequest
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

	exists, err := h.store.UnitNameExists(r.Context(), database.UnitNameExistsParams{
		TenantID:  tenantID,
		Name:      req.Name,
		ExcludeID: unitID,
	})
	if err != nil {
		log.Printf("ERROR: check unit name: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "unit name already exists"})
		return
	}

	unit, err := h.store.UpdateUnit(r.Context(), database.UpdateUnitParams{
		ID:       unitID,
		TenantID: tenantID,
		Name:     req.Name,
		Status:   req.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unit not found"})
			return
		}
		log.Printf("ERROR: update unit: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toUnitResponse(unit)
	h.events.Publish(tenantID, "unitUpdated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// Delete removes a unit. Rejected while any product size references it.
func (h *UnitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	unitID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit ID"})
		return
	}

	count, err := h.store.CountProductUnitsByUnit(r.Context(), unitID)
	if err != nil {
		log.Printf("ERROR: count unit references: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if count > 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "unit is in use by products"})
		return
	}

	if _, err := h.store.DeleteUnit(r.Context(), database.DeleteUnitParams{
		ID:       unitID,
		TenantID: tenantID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unit not found"})
			return
		}
		log.Printf("ERROR: delete unit: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.events.Publish(tenantID, "unitDeleted", map[string]uuid.UUID{"id": unitID})
	w.WriteHeader(http.StatusNoContent)
}
