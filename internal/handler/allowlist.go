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
)

// AllowlistStore defines the database methods needed by allow-list handlers.
type AllowlistStore interface {
	ListAllowedIPs(ctx context.Context, tenantID uuid.UUID) ([]database.AllowedIP, error)
	IsIPAllowed(ctx context.Context, arg database.IsIPAllowedParams) (bool, error)
	CreateAllowedIP(ctx context.Context, arg database.CreateAllowedIPParams) (database.AllowedIP, error)
	DeleteAllowedIPByAddress(ctx context.Context, arg database.DeleteAllowedIPByAddressParams) (uuid.UUID, error)
}

// AllowlistHandler manages the restaurant WiFi IP allow-list.
type AllowlistHandler struct {
	store AllowlistStore
}

func NewAllowlistHandler(store AllowlistStore) *AllowlistHandler {
	return &AllowlistHandler{store: store}
}

// RegisterRoutes mounts allow-list endpoints under /tenants/{tid}/allowed-ips
func (h *AllowlistHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Delete("/", h.Remove)
}

type allowedIPRequest struct {
	IP string `json:"ip"`
}

type allowedIPResponse struct {
	ID      uuid.UUID `json:"id"`
	IP      string    `json:"ip"`
	AddedAt time.Time `json:"added_at"`
}

func toAllowedIPResponse(a database.AllowedIP) allowedIPResponse {
	return allowedIPResponse{ID: a.ID, IP: a.IP, AddedAt: a.AddedAt}
}

func (h *AllowlistHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	ips, err := h.store.ListAllowedIPs(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list allowed ips: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]allowedIPResponse, len(ips))
	for i, a := range ips {
		resp[i] = toAllowedIPResponse(a)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Add appends an address to the allow-list. Adding an address that is
// already present is a no-op.
func (h *AllowlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req allowedIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.IP == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ip is required"})
		return
	}

	allowed, err := h.store.IsIPAllowed(r.Context(), database.IsIPAllowedParams{
		TenantID: tenantID,
		IP:       req.IP,
	})
	if err != nil {
		log.Printf("ERROR: check allowed ip: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if allowed {
		writeJSON(w, http.StatusOK, map[string]string{"ip": req.IP})
		return
	}

	entry, err := h.store.CreateAllowedIP(r.Context(), database.CreateAllowedIPParams{
		TenantID: tenantID,
		IP:       req.IP,
	})
	if err != nil {
		log.Printf("ERROR: create allowed ip: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toAllowedIPResponse(entry))
}

// Remove deletes an address from the allow-list.
func (h *AllowlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req allowedIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.IP == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ip is required"})
		return
	}

	if _, err := h.store.DeleteAllowedIPByAddress(r.Context(), database.DeleteAllowedIPByAddressParams{
		TenantID: tenantID,
		IP:       req.IP,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ip not found"})
			return
		}
		log.Printf("ERROR: delete allowed ip: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
