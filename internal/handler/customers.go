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

	"github.com/dinescan/api/internal/auth"
	"github.com/dinescan/api/internal/database"
)

// CustomerStore defines the database methods needed by customer handlers.
type CustomerStore interface {
	IsIPAllowed(ctx context.Context, arg database.IsIPAllowedParams) (bool, error)
	ListCustomersByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.Customer, error)
	GetCustomerByPhone(ctx context.Context, arg database.GetCustomerByPhoneParams) (database.Customer, error)
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
	UpdateCustomer(ctx context.Context, arg database.UpdateCustomerParams) (database.Customer, error)
	DeleteCustomer(ctx context.Context, arg database.DeleteCustomerParams) (uuid.UUID, error)
}

// CustomerHandler handles customer registration and reads.
type CustomerHandler struct {
	store     CustomerStore
	jwtSecret string
}

func NewCustomerHandler(store CustomerStore, jwtSecret string) *CustomerHandler {
	return &CustomerHandler{store: store, jwtSecret: jwtSecret}
}

// RegisterPublicRoutes mounts the IP-gated registration endpoint.
func (h *CustomerHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/", h.Register)
}

// RegisterRoutes mounts staff-facing customer endpoints.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Delete("/{id}", h.Delete)
}

type registerCustomerRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	TableID   string `json:"table_id"`
	IPAddress string `json:"ip_address"`
}

type customerResponse struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	TableID   string    `json:"table_id"`
	CreatedAt time.Time `json:"created_at"`
}

type registerCustomerResponse struct {
	Customer customerResponse `json:"customer"`
	Token    string           `json:"token"`
}

func toCustomerResponse(c database.Customer) customerResponse {
	return customerResponse{
		ID:        c.ID,
		TenantID:  c.TenantID,
		Name:      c.Name,
		Phone:     c.Phone,
		TableID:   c.TableID,
		CreatedAt: c.CreatedAt,
	}
}

// Register creates or re-binds a customer and issues a customer token.
// Callers must be on the restaurant WiFi. A missing phone gets a
// generated guest phone, so every record keeps a unique phone per
// tenant; a returning phone re-binds name and table instead of
// creating a duplicate.
func (h *CustomerHandler) Register(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req registerCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.IPAddress == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ip_address is required"})
		return
	}

	allowed, err := h.store.IsIPAllowed(r.Context(), database.IsIPAllowedParams{
		TenantID: tenantID,
		IP:       req.IPAddress,
	})
	if err != nil {
		log.Printf("ERROR: check allowed ip: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Please connect to the restaurant WiFi to continue."})
		return
	}

	var customer database.Customer
	if req.Phone == "" {
		customer, err = h.store.CreateCustomer(r.Context(), database.CreateCustomerParams{
			TenantID: tenantID,
			Name:     req.Name,
			Phone:    fmt.Sprintf("guest-%d", time.Now().UnixNano()),
			TableID:  req.TableID,
		})
		if err != nil {
			log.Printf("ERROR: create guest customer: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	} else {
		existing, err := h.store.GetCustomerByPhone(r.Context(), database.GetCustomerByPhoneParams{
			TenantID: tenantID,
			Phone:    req.Phone,
		})
		switch {
		case err == nil:
			// Any stored phone re-binds, including a generated guest
			// one a returning guest presents from their saved token
			customer, err = h.store.UpdateCustomer(r.Context(), database.UpdateCustomerParams{
				ID:      existing.ID,
				Name:    req.Name,
				TableID: req.TableID,
			})
			if err != nil {
				log.Printf("ERROR: rebind customer: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
		case errors.Is(err, pgx.ErrNoRows):
			customer, err = h.store.CreateCustomer(r.Context(), database.CreateCustomerParams{
				TenantID: tenantID,
				Name:     req.Name,
				Phone:    req.Phone,
				TableID:  req.TableID,
			})
			if err != nil {
				log.Printf("ERROR: create customer: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
		default:
			log.Printf("ERROR: get customer by phone: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	token, err := auth.GenerateCustomerToken(h.jwtSecret, customer.ID, tenantID)
	if err != nil {
		log.Printf("ERROR: generate customer token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, registerCustomerResponse{
		Customer: toCustomerResponse(customer),
		Token:    token,
	})
}

// List returns the tenant's registered customers, newest first.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	customers, err := h.store.ListCustomersByTenant(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list customers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]customerResponse, len(customers))
	for i, c := range customers {
		resp[i] = toCustomerResponse(c)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete removes a customer record.
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}

	if _, err := h.store.DeleteCustomer(r.Context(), database.DeleteCustomerParams{
		ID:       customerID,
		TenantID: tenantID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Printf("ERROR: delete customer: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
