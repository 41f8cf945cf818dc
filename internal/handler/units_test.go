package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dinescan/api/internal/database"
	"github.com/dinescan/api/internal/enum"
	"github.com/dinescan/api/internal/handler"
)

type mockUnitStore struct {
	units    map[uuid.UUID]database.Unit
	refCount int64
}

func newMockUnitStore() *mockUnitStore {
	return &mockUnitStore{units: make(map[uuid.UUID]database.Unit)}
}

func (m *mockUnitStore) add(tenantID uuid.UUID, name string) database.Unit {
	u := database.Unit{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		Status:    enum.CatalogStatusActive,
		CreatedAt: time.Now(),
	}
	m.units[u.ID] = u
	return u
}

func (m *mockUnitStore) ListUnitsByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.Unit, error) {
	var out []database.Unit
	for _, u := range m.units {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUnitStore) UnitNameExists(ctx context.Context, arg database.UnitNameExistsParams) (bool, error) {
	for _, u := range m.units {
		if u.TenantID == arg.TenantID && strings.EqualFold(u.Name, arg.Name) && u.ID != arg.ExcludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUnitStore) CreateUnit(ctx context.Context, arg database.CreateUnitParams) (database.Unit, error) {
	u := m.add(arg.TenantID, arg.Name)
	u.Status = arg.Status
	m.units[u.ID] = u
	return u, nil
}

func (m *mockUnitStore) UpdateUnit(ctx context.Context, arg database.UpdateUnitParams) (database.Unit, error) {
	u, ok := m.units[arg.ID]
	if !ok || u.TenantID != arg.TenantID {
		return database.Unit{}, pgx.ErrNoRows
	}
	u.Name = arg.Name
	u.Status = arg.Status
	m.units[arg.ID] = u
	return u, nil
}

func (m *mockUnitStore) DeleteUnit(ctx context.Context, arg database.DeleteUnitParams) (uuid.UUID, error) {
	u, ok := m.units[arg.ID]
	if !ok || u.TenantID != arg.TenantID {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.units, arg.ID)
	return u.ID, nil
}

func (m *mockUnitStore) CountProductUnitsByUnit(ctx context.Context, unitID uuid.UUID) (int64, error) {
	return m.refCount, nil
}

func setupUnitRouter(store handler.UnitStore, events handler.EventPublisher) http.Handler {
	h := handler.NewUnitHandler(store, events)
	r := chi.NewRouter()
	r.Route("/tenants/{tid}/units", func(r chi.Router) {
		h.RegisterPublicRoutes(r)
		h.RegisterStaffRoutes(r)
	})
	return r
}

func TestCreateUnit(t *testing.T) {
	store := newMockUnitStore()
	events := &mockPublisher{}
	tenantID := uuid.New()
	router := setupUnitRouter(store, events)

	rec := doRequest(t, router, http.MethodPost, "/tenants/"+tenantID.String()+"/units/",
		map[string]string{"name": "Full Plate"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if ev, ok := events.lastEvent(); !ok || ev.EventType != "unitAdded" {
		t.Errorf("expected unitAdded event, got %+v", ev)
	}
}

func TestCreateUnit_DuplicateName(t *testing.T) {
	store := newMockUnitStore()
	tenantID := uuid.New()
	store.add(tenantID, "Half Plate")
	router := setupUnitRouter(store, &mockPublisher{})

	rec := doRequest(t, router, http.MethodPost, "/tenants/"+tenantID.String()+"/units/",
		map[string]string{"name": "half plate"})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestUpdateUnit(t *testing.T) {
	store := newMockUnitStore()
	tenantID := uuid.New()
	u := store.add(tenantID, "Half Plate")
	router := setupUnitRouter(store, &mockPublisher{})

	rec := doRequest(t, router, http.MethodPut,
		fmt.Sprintf("/tenants/%s/units/%s", tenantID, u.ID),
		map[string]string{"name": "Half", "status": enum.CatalogStatusActive})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if store.units[u.ID].Name != "Half" {
		t.Errorf("name: got %s, want Half", store.units[u.ID].Name)
	}
}

func TestDeleteUnit_InUse(t *testing.T) {
	store := newMockUnitStore()
	store.refCount = 2
	tenantID := uuid.New()
	u := store.add(tenantID, "Half Plate")
	router := setupUnitRouter(store, &mockPublisher{})

	rec := doRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/tenants/%s/units/%s", tenantID, u.ID), nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusConflict)
	}
	if _, ok := store.units[u.ID]; !ok {
		t.Error("unit should not be deleted while referenced")
	}
}

func TestDeleteUnit(t *testing.T) {
	store := newMockUnitStore()
	events := &mockPublisher{}
	tenantID := uuid.New()
	u := store.add(tenantID, "Half Plate")
	router := setupUnitRouter(store, events)

	rec := doRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/tenants/%s/units/%s", tenantID, u.ID), nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNoContent)
	}
	if ev, ok := events.lastEvent(); !ok || ev.EventType != "unitDeleted" {
		t.Errorf("expected unitDeleted event, got %+v", ev)
	}
}
