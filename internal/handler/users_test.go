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
	"golang.org/x/crypto/bcrypt"

	"github.com/dinescan/api/internal/database"
	"github.com/dinescan/api/internal/enum"
	"github.com/dinescan/api/internal/handler"
)

type mockStaffStore struct {
	staff map[uuid.UUID]database.Staff
}

func newMockStaffStore() *mockStaffStore {
	return &mockStaffStore{staff: make(map[uuid.UUID]database.Staff)}
}

func (m *mockStaffStore) add(tenantID uuid.UUID, email, role string) database.Staff {
	s := database.Staff{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Email:     email,
		FullName:  "Someone",
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	m.staff[s.ID] = s
	return s
}

func (m *mockStaffStore) ListStaffByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.Staff, error) {
	var out []database.Staff
	for _, s := range m.staff {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStaffStore) GetStaff(ctx context.Context, arg database.GetStaffParams) (database.Staff, error) {
	s, ok := m.staff[arg.ID]
	if !ok || s.TenantID != arg.TenantID {
		return database.Staff{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockStaffStore) CreateStaff(ctx context.Context, arg database.CreateStaffParams) (database.Staff, error) {
	s := database.Staff{
		ID:             uuid.New(),
		TenantID:       arg.TenantID,
		Email:          arg.Email,
		HashedPassword: arg.HashedPassword,
		FullName:       arg.FullName,
		Role:           arg.Role,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	m.staff[s.ID] = s
	return s, nil
}

func (m *mockStaffStore) UpdateStaff(ctx context.Context, arg database.UpdateStaffParams) (database.Staff, error) {
	s, ok := m.staff[arg.ID]
	if !ok || s.TenantID != arg.TenantID {
		return database.Staff{}, pgx.ErrNoRows
	}
	s.FullName = arg.FullName
	s.Role = arg.Role
	s.IsActive = arg.IsActive
	m.staff[arg.ID] = s
	return s, nil
}

func (m *mockStaffStore) UpdateStaffPassword(ctx context.Context, arg database.UpdateStaffPasswordParams) error {
	s, ok := m.staff[arg.ID]
	if !ok || s.TenantID != arg.TenantID {
		return database.ErrNotFound
	}
	s.HashedPassword = arg.HashedPassword
	m.staff[arg.ID] = s
	return nil
}

func (m *mockStaffStore) DeleteStaff(ctx context.Context, arg database.DeleteStaffParams) (uuid.UUID, error) {
	s, ok := m.staff[arg.ID]
	if !ok || s.TenantID != arg.TenantID {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.staff, arg.ID)
	return s.ID, nil
}

func setupStaffRouter(store handler.StaffStore) http.Handler {
	h := handler.NewStaffHandler(store)
	r := chi.NewRouter()
	r.Route("/tenants/{tid}/staff", h.RegisterRoutes)
	return r
}

func TestListStaff(t *testing.T) {
	store := newMockStaffStore()
	tenantID := uuid.New()
	store.add(tenantID, "a@example.com", enum.StaffRoleCashier)
	store.add(tenantID, "b@example.com", enum.StaffRoleKitchen)
	store.add(uuid.New(), "c@example.com", enum.StaffRoleOwner)

	router := setupStaffRouter(store)
	rec := doRequest(t, router, http.MethodGet, "/tenants/"+tenantID.String()+"/staff/", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	var got []map[string]interface{}
	decodeBody(t, rec, &got)
	if len(got) != 2 {
		t.Errorf("staff: got %d, want 2", len(got))
	}
	// Password hashes never leave the server
	for _, s := range got {
		if _, ok := s["hashed_password"]; ok {
			t.Error("response must not contain hashed_password")
		}
	}
}

func TestCreateStaff(t *testing.T) {
	store := newMockStaffStore()
	tenantID := uuid.New()
	router := setupStaffRouter(store)

	rec := doRequest(t, router, http.MethodPost, "/tenants/"+tenantID.String()+"/staff/",
		map[string]string{
			"email":     "cook@example.com",
			"password":  "s3cret",
			"full_name": "Head Cook",
			"role":      enum.StaffRoleKitchen,
		})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var created database.Staff
	for _, s := range store.staff {
		created = s
	}
	if created.HashedPassword == "s3cret" {
		t.Error("password must be stored hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.HashedPassword), []byte("s3cret")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestCreateStaff_InvalidRole(t *testing.T) {
	router := setupStaffRouter(newMockStaffStore())
	rec := doRequest(t, router, http.MethodPost, "/tenants/"+uuid.New().String()+"/staff/",
		map[string]string{
			"email":     "cook@example.com",
			"password":  "s3cret",
			"full_name": "Head Cook",
			"role":      "JANITOR",
		})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUpdateStaff(t *testing.T) {
	store := newMockStaffStore()
	tenantID := uuid.New()
	s := store.add(tenantID, "a@example.com", enum.StaffRoleCashier)
	router := setupStaffRouter(store)

	rec := doRequest(t, router, http.MethodPut,
		fmt.Sprintf("/tenants/%s/staff/%s", tenantID, s.ID),
		map[string]interface{}{"full_name": "New Name", "role": enum.StaffRoleManager, "is_active": false})

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	updated := store.staff[s.ID]
	if updated.Role != enum.StaffRoleManager {
		t.Errorf("role: got %s, want %s", updated.Role, enum.StaffRoleManager)
	}
	if updated.IsActive {
		t.Error("is_active should be false")
	}
}

func TestUpdateStaffPassword(t *testing.T) {
	store := newMockStaffStore()
	tenantID := uuid.New()
	s := store.add(tenantID, "a@example.com", enum.StaffRoleCashier)
	router := setupStaffRouter(store)

	rec := doRequest(t, router, http.MethodPut,
		fmt.Sprintf("/tenants/%s/staff/%s/password", tenantID, s.ID),
		map[string]string{"password": "new-pass"})

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	if err := bcrypt.CompareHashAndPassword([]byte(store.staff[s.ID].HashedPassword), []byte("new-pass")); err != nil {
		t.Errorf("stored hash does not match new password: %v", err)
	}
}

func TestUpdateStaffPassword_NotFound(t *testing.T) {
	router := setupStaffRouter(newMockStaffStore())
	rec := doRequest(t, router, http.MethodPut,
		fmt.Sprintf("/tenants/%s/staff/%s/password", uuid.New(), uuid.New()),
		map[string]string{"password": "new-pass"})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteStaff(t *testing.T) {
	store := newMockStaffStore()
	tenantID := uuid.New()
	s := store.add(tenantID, "a@example.com", enum.StaffRoleCashier)
	router := setupStaffRouter(store)

	rec := doRequest(t, router, http.MethodDelete,
		fmt.Sprintf("/tenants/%s/staff/%s", tenantID, s.ID), nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNoContent)
	}
	if _, ok := store.staff[s.ID]; ok {
		t.Error("staff should be removed")
	}
}
