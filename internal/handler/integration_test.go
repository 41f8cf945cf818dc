//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/dinescan/api/internal/config"
	"github.com/dinescan/api/internal/database"
	"github.com/dinescan/api/internal/enum"
	"github.com/dinescan/api/internal/router"
	"github.com/dinescan/api/internal/ws"
)

// setupTestServer starts a throwaway Postgres container, applies the
// migrations, and returns the full application router plus the pool for
// seeding.
func setupTestServer(t *testing.T) (http.Handler, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pgc, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pos_test"),
		tcpostgres.WithUsername("pos"),
		tcpostgres.WithPassword("pos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = pgc.Terminate(context.Background())
	})

	dsn, err := pgc.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open sql db: %v", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		t.Fatalf("migrate driver: %v", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://../../db/migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("migrate instance: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close migration conn: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	cfg := &config.Config{JWTSecret: testJWTSecret}
	queries := database.New(pool)
	hub := ws.NewHub()
	go hub.Run()

	return router.New(cfg, queries, pool, hub), pool
}

// seedTenant inserts an owner account and allow-lists the given IP.
func seedTenant(t *testing.T, pool *pgxpool.Pool, email, password, ip string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	tenantID := uuid.New()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO staff (tenant_id, email, hashed_password, full_name, role)
		 VALUES ($1, $2, $3, 'Owner', 'OWNER')`,
		tenantID, email, string(hashed)); err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO allowed_ips (tenant_id, ip) VALUES ($1, $2)`,
		tenantID, ip); err != nil {
		t.Fatalf("seed allowed ip: %v", err)
	}
	return tenantID
}

func doAuthRequest(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestOrderLifecycle walks a table from first checkout to settlement
// against a real database.
func TestOrderLifecycle(t *testing.T) {
	srv, pool := setupTestServer(t)
	tenantID := seedTenant(t, pool, "owner@example.com", "s3cret", "10.0.0.5")
	base := "/tenants/" + tenantID.String()

	// Staff login
	rec := doRequest(t, srv, http.MethodPost, "/auth/login",
		map[string]string{"email": "owner@example.com", "password": "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d: %s", rec.Code, rec.Body.String())
	}
	var login map[string]string
	decodeBody(t, rec, &login)
	token := login["access_token"]

	// Checkout from the allowed IP
	rec = doRequest(t, srv, http.MethodPost, base+"/orders/", map[string]interface{}{
		"table_id":    "T1",
		"customer_id": "cust-1",
		"ip_address":  "10.0.0.5",
		"items": []map[string]interface{}{
			{"name": "Biryani", "quantity": 2, "price": "100.50"},
			{"name": "Lassi", "quantity": 1, "price": "49.00"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: got %d: %s", rec.Code, rec.Body.String())
	}
	var order map[string]interface{}
	decodeBody(t, rec, &order)
	if order["total_amount"] != "250.00" {
		t.Fatalf("order total: got %v, want 250.00", order["total_amount"])
	}
	batches := order["batches"].([]interface{})
	batchID := batches[0].(map[string]interface{})["id"].(string)

	// Checkout from an unknown IP is rejected
	rec = doRequest(t, srv, http.MethodPost, base+"/orders/", map[string]interface{}{
		"table_id":   "T2",
		"ip_address": "8.8.8.8",
		"items":      []map[string]interface{}{{"name": "Tea", "quantity": 1, "price": "10.00"}},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("off-wifi checkout: got %d, want 403", rec.Code)
	}

	// Staff reads require a token
	rec = doRequest(t, srv, http.MethodGet, base+"/orders/", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated staff read: got %d, want 401", rec.Code)
	}
	rec = doAuthRequest(t, srv, http.MethodGet, base+"/orders/", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list orders: got %d: %s", rec.Code, rec.Body.String())
	}

	// Walk the batch through the status machine
	for _, status := range []string{
		enum.BatchStatusAccepted, enum.BatchStatusReady, enum.BatchStatusFinished,
	} {
		rec = doAuthRequest(t, srv, http.MethodPatch,
			fmt.Sprintf("%s/orders/T1/batches/%s/status", base, batchID), token,
			map[string]string{"status": status})
		if rec.Code != http.StatusOK {
			t.Fatalf("transition to %s: got %d: %s", status, rec.Code, rec.Body.String())
		}
	}

	// Skipping a step is rejected (FINISHED is terminal)
	rec = doAuthRequest(t, srv, http.MethodPatch,
		fmt.Sprintf("%s/orders/T1/batches/%s/status", base, batchID), token,
		map[string]string{"status": enum.BatchStatusAccepted})
	if rec.Code != http.StatusConflict {
		t.Fatalf("terminal transition: got %d, want 409", rec.Code)
	}

	// Settle the table
	rec = doAuthRequest(t, srv, http.MethodPost, base+"/orders/T1/settle", token,
		map[string]string{"vat_pct": "13", "discount_pct": "10", "payment_method": enum.PaymentMethodCash})
	if rec.Code != http.StatusCreated {
		t.Fatalf("settle: got %d: %s", rec.Code, rec.Body.String())
	}
	var sale map[string]interface{}
	decodeBody(t, rec, &sale)
	if sale["total_amount"] != "254.25" {
		t.Errorf("sale total: got %v, want 254.25", sale["total_amount"])
	}

	// The order is gone, the sale is on record
	rec = doRequest(t, srv, http.MethodGet, base+"/orders/T1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("settled order lookup: got %d, want 404", rec.Code)
	}
	rec = doAuthRequest(t, srv, http.MethodGet, base+"/sales/", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list sales: got %d: %s", rec.Code, rec.Body.String())
	}
	var sales []map[string]interface{}
	decodeBody(t, rec, &sales)
	if len(sales) != 1 {
		t.Fatalf("sales: got %d, want 1", len(sales))
	}
}
