package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dinescan/api/internal/auth"
	"github.com/dinescan/api/internal/enum"
)

func newTestClient(tenantID uuid.UUID, buffer int) *Client {
	return &Client{
		tenantID: tenantID,
		send:     make(chan []byte, buffer),
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.send:
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubPublish(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantID := uuid.New()
	client := newTestClient(tenantID, 8)
	hub.register <- client

	hub.Publish(tenantID, "orderAdded", map[string]string{"table_id": "T1"})

	ev := receive(t, client)
	if ev.Type != "orderAdded" {
		t.Errorf("event type: got %s, want orderAdded", ev.Type)
	}

	var payload map[string]string
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["table_id"] != "T1" {
		t.Errorf("payload table_id: got %s, want T1", payload["table_id"])
	}
}

func TestHubTenantIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantA := uuid.New()
	tenantB := uuid.New()
	clientA := newTestClient(tenantA, 8)
	clientB := newTestClient(tenantB, 8)
	hub.register <- clientA
	hub.register <- clientB

	hub.Publish(tenantA, "orderAdded", map[string]string{"table_id": "T1"})

	ev := receive(t, clientA)
	if ev.Type != "orderAdded" {
		t.Errorf("event type: got %s, want orderAdded", ev.Type)
	}

	select {
	case raw := <-clientB.send:
		t.Errorf("other tenant's client received event: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantID := uuid.New()
	client := newTestClient(tenantID, 8)
	hub.register <- client
	hub.unregister <- client

	// The hub closes the send channel on unregister
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}

	// Publishing to the emptied room must not block or panic
	hub.Publish(tenantID, "orderAdded", map[string]string{"table_id": "T1"})
}

func TestHubEvictsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	tenantID := uuid.New()
	client := newTestClient(tenantID, 1)
	hub.register <- client

	// First event fills the buffer, second overflows and evicts
	hub.Publish(tenantID, "orderAdded", map[string]string{"n": "1"})
	hub.Publish(tenantID, "orderAdded", map[string]string{"n": "2"})

	// Drain: one buffered message, then the closed channel
	receive(t, client)
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed send channel after eviction")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for eviction")
	}
}

func TestServeWSRejectsOtherTenant(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	secret := "test-secret"
	tenantA := uuid.New()
	tenantB := uuid.New()
	token, err := auth.GenerateToken(secret, uuid.New(), tenantA, enum.StaffRoleOwner)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	r := chi.NewRouter()
	r.Get("/ws/tenants/{tid}/orders", func(w http.ResponseWriter, req *http.Request) {
		ServeWS(hub, secret, w, req)
	})

	req := httptest.NewRequest("GET", "/ws/tenants/"+tenantB.String()+"/orders?token="+token, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d (owner tokens do not open other tenants' rooms)", rec.Code, http.StatusForbidden)
	}
}
