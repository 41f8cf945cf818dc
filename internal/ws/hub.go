package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event is a single WebSocket message. Type names the domain event
// (orderAdded, orderUpdated, categoryDeleted, ...) and Payload carries
// the entity the event is about.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// tenantEvent routes an event to one tenant's room
type tenantEvent struct {
	TenantID uuid.UUID
	Event    Event
}

// Hub maintains the set of active clients, one room per tenant, and
// broadcasts events to them.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *tenantEvent

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *tenantEvent, 256),
	}
}

// Run starts the hub's main loop. Call as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.tenantID] == nil {
				h.rooms[client.tenantID] = make(map[*Client]bool)
			}
			h.rooms[client.tenantID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.tenantID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.tenantID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.TenantID]

			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[event.TenantID], client)
					if len(h.rooms[event.TenantID]) == 0 {
						delete(h.rooms, event.TenantID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish marshals payload and broadcasts it to every client subscribed
// to the tenant's room. A failed broadcast never fails the request that
// triggered it, so marshal errors are only logged.
func (h *Hub) Publish(tenantID uuid.UUID, eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshaling %s event payload: %v", eventType, err)
		return
	}
	h.broadcast <- &tenantEvent{
		TenantID: tenantID,
		Event:    Event{Type: eventType, Payload: raw},
	}
}
