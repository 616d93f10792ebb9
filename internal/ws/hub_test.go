package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, companyID uuid.UUID) *Client {
	return &Client{
		hub:       hub,
		companyID: companyID,
		send:      make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	companyID := uuid.New()
	client := mockClient(hub, companyID)

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[companyID] == nil {
		t.Fatal("company room not created")
	}
	if !hub.rooms[companyID][client] {
		t.Fatal("client not registered in company room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	companyID := uuid.New()
	client := mockClient(hub, companyID)

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[companyID] != nil {
		t.Fatal("company room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleCompany(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	company1 := uuid.New()
	company2 := uuid.New()

	client1 := mockClient(hub, company1)
	client2 := mockClient(hub, company2)

	// Register both clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	// Broadcast to company1 only
	testPayload := json.RawMessage(`{"order_id":"test-123"}`)
	event := Event{
		Type:    "order.completed",
		Payload: testPayload,
	}
	hub.BroadcastToCompany(company1, event)

	// Check client1 receives the message
	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "order.completed" {
			t.Errorf("expected type 'order.completed', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	// Check client2 does NOT receive the message
	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different company")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameCompany(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	companyID := uuid.New()
	client1 := mockClient(hub, companyID)
	client2 := mockClient(hub, companyID)
	client3 := mockClient(hub, companyID)

	// Register all clients to same company
	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	// Broadcast event
	testPayload := json.RawMessage(`{"status":"SENT"}`)
	event := Event{
		Type:    "order.sent",
		Payload: testPayload,
	}
	hub.BroadcastToCompany(companyID, event)

	// All three clients should receive the message
	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "order.sent" {
				t.Errorf("client%d: expected type 'order.sent', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestHubMultipleCompaniesIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	company1 := uuid.New()
	company2 := uuid.New()
	company3 := uuid.New()

	// Create 2 clients per company
	clients := map[uuid.UUID][]*Client{
		company1: {mockClient(hub, company1), mockClient(hub, company1)},
		company2: {mockClient(hub, company2), mockClient(hub, company2)},
		company3: {mockClient(hub, company3), mockClient(hub, company3)},
	}

	// Register all clients
	for _, clientList := range clients {
		for _, client := range clientList {
			hub.register <- client
		}
	}
	time.Sleep(10 * time.Millisecond)

	// Broadcast to company2 only
	event := Event{
		Type:    "order.completed",
		Payload: json.RawMessage(`{"company_id":"` + company2.String() + `"}`),
	}
	hub.BroadcastToCompany(company2, event)

	// Only company2 clients should receive
	for companyID, clientList := range clients {
		for i, client := range clientList {
			select {
			case msg := <-client.send:
				if companyID != company2 {
					t.Fatalf("company %s client %d should not receive message", companyID, i)
				}
				var received Event
				if err := json.Unmarshal(msg, &received); err != nil {
					t.Fatalf("unmarshal error: %v", err)
				}
				if received.Type != "order.completed" {
					t.Errorf("wrong event type: %s", received.Type)
				}
			case <-time.After(50 * time.Millisecond):
				if companyID == company2 {
					t.Fatalf("company2 client %d should have received message", i)
				}
				// Expected for other companies
			}
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	companyID := uuid.New()
	client1 := mockClient(hub, companyID)
	client2 := mockClient(hub, companyID)

	// Register both clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[companyID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[companyID]))
	}
	hub.mu.RUnlock()

	// Unregister first client
	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[companyID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[companyID]))
	}
	hub.mu.RUnlock()

	// Unregister second client
	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[companyID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToNonExistentCompany(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Create a client for company1
	company1 := uuid.New()
	client1 := mockClient(hub, company1)
	hub.register <- client1
	time.Sleep(10 * time.Millisecond)

	// Broadcast to company2 (doesn't exist)
	company2 := uuid.New()
	event := Event{
		Type:    "order.completed",
		Payload: json.RawMessage(`{"test":"data"}`),
	}
	hub.BroadcastToCompany(company2, event)

	// client1 should NOT receive anything
	select {
	case <-client1.send:
		t.Fatal("client should not receive message for different company")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}
