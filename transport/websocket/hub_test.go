package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/roombasim/game/engine"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if cap(hub.broadcast) != engine.WebSocketBufferSize {
		t.Errorf("Expected broadcast buffer of %d, got %d", engine.WebSocketBufferSize, cap(hub.broadcast))
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("Hub register channels are nil")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()

	client := &Client{
		hub:       hub,
		sessionID: "test-session",
		send:      make(chan []byte, 256),
	}
	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if len(hub.sessions["test-session"]) != 1 {
		t.Errorf("Expected 1 client in session, got %d", len(hub.sessions["test-session"]))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()

	client := &Client{
		hub:       hub,
		sessionID: "test-session",
		send:      make(chan []byte, 256),
	}
	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected the send channel to be closed")
	}

	// A second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub()
	sessionID := "multi-client-session"

	client1 := &Client{hub: hub, sessionID: sessionID, send: make(chan []byte, 256)}
	client2 := &Client{hub: hub, sessionID: sessionID, send: make(chan []byte, 256)}
	other := &Client{hub: hub, sessionID: "other", send: make(chan []byte, 256)}

	hub.registerClient(client1)
	hub.registerClient(client2)
	hub.registerClient(other)

	hub.broadcastMessage(&Message{SessionID: sessionID, Event: "tick", Data: 1})

	for i, c := range []*Client{client1, client2} {
		select {
		case <-c.send:
		default:
			t.Errorf("client%d did not receive the event", i+1)
		}
	}
	select {
	case <-other.send:
		t.Error("Event leaked to another session")
	default:
	}

	hub.unregisterClient(client1)
	if len(hub.sessions[sessionID]) != 1 || !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte, 1)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "slow", Event: "tick"})
	hub.broadcastMessage(&Message{SessionID: "slow", Event: "tick"})

	if _, exists := hub.sessions["slow"]; exists {
		t.Error("Expected the slow client to be dropped")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub()

	// Nothing drains the queue; publishing past capacity must return
	done := make(chan struct{})
	go func() {
		for i := 0; i < engine.WebSocketBufferSize+10; i++ {
			hub.Publish("s", "tick", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	if len(hub.broadcast) != engine.WebSocketBufferSize {
		t.Errorf("Expected a full queue, got %d", len(hub.broadcast))
	}

	msg := <-hub.broadcast
	if msg.SessionID != "s" || msg.Event != "tick" || msg.Data != 0 {
		t.Errorf("Unexpected queued message %+v", msg)
	}
}

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount(sessionID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients on %s, got %d", want, sessionID, hub.ClientCount(sessionID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketLifecycle(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	server := newTestServer(t, hub)
	conn := dial(t, server, "ws-test")

	waitForClients(t, hub, "ws-test", 1)

	conn.Close()
	waitForClients(t, hub, "ws-test", 0)
}

func TestWebSocketReceivesEvents(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	server := newTestServer(t, hub)
	conn := dial(t, server, "msg-test")
	defer conn.Close()
	waitForClients(t, hub, "msg-test", 1)

	hub.Publish("msg-test", "tick", engine.Sensor{X: 10, Y: 15, Battery: 500})
	hub.Publish("msg-test", "finished", engine.Statistics{DirtCleaned: 4})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}

	var tick struct {
		SessionID string        `json:"session_id"`
		Event     string        `json:"event"`
		Data      engine.Sensor `json:"data"`
	}
	if err := json.Unmarshal(first, &tick); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if tick.SessionID != "msg-test" || tick.Event != "tick" {
		t.Errorf("Unexpected message header %s/%s", tick.SessionID, tick.Event)
	}
	if tick.Data.X != 10 || tick.Data.Y != 15 || tick.Data.Battery != 500 {
		t.Errorf("Sample not correctly received: %+v", tick.Data)
	}

	_, second, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read second message: %v", err)
	}
	var finished struct {
		Event string            `json:"event"`
		Data  engine.Statistics `json:"data"`
	}
	if err := json.Unmarshal(second, &finished); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if finished.Event != "finished" || finished.Data.DirtCleaned != 4 {
		t.Errorf("Unexpected finished event %+v", finished)
	}
}

func TestStopDisconnectsClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := newTestServer(t, hub)
	conn := dial(t, server, "stop-test")
	defer conn.Close()
	waitForClients(t, hub, "stop-test", 1)

	hub.Stop()
	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to close after Stop")
	}
	if hub.ClientCount("stop-test") != 0 {
		t.Error("Expected no clients after Stop")
	}
}
