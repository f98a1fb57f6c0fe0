package sse

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/battleship/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time between keepalive pings
	pingPeriod = 30 * time.Second

	// Time allowed to read the next pong from a websocket peer
	pongWait = 2 * pingPeriod

	// Buffer size for outgoing frames
	sendBufferSize = 64

	transportSSE       = "sse"
	transportWebsocket = "websocket"
)

// Client represents one connected push stream
type Client struct {
	hub         *Hub
	transport   string
	send        chan Frame
	connectedAt time.Time
}

// NewClient creates a new push client
func NewClient(hub *Hub, transport string) *Client {
	return &Client{
		hub:         hub,
		transport:   transport,
		send:        make(chan Frame, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// attach registers a new client with the player's hub, retrying if the hub
// was closed by a cleanup between lookup and registration
func attach(manager *HubManager, playerID model.PlayerID, transport string) *Client {
	for {
		hub := manager.GetOrCreateHub(playerID)
		client := NewClient(hub, transport)
		if hub.Register(client) {
			return client
		}
	}
}

// ServeSSE streams a player's events as server-sent events
func ServeSSE(w http.ResponseWriter, r *http.Request, manager *HubManager, playerID model.PlayerID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := attach(manager, playerID, transportSSE)
	defer client.hub.Unregister(client)

	_, _ = w.Write(formatSSEMessage("connected", []byte(`{"status":"connected"}`)))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.send:
			if !ok {
				return
			}
			if _, err := w.Write(formatSSEMessage(frame.Event, frame.Data)); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS streams a player's events over a websocket, one JSON text message per event
func ServeWS(w http.ResponseWriter, r *http.Request, manager *HubManager, playerID model.PlayerID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		return
	}
	defer func() { _ = conn.Close() }()

	client := attach(manager, playerID, transportWebsocket)
	defer client.hub.Unregister(client)

	// The read side only exists to process control frames and notice disconnects
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame.Data); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case <-closed:
			return

		case <-r.Context().Done():
			return
		}
	}
}
