package sse

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/battleship/internal/model"
)

// Frame is one event ready to be written to a stream
type Frame struct {
	Event string
	Data  []byte
}

// Hub manages the push streams of a single player.
// A player may hold several streams at once, one per open client.
type Hub struct {
	playerID model.PlayerID
	clients  map[*Client]bool
	mu       sync.RWMutex
	logger   *slog.Logger

	// Channels for managing clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan Frame
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a player
func NewHub(playerID model.PlayerID, logger *slog.Logger) *Hub {
	return &Hub{
		playerID:   playerID,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("player_id", string(playerID))),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Frame, 64),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("push client registered",
				slog.String("transport", client.transport),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("push client unregistered",
					slog.String("transport", client.transport),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case frame := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					h.logger.Warn("push frame dropped - client buffer full",
						slog.String("event", frame.Event))
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a client to the hub. It returns false if the hub has been closed.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends a frame to every client of the player
func (h *Hub) Broadcast(frame Frame) {
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("push broadcast dropped - hub buffer full", slog.String("event", frame.Event))
	}
}

// Close shuts down the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatSSEMessage formats an SSE message with event name and data.
// Each line of data gets its own "data: " prefix.
func formatSSEMessage(eventName string, data []byte) []byte {
	msg := make([]byte, 0, len(data)+len(eventName)+16)
	msg = append(msg, "event: "...)
	msg = append(msg, eventName...)
	msg = append(msg, '\n')
	for _, line := range splitLines(string(data)) {
		msg = append(msg, "data: "...)
		msg = append(msg, line...)
		msg = append(msg, '\n')
	}
	return append(msg, '\n')
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	var lines []string
	var current []rune
	for _, r := range s {
		if r == '\n' {
			lines = append(lines, string(current))
			current = current[:0]
		} else if r != '\r' {
			current = append(current, r)
		}
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	if len(lines) == 0 {
		lines = append(lines, "")
	}
	return lines
}

// HubManager manages hubs for all connected players
type HubManager struct {
	hubs   map[model.PlayerID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.PlayerID]*Hub),
		logger: logger.With(slog.String("component", "push")),
	}
}

// GetOrCreateHub returns the hub for a player, creating one if it doesn't exist
func (m *HubManager) GetOrCreateHub(playerID model.PlayerID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[playerID]; ok {
		return hub
	}

	hub := NewHub(playerID, m.logger)
	m.hubs[playerID] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a player, or nil if it doesn't exist
func (m *HubManager) GetHub(playerID model.PlayerID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[playerID]
}

// RemoveHub removes and closes a hub
func (m *HubManager) RemoveHub(playerID model.PlayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[playerID]; ok {
		hub.Close()
		delete(m.hubs, playerID)
	}
}

// ConnectedPlayers returns the players with at least one open stream
func (m *HubManager) ConnectedPlayers() []model.PlayerID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var players []model.PlayerID
	for playerID, hub := range m.hubs {
		if hub.ClientCount() > 0 {
			players = append(players, playerID)
		}
	}
	return players
}

// CleanupEmptyHubs removes hubs with no clients
func (m *HubManager) CleanupEmptyHubs() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for playerID, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, playerID)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("push empty hubs cleaned up", slog.Int("removed", removed))
	}
	return removed
}

// Close shuts down every hub
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for playerID, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, playerID)
	}
}
