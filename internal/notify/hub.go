// Package notify streams live events (transaction phases, player updates,
// moderation results) to connected clients over SSE and WebSocket.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/mysphere/internal/model"
)

// Hub fans events out to every client connected for one address
type Hub struct {
	address model.Address
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	// Channels for managing clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan model.Event
	done       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once
}

func newHub(address model.Address, logger *slog.Logger) *Hub {
	return &Hub{
		address:    address,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("address", string(address))),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan model.Event, 256),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// run is the hub's event loop
func (h *Hub) run() {
	defer close(h.stopped)
	h.logger.Debug("hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("stream client registered",
				slog.String("transport", client.transport),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("stream client unregistered",
					slog.String("transport", client.transport),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case event := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					dropped++
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("stream events dropped - client buffer full",
					slog.String("event", string(event.Type)),
					slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Debug("hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

// Register adds a client to the hub. It reports false if the hub is closed.
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

// Publish queues an event for every client without blocking
func (h *Hub) Publish(event model.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("stream event dropped - hub buffer full", slog.String("event", string(event.Type)))
	}
}

// Close shuts the hub down and waits for its loop to exit
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	<-h.stopped
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubManager owns one hub per subscribed address
type HubManager struct {
	hubs   map[model.Address]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.Address]*Hub),
		logger: logger.With(slog.String("component", "notify")),
	}
}

// GetOrCreateHub returns the hub for an address, starting one if needed
func (m *HubManager) GetOrCreateHub(addr model.Address) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[addr]; ok {
		return hub
	}

	hub := newHub(addr, m.logger)
	m.hubs[addr] = hub
	go hub.run()
	return hub
}

// GetHub returns the hub for an address, or nil if nobody is subscribed
func (m *HubManager) GetHub(addr model.Address) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[addr]
}

// Publish delivers event to the hub of event.Address, if any
func (m *HubManager) Publish(event model.Event) {
	if hub := m.GetHub(event.Address); hub != nil {
		hub.Publish(event)
	}
}

// ObserveTx publishes a transaction update, followed by the player's new
// state when a confirmation carries it. It has the shape of checkin.Observer.
func (m *HubManager) ObserveTx(u model.TxUpdate) {
	m.Publish(model.NewTxEvent(u))
	if u.Phase == model.TxConfirmed && u.Player != nil {
		m.Publish(model.NewPlayerEvent(u.Player, u.Timestamp))
	}
}

// ObserveQuote tells a quote's author about a moderation decision
func (m *HubManager) ObserveQuote(q *model.Quote) {
	addr, err := model.ParseAddress(q.SubmittedBy)
	if err != nil {
		return
	}
	m.Publish(model.Event{
		Type:      model.EventQuoteModerated,
		Address:   addr,
		Timestamp: q.Timestamp,
		Payload:   q,
	})
}

// RemoveHub closes and removes a hub
func (m *HubManager) RemoveHub(addr model.Address) {
	m.mu.Lock()
	hub, ok := m.hubs[addr]
	delete(m.hubs, addr)
	m.mu.Unlock()

	if ok {
		hub.Close()
		m.logger.Debug("hub removed", slog.String("address", string(addr)))
	}
}

// CleanupEmptyHubs removes hubs with no clients and returns how many it removed
func (m *HubManager) CleanupEmptyHubs() int {
	m.mu.Lock()
	var empty []*Hub
	for addr, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			empty = append(empty, hub)
			delete(m.hubs, addr)
		}
	}
	m.mu.Unlock()

	for _, hub := range empty {
		hub.Close()
	}
	if len(empty) > 0 {
		m.logger.Info("empty hubs cleaned up", slog.Int("removed", len(empty)))
	}
	return len(empty)
}

// ClientCount sums clients across every hub
func (m *HubManager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, hub := range m.hubs {
		total += hub.ClientCount()
	}
	return total
}

// Shutdown closes every hub, disconnecting all clients
func (m *HubManager) Shutdown() {
	m.mu.Lock()
	hubs := m.hubs
	m.hubs = make(map[model.Address]*Hub)
	m.mu.Unlock()

	for _, hub := range hubs {
		hub.Close()
	}
}
