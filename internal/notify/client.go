package notify

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/mysphere/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time between keepalive pings
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing events
	sendBufferSize = 64
)

// Transports
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Client is one live stream connection
type Client struct {
	hub         *Hub
	transport   string
	send        chan model.Event
	connectedAt time.Time
}

// Subscribe registers a new client for addr. It retries if the hub it
// picked was being cleaned up concurrently.
func (m *HubManager) Subscribe(addr model.Address, transport string) *Client {
	for {
		hub := m.GetOrCreateHub(addr)
		client := &Client{
			hub:         hub,
			transport:   transport,
			send:        make(chan model.Event, sendBufferSize),
			connectedAt: time.Now(),
		}
		if hub.Register(client) {
			return client
		}
		m.mu.Lock()
		if m.hubs[addr] == hub {
			delete(m.hubs, addr)
		}
		m.mu.Unlock()
	}
}

// Events is the client's outgoing queue; it is closed when the client is
// unregistered or its hub shuts down
func (c *Client) Events() <-chan model.Event {
	return c.send
}

// Close unregisters the client
func (c *Client) Close() {
	c.hub.Unregister(c)
}

// ServeSSE streams addr's events as server-sent events until the request ends
func (m *HubManager) ServeSSE(w http.ResponseWriter, r *http.Request, addr model.Address) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Streams outlive the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	client := m.Subscribe(addr, TransportSSE)
	defer client.Close()

	_, _ = w.Write([]byte("event: connected\ndata: {\"status\":\"connected\"}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.send:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := w.Write(formatSSEMessage(string(event.Type), string(data))); err != nil {
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

// formatSSEMessage formats an SSE message with event name and data.
// Each line of data gets its own "data: " prefix.
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteByte('\n')
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
