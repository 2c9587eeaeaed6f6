package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/testutil"
)

func waitForClients(t *testing.T, m *HubManager, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return m.ClientCount() == n }, time.Second, 5*time.Millisecond)
}

func TestServeSSE(t *testing.T) {
	m := NewHubManager(testutil.NopLogger())
	defer m.Shutdown()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.ServeSSE(w, r, alice)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	waitForClients(t, m, 1)
	m.ObserveTx(model.TxUpdate{Hash: "0xabc", Address: alice, Phase: model.TxFailed, Reason: "nope"})

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: tx_update"):
			eventLine = line
		case eventLine != "" && strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var ev struct {
		Type      string         `json:"type"`
		NoticeTTL int64          `json:"notice_ttl_ms"`
		Payload   model.TxUpdate `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(dataLine), &ev))
	assert.Equal(t, "tx_update", ev.Type)
	assert.Equal(t, int64(5000), ev.NoticeTTL)
	assert.Equal(t, model.TxHash("0xabc"), ev.Payload.Hash)
	assert.Equal(t, "nope", ev.Payload.Reason)

	cancel()
	waitForClients(t, m, 0)
}

func TestServeWS(t *testing.T) {
	m := NewHubManager(testutil.NopLogger())
	defer m.Shutdown()
	upgrader := NewUpgrader("")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.ServeWS(w, r, upgrader, alice)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	waitForClients(t, m, 1)
	m.ObserveTx(model.TxUpdate{Hash: "0xdef", Address: alice, Phase: model.TxPending})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var ev model.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, model.EventTxUpdate, ev.Type)
	assert.Equal(t, alice, ev.Address)

	require.NoError(t, conn.Close())
	waitForClients(t, m, 0)
}

func TestUpgraderChecksOrigin(t *testing.T) {
	u := NewUpgrader("https://app.example")
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, u.CheckOrigin(r))
	r.Header.Set("Origin", "https://app.example")
	assert.True(t, u.CheckOrigin(r))
}
