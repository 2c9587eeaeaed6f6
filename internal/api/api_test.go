package api_test

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/mysphere/internal/api"
	"github.com/mcoot/mysphere/internal/api/apierr"
	"github.com/mcoot/mysphere/internal/api/response"
	"github.com/mcoot/mysphere/internal/factory"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/services/auth"
	"github.com/mcoot/mysphere/internal/testutil"
)

// testServer wraps the router over a TestApp
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(app.Close)

	router := api.NewRouter(api.RouterConfig{
		Logger:            testutil.NopLogger(),
		AuthService:       app.AuthService,
		CheckInService:    app.CheckInService,
		ModerationService: app.ModerationService,
		TxStore:           app.Storage,
		HubManager:        app.HubManager,
		Metrics:           app.Metrics,
		Gatherer:          app.Gatherer,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// signIn runs the challenge/verify flow for key and returns the session token
func (ts *testServer) signIn(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	rr := ts.request(http.MethodPost, "/api/v1/auth/challenge", map[string]string{"address": addr}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var challenge response.Challenge
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &challenge))

	sig, err := auth.SignMessage(key, challenge.Message)
	require.NoError(t, err)

	rr = ts.request(http.MethodPost, "/api/v1/auth/verify", map[string]string{"address": addr, "signature": sig}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.SessionToken
}

func newPlayer(t *testing.T, ts *testServer) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return ts.signIn(t, key)
}

func newAdmin(t *testing.T, ts *testServer) string {
	t.Helper()
	key, err := crypto.HexToECDSA(factory.TestAdminKey)
	require.NoError(t, err)
	return ts.signIn(t, key)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestSignIn(t *testing.T) {
	ts := newTestServer(t)

	t.Run("valid signature", func(t *testing.T) {
		token := newPlayer(t, ts)
		assert.NotEmpty(t, token)
	})

	t.Run("admin flag", func(t *testing.T) {
		key, err := crypto.HexToECDSA(factory.TestAdminKey)
		require.NoError(t, err)
		addr := crypto.PubkeyToAddress(key.PublicKey).Hex()
		rr := ts.request(http.MethodPost, "/api/v1/auth/challenge", map[string]string{"address": addr}, "")
		challenge := decode[response.Challenge](t, rr)
		sig, err := auth.SignMessage(key, challenge.Message)
		require.NoError(t, err)

		rr = ts.request(http.MethodPost, "/api/v1/auth/verify", map[string]string{"address": addr, "signature": sig}, "")
		resp := decode[response.AuthResponse](t, rr)
		assert.True(t, resp.IsAdmin)
	})

	t.Run("signature from another wallet", func(t *testing.T) {
		key, _ := crypto.GenerateKey()
		other, _ := crypto.GenerateKey()
		addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

		rr := ts.request(http.MethodPost, "/api/v1/auth/challenge", map[string]string{"address": addr}, "")
		challenge := decode[response.Challenge](t, rr)
		sig, err := auth.SignMessage(other, challenge.Message)
		require.NoError(t, err)

		rr = ts.request(http.MethodPost, "/api/v1/auth/verify", map[string]string{"address": addr, "signature": sig}, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, apierr.CodeInvalidSignature, decode[apierr.ErrorResponse](t, rr).Error.Code)
	})

	t.Run("no challenge", func(t *testing.T) {
		rr := ts.request(http.MethodPost, "/api/v1/auth/verify", map[string]string{
			"address":   "0x2222222222222222222222222222222222222222",
			"signature": "0x00",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, apierr.CodeChallengeNotFound, decode[apierr.ErrorResponse](t, rr).Error.Code)
	})

	t.Run("bad address", func(t *testing.T) {
		rr := ts.request(http.MethodPost, "/api/v1/auth/challenge", map[string]string{"address": "nope"}, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("logout revokes token", func(t *testing.T) {
		token := newPlayer(t, ts)
		rr := ts.request(http.MethodPost, "/api/v1/auth/logout", nil, token)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = ts.request(http.MethodGet, "/api/v1/me", nil, token)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/me"},
		{http.MethodPost, "/api/v1/me/checkin"},
		{http.MethodPost, "/api/v1/quotes"},
		{http.MethodGet, "/api/v1/admin/quotes"},
		{http.MethodGet, "/api/v1/events"},
	} {
		rr := ts.request(route.method, route.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, route.path)
	}
}

func TestCheckInFlow(t *testing.T) {
	ts := newTestServer(t)
	token := newPlayer(t, ts)

	// First check-in registers implicitly
	rr := ts.request(http.MethodPost, "/api/v1/me/checkin", nil, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	tx := decode[response.Tx](t, rr)
	assert.True(t, tx.Registered)
	assert.Equal(t, "checkIn", tx.Method)
	require.NotNil(t, tx.Player)
	assert.Equal(t, uint64(1), tx.Player.Streak)
	require.NotNil(t, tx.Reward)
	assert.Equal(t, uint8(1), tx.Reward.Level)
	assert.Equal(t, "common", tx.Reward.Rarity)

	// Status is pollable by hash
	rr = ts.request(http.MethodGet, "/api/v1/txs/"+tx.Hash, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	status := decode[response.TxStatus](t, rr)
	assert.Equal(t, "confirmed", status.Phase)
	assert.Equal(t, int64(6000), status.NoticeTTLMs)

	// One hour later the cooldown has 23 hours left
	ts.app.MockClock.Advance(time.Hour)
	rr = ts.request(http.MethodPost, "/api/v1/me/checkin", nil, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	errResp := decode[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeCooldownActive, errResp.Error.Code)
	assert.Equal(t, int64(23), errResp.Error.HoursRemaining)

	rr = ts.request(http.MethodGet, "/api/v1/me", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[response.Status](t, rr)
	assert.False(t, me.CanCheckIn)
	assert.Equal(t, int64(23), me.HoursUntilCheckIn)
	assert.Len(t, me.Elements, 1)

	rr = ts.request(http.MethodGet, "/api/v1/me/txs", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]response.TxStatus](t, rr), 2)

	// Public view of the same player
	rr = ts.request(http.MethodGet, "/api/v1/players/"+me.Player.Address, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[response.Player](t, rr).Registered)
}

func TestRegisterTwice(t *testing.T) {
	ts := newTestServer(t)
	token := newPlayer(t, ts)

	rr := ts.request(http.MethodPost, "/api/v1/me/register", nil, token)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/me/register", nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[response.Tx](t, rr).AlreadyRegistered)
}

func TestFuseFlow(t *testing.T) {
	ts := newTestServer(t)
	token := newPlayer(t, ts)

	for i := 0; i < 3; i++ {
		rr := ts.request(http.MethodPost, "/api/v1/me/checkin", nil, token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		ts.app.MockClock.Advance(24 * time.Hour)
	}

	me := decode[response.Status](t, ts.request(http.MethodGet, "/api/v1/me", nil, token))
	require.Len(t, me.Elements, 3)

	t.Run("two elements rejected", func(t *testing.T) {
		rr := ts.request(http.MethodPost, "/api/v1/me/fuse", map[string]any{
			"element_ids": []string{me.Elements[0].ID, me.Elements[1].ID},
		}, token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, apierr.CodeInvalidFusion, decode[apierr.ErrorResponse](t, rr).Error.Code)
	})

	t.Run("three fuse into one", func(t *testing.T) {
		rr := ts.request(http.MethodPost, "/api/v1/me/fuse", map[string]any{
			"element_ids": []string{me.Elements[0].ID, me.Elements[1].ID, me.Elements[2].ID},
		}, token)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		tx := decode[response.Tx](t, rr)
		require.NotNil(t, tx.Fusion)
		assert.Len(t, tx.Fusion.Burned, 3)
		assert.Equal(t, uint8(2), tx.Fusion.Minted.Level)

		elements := decode[[]response.Element](t, ts.request(http.MethodGet, "/api/v1/players/"+me.Player.Address+"/elements", nil, ""))
		assert.Len(t, elements, 1)
	})
}

func TestLevelUpNotReady(t *testing.T) {
	ts := newTestServer(t)
	token := newPlayer(t, ts)

	rr := ts.request(http.MethodPost, "/api/v1/me/checkin", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/me/level-up", nil, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeLevelUpNotReady, decode[apierr.ErrorResponse](t, rr).Error.Code)
}

func TestQuoteModeration(t *testing.T) {
	ts := newTestServer(t)
	player := newPlayer(t, ts)
	admin := newAdmin(t, ts)

	submit := func(content string) *model.Quote {
		rr := ts.request(http.MethodPost, "/api/v1/quotes", map[string]any{"content": content, "category": "wisdom"}, player)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		q := decode[model.Quote](t, rr)
		return &q
	}
	first := submit("Fortune favours the bold")
	second := submit("Keep building")

	rr := ts.request(http.MethodPost, "/api/v1/quotes", map[string]any{"content": "   "}, player)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Pending quotes are not public
	list := decode[response.QuoteList](t, ts.request(http.MethodGet, "/api/v1/quotes", nil, ""))
	assert.Empty(t, list.Quotes)

	// Only admins moderate
	rr = ts.request(http.MethodPatch, "/api/v1/admin/quotes/"+string(first.ID), map[string]string{"status": "approved"}, player)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodPatch, "/api/v1/admin/quotes/"+string(first.ID), map[string]string{"status": "approved"}, admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, model.QuoteStatusApproved, decode[model.Quote](t, rr).Status)

	// Approved quotes cannot be moderated again
	rr = ts.request(http.MethodPatch, "/api/v1/admin/quotes/"+string(first.ID), map[string]string{"status": "rejected"}, admin)
	assert.Equal(t, http.StatusConflict, rr.Code)

	list = decode[response.QuoteList](t, ts.request(http.MethodGet, "/api/v1/quotes?category=wisdom", nil, ""))
	require.Len(t, list.Quotes, 1)
	assert.Equal(t, first.ID, list.Quotes[0].ID)

	pending := decode[response.QuoteList](t, ts.request(http.MethodGet, "/api/v1/admin/quotes?status=pending", nil, admin))
	require.Len(t, pending.Quotes, 1)
	assert.Equal(t, second.ID, pending.Quotes[0].ID)

	stats := decode[response.QuoteStats](t, ts.request(http.MethodGet, "/api/v1/admin/quotes/stats", nil, admin))
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Approved)
	assert.Equal(t, 2, stats.Total)

	// Bulk delete is all or nothing
	rr = ts.request(http.MethodPost, "/api/v1/admin/quotes/bulk-delete", map[string]any{"ids": []string{string(first.ID), "missing"}}, admin)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	stats = decode[response.QuoteStats](t, ts.request(http.MethodGet, "/api/v1/admin/quotes/stats", nil, admin))
	assert.Equal(t, 2, stats.Total)

	rr = ts.request(http.MethodPost, "/api/v1/admin/quotes/bulk-delete", map[string]any{"ids": []string{string(first.ID), string(second.ID)}}, admin)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, decode[response.BulkDelete](t, rr).Deleted)

	rr = ts.request(http.MethodDelete, "/api/v1/admin/quotes/"+string(first.ID), nil, admin)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.request(http.MethodGet, "/api/v1/health", nil, "")
	ts.request(http.MethodGet, "/api/v1/players/0x1111111111111111111111111111111111111111", nil, "")

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `mysphere_http_requests_total{method="GET",route="/api/v1/health",status="200"} 1`)
	assert.Contains(t, body, `route="/api/v1/players/{address}"`)
	assert.True(t, strings.Contains(body, "mysphere_stream_clients"))
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
