package e2e_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/mysphere/internal/api"
	"github.com/mcoot/mysphere/internal/chain/sim"
	"github.com/mcoot/mysphere/internal/factory"
)

// Well-known development accounts
const (
	adminKey   = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	adminAddr  = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	playerKey  = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	playerAddr = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "spherectl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/spherectl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	// Create temp token file
	tokenFile := filepath.Join(t.TempDir(), "token")

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  tokenFile,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (r *cliRunner) login(t *testing.T, key string) authResponse {
	t.Helper()

	cmd := exec.Command(r.binaryPath,
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
		"login")
	cmd.Env = append(os.Environ(), "SPHERECTL_KEY="+key)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "output: %s", output)

	var resp authResponse
	require.NoError(t, json.Unmarshal(output, &resp))
	return resp
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	server   *http.Server
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Create application on memory storage and an automining simulated chain
	app, err := factory.New(context.Background(), factory.Config{
		Logger:    logger,
		SimConfig: sim.Config{AutoMine: true},
		Admins:    []string{adminAddr},
	})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:            logger,
		AuthService:       app.AuthService,
		CheckInService:    app.CheckInService,
		ModerationService: app.ModerationService,
		TxStore:           app.Storage,
		HubManager:        app.HubManager,
		Metrics:           app.Metrics,
		Gatherer:          app.Gatherer,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		server: server,
		addr:   serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type authResponse struct {
	Address      string `json:"address"`
	SessionToken string `json:"session_token"`
	IsAdmin      bool   `json:"is_admin"`
}

type playerResponse struct {
	Address    string `json:"address"`
	Registered bool   `json:"registered"`
	Experience uint64 `json:"experience"`
	Streak     uint64 `json:"streak"`
	BaseLevel  uint8  `json:"base_level"`
}

type elementResponse struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Rarity string `json:"rarity"`
	Level  uint8  `json:"level"`
	Power  uint64 `json:"power"`
}

type txResponse struct {
	Hash       string           `json:"hash"`
	Method     string           `json:"method"`
	Registered bool             `json:"registered"`
	Player     *playerResponse  `json:"player"`
	Reward     *elementResponse `json:"reward"`
}

type statusResponse struct {
	Player     playerResponse    `json:"player"`
	Elements   []elementResponse `json:"elements"`
	CanCheckIn bool              `json:"can_check_in"`
}

type quoteResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

type quoteListResponse struct {
	Quotes []quoteResponse `json:"quotes"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_LoginAndLogout(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	authResp := cli.login(t, playerKey)
	assert.Equal(t, playerAddr, authResp.Address)
	assert.False(t, authResp.IsAdmin)
	assert.NotEmpty(t, authResp.SessionToken)

	// Token should be saved in token file
	output, err := cli.run("status")
	require.NoError(t, err, "output: %s", output)

	var status statusResponse
	require.NoError(t, json.Unmarshal([]byte(output), &status))
	assert.Equal(t, playerAddr, status.Player.Address)
	assert.True(t, status.CanCheckIn)

	output, err = cli.run("logout")
	require.NoError(t, err, "output: %s", output)
	var msgResp messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msgResp))
	assert.Equal(t, "Logged out", msgResp.Message)

	output, err = cli.run("status")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "unauthorized")
}

func TestCLI_DailyCheckIn(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	cli.login(t, playerKey)

	// First check-in registers implicitly
	output, err := cli.run("checkin")
	require.NoError(t, err, "output: %s", output)

	var tx txResponse
	require.NoError(t, json.Unmarshal([]byte(output), &tx))
	assert.True(t, tx.Registered)
	assert.Equal(t, "checkIn", tx.Method)
	require.NotNil(t, tx.Player)
	assert.Equal(t, uint64(1), tx.Player.Streak)
	assert.Equal(t, uint64(100), tx.Player.Experience)
	require.NotNil(t, tx.Reward)
	assert.Equal(t, uint64(100), tx.Reward.Power)

	// Second check-in is inside the cooldown
	output, err = cli.run("checkin")
	assert.Error(t, err)
	assert.Contains(t, output, "COOLDOWN_ACTIVE")
	assert.Contains(t, output, "24 hours remaining")

	// Anyone can read the player and their elements
	output, err = cli.run("player", "get", playerAddr)
	require.NoError(t, err, "output: %s", output)
	var player playerResponse
	require.NoError(t, json.Unmarshal([]byte(output), &player))
	assert.True(t, player.Registered)
	assert.Equal(t, uint8(1), player.BaseLevel)

	output, err = cli.run("player", "elements", playerAddr)
	require.NoError(t, err, "output: %s", output)
	var elements []elementResponse
	require.NoError(t, json.Unmarshal([]byte(output), &elements))
	require.Len(t, elements, 1)
	assert.Equal(t, tx.Reward.ID, elements[0].ID)

	// The check-in is recorded as confirmed
	output, err = cli.run("tx", "get", tx.Hash)
	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, output, `"confirmed"`)

	// Registering again is absorbed
	output, err = cli.run("register")
	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, output, "already_registered")
}

func TestCLI_QuoteModeration(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	player := newCLIRunner(t, ts.addr)
	admin := &cliRunner{
		binaryPath: player.binaryPath,
		serverURL:  player.serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "admin-token"),
	}

	player.login(t, playerKey)
	authResp := admin.login(t, adminKey)
	assert.True(t, authResp.IsAdmin)

	output, err := player.run("quote", "submit", "--category", "motivation", "Keep building")
	require.NoError(t, err, "output: %s", output)
	var quote quoteResponse
	require.NoError(t, json.Unmarshal([]byte(output), &quote))
	assert.Equal(t, "pending", quote.Status)

	// Pending quotes are not in the public feed
	output, err = player.run("quote", "list")
	require.NoError(t, err, "output: %s", output)
	var feed quoteListResponse
	require.NoError(t, json.Unmarshal([]byte(output), &feed))
	assert.Empty(t, feed.Quotes)

	// Only admins moderate
	output, err = player.run("quote", "admin", "approve", quote.ID)
	assert.Error(t, err)
	assert.Contains(t, output, "FORBIDDEN")

	output, err = admin.run("quote", "admin", "approve", quote.ID)
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &quote))
	assert.Equal(t, "approved", quote.Status)

	// Approved quotes cannot be rejected afterwards
	_, err = admin.run("quote", "admin", "reject", quote.ID)
	assert.Error(t, err)

	output, err = player.run("quote", "list", "--category", "motivation")
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &feed))
	require.Len(t, feed.Quotes, 1)
	assert.Equal(t, "Keep building", feed.Quotes[0].Content)

	// Bulk delete is all-or-nothing
	_, err = admin.run("quote", "admin", "bulk-delete", quote.ID, "missing")
	assert.Error(t, err)

	output, err = admin.run("quote", "admin", "delete", quote.ID)
	require.NoError(t, err, "output: %s", output)

	output, err = player.run("quote", "list")
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &feed))
	assert.Empty(t, feed.Quotes)
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Status without auth
	output, err := cli.run("status")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "unauthorized")

	// Bad address
	output, err = cli.run("player", "get", "nope")
	assert.Error(t, err)
	assert.Contains(t, output, "INVALID_ADDRESS")

	// Fusing elements we do not own
	cli.login(t, playerKey)
	output, err = cli.run("fuse", "a", "b", "c")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not")
}
