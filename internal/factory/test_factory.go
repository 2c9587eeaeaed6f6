package factory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcoot/mysphere/internal/chain/sim"
	"github.com/mcoot/mysphere/internal/dependencies/mocks"
	"github.com/mcoot/mysphere/internal/services/auth"
	"github.com/mcoot/mysphere/internal/services/rules"
	"github.com/mcoot/mysphere/internal/storage/memory"
	"github.com/mcoot/mysphere/internal/testutil"
)

// Moderation admin of a TestApp: the first well-known development account
const (
	TestAdmin    = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	TestAdminKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Registry   *prometheus.Registry
}

// NewTestApp creates an App over memory storage and an automining simulated
// ledger, with mocked clock and randomness
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	engine := rules.New(rules.DefaultConfig())
	logger := testutil.NopLogger()
	registry := prometheus.NewRegistry()

	ledger := sim.New(sim.Config{AutoMine: true}, store, engine, mockClock, mockRandom, logger)

	authCfg := auth.DefaultConfig()
	authCfg.Secret = "test-secret"

	app := newWithDependencies(deps{
		store:     store,
		quotes:    store,
		clock:     mockClock,
		random:    mockRandom,
		engine:    engine,
		ledger:    ledger,
		simLedger: ledger,
		authCfg:   authCfg,
		admins:    []string{TestAdmin},
		registry:  registry,
		logger:    logger,
	})

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Registry:   registry,
	}
}
