package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mcoot/mysphere/internal/chain"
	"github.com/mcoot/mysphere/internal/chain/eth"
	"github.com/mcoot/mysphere/internal/chain/sim"
	"github.com/mcoot/mysphere/internal/dependencies/clock"
	"github.com/mcoot/mysphere/internal/dependencies/random"
	"github.com/mcoot/mysphere/internal/metrics"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/notify"
	"github.com/mcoot/mysphere/internal/scheduler"
	"github.com/mcoot/mysphere/internal/services/auth"
	"github.com/mcoot/mysphere/internal/services/checkin"
	"github.com/mcoot/mysphere/internal/services/moderation"
	"github.com/mcoot/mysphere/internal/services/rules"
	"github.com/mcoot/mysphere/internal/storage"
	"github.com/mcoot/mysphere/internal/storage/memory"
	"github.com/mcoot/mysphere/internal/storage/postgres"
	redisstorage "github.com/mcoot/mysphere/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Ledger type constants
const (
	LedgerTypeSim = "sim"
	LedgerTypeEth = "eth"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage
	// Quotes is Storage unless a Postgres quote store is configured
	Quotes storage.QuoteStore

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Chain
	Rules  *rules.Engine
	Ledger chain.Ledger
	// SimLedger is set when Ledger is the simulator
	SimLedger *sim.Ledger

	// Services
	CheckInService    *checkin.Service
	ModerationService *moderation.Service
	AuthService       *auth.Service
	HubManager        *notify.HubManager

	// Operations
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Scheduler *scheduler.Scheduler

	logger  *slog.Logger
	closers []func()
}

// ScheduleConfig holds the cron expressions of the maintenance jobs
type ScheduleConfig struct {
	PruneTxs      string
	CleanupHubs   string
	CleanSessions string
	// TxRetention is how long transaction records are kept
	TxRetention time.Duration
}

// DefaultScheduleConfig returns hourly pruning with a week of history
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		PruneTxs:      "0 0 * * * *",
		CleanupHubs:   "0 */5 * * * *",
		CleanSessions: "0 */10 * * * *",
		TxRetention:   7 * 24 * time.Hour,
	}
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresDSN moves quotes to Postgres when set
	PostgresDSN string
	// LedgerType selects the chain backend ("sim" or "eth")
	// If empty, defaults to "sim"
	LedgerType string
	// SimConfig controls block production of the simulated ledger
	SimConfig sim.Config
	// EthConfig holds node settings (required if LedgerType is "eth")
	EthConfig *eth.Config
	// RulesConfig holds the game constants; zero fields use rules defaults
	RulesConfig rules.Config
	// AuthConfig holds configuration for the auth service (optional)
	// Zero fields fall back to auth.DefaultConfig() individually
	AuthConfig auth.Config
	// Admins are the addresses allowed to moderate quotes
	Admins []string
	// Schedule configures maintenance jobs; zero value uses DefaultScheduleConfig
	Schedule ScheduleConfig
	// Registry receives the metrics; a fresh registry is used if nil
	Registry *prometheus.Registry
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		if err := redisStore.Ping(ctx); err != nil {
			_ = redisStore.Close()
			return nil, err
		}
		closers = append(closers, func() { _ = redisStore.Close() })
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	var quotes storage.QuoteStore = store
	if cfg.PostgresDSN != "" {
		pg, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			closeAll()
			return nil, err
		}
		quotes = pg
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()
	engine := rules.New(cfg.RulesConfig)

	var ledger chain.Ledger
	var simLedger *sim.Ledger
	ledgerType := cfg.LedgerType
	if ledgerType == "" {
		ledgerType = LedgerTypeSim
	}

	switch ledgerType {
	case LedgerTypeSim:
		simLedger = sim.New(cfg.SimConfig, store, engine, clk, rnd, logger.With("component", "sim"))
		ledger = simLedger
	case LedgerTypeEth:
		if cfg.EthConfig == nil {
			closeAll()
			return nil, errors.New("EthConfig required when LedgerType is eth")
		}
		ethCfg := *cfg.EthConfig
		if ethCfg.CheckInCooldown == 0 {
			ethCfg.CheckInCooldown = engine.Config().CheckInCooldown
		}
		ethLedger, err := eth.Dial(ctx, ethCfg, logger.With("component", "eth"))
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, ethLedger.Close)
		ledger = ethLedger
	default:
		closeAll()
		return nil, fmt.Errorf("invalid LedgerType %q: must be 'sim' or 'eth'", ledgerType)
	}


	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	app := newWithDependencies(deps{
		store:     store,
		quotes:    quotes,
		clock:     clk,
		random:    rnd,
		engine:    engine,
		ledger:    ledger,
		simLedger: simLedger,
		authCfg:   cfg.AuthConfig,
		admins:    cfg.Admins,
		schedule:  cfg.Schedule,
		registry:  registry,
		logger:    logger,
	})
	app.closers = closers
	return app, nil
}

type deps struct {
	store     storage.Storage
	quotes    storage.QuoteStore
	clock     clock.Clock
	random    random.Random
	engine    *rules.Engine
	ledger    chain.Ledger
	simLedger *sim.Ledger
	authCfg   auth.Config
	admins    []string
	schedule  ScheduleConfig
	registry  *prometheus.Registry
	logger    *slog.Logger
}

// newWithDependencies wires services over the given dependencies (useful for testing)
func newWithDependencies(d deps) *App {
	logger := d.logger
	hubManager := notify.NewHubManager(logger)
	m := metrics.New(d.registry)
	m.WatchStreamClients(hubManager.ClientCount)

	txObserver := checkin.Observers(
		recordTx(d.store, logger),
		m.ObserveTx,
		hubManager.ObserveTx,
	)
	quoteListener := func(q *model.Quote) {
		m.ObserveQuote(q)
		hubManager.ObserveQuote(q)
	}

	checkInService := checkin.NewService(d.ledger, d.engine, d.clock, txObserver, logger)
	moderationService := moderation.NewService(d.quotes, moderation.NewAllowList(d.admins...), d.clock, quoteListener, logger)
	authService := auth.New(d.clock, d.random, d.authCfg)

	schedule := d.schedule
	if schedule.PruneTxs == "" {
		schedule = DefaultScheduleConfig()
	}
	sched := scheduler.New(logger.With("component", "scheduler"), m)
	jobs := []scheduler.Job{
		scheduler.PruneTxsJob(schedule.PruneTxs, d.store, d.clock, schedule.TxRetention, logger),
		scheduler.CleanupHubsJob(schedule.CleanupHubs, hubManager, logger),
		scheduler.CleanSessionsJob(schedule.CleanSessions, authService, logger),
	}
	for _, job := range jobs {
		if err := sched.Add(job); err != nil {
			logger.Error("invalid job schedule", "job", job.Name, "error", err)
		}
	}

	return &App{
		Storage:           d.store,
		Quotes:            d.quotes,
		Clock:             d.clock,
		Random:            d.random,
		Rules:             d.engine,
		Ledger:            d.ledger,
		SimLedger:         d.simLedger,
		CheckInService:    checkInService,
		ModerationService: moderationService,
		AuthService:       authService,
		HubManager:        hubManager,
		Metrics:           m,
		Gatherer:          d.registry,
		Scheduler:         sched,
		logger:            logger,
	}
}

// recordTx persists every update that carries a hash so clients can poll it
func recordTx(store storage.TxStore, logger *slog.Logger) checkin.Observer {
	return func(u model.TxUpdate) {
		if u.Hash == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.SaveTx(ctx, u); err != nil {
			logger.Error("failed to record transaction", "hash", u.Hash, "phase", u.Phase, "error", err)
		}
	}
}

// Close shuts down the stream hubs and releases backend connections
func (a *App) Close() {
	a.HubManager.Shutdown()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
