package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/mysphere/internal/api"
	"github.com/mcoot/mysphere/internal/config"
	"github.com/mcoot/mysphere/internal/factory"
)

func main() {
	configPath := flag.String("config", os.Getenv("MYSPHERE_CONFIG"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run serves until ctx is done or a component fails. Everything it opens
// is closed before it returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Create application factory
	app, err := factory.New(ctx, cfg.Factory(logger))
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	defer app.Close()

	router := api.NewRouter(api.RouterConfig{
		Logger:            logger,
		AuthService:       app.AuthService,
		CheckInService:    app.CheckInService,
		ModerationService: app.ModerationService,
		TxStore:           app.Storage,
		HubManager:        app.HubManager,
		Metrics:           app.Metrics,
		Gatherer:          app.Gatherer,
		AllowedOrigin:     cfg.Stream.AllowedOrigin,
	})

	mux := http.NewServeMux()
	mux.Handle("/", router)

	server := api.NewServer(mux, cfg.APIServer(), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		return app.Scheduler.Run(gctx)
	})
	if app.SimLedger != nil && !cfg.Chain.AutoMine {
		g.Go(func() error {
			return app.SimLedger.Run(gctx)
		})
	}

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage.Type),
		slog.String("chain", cfg.Chain.Mode),
	)

	return g.Wait()
}
