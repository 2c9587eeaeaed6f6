package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/mysphere/internal/api/handler"
	apimiddleware "github.com/mcoot/mysphere/internal/api/middleware"
	"github.com/mcoot/mysphere/internal/metrics"
	"github.com/mcoot/mysphere/internal/middleware"
	"github.com/mcoot/mysphere/internal/notify"
	"github.com/mcoot/mysphere/internal/services/auth"
	"github.com/mcoot/mysphere/internal/services/checkin"
	"github.com/mcoot/mysphere/internal/services/moderation"
	"github.com/mcoot/mysphere/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger            *slog.Logger
	AuthService       *auth.Service
	CheckInService    *checkin.Service
	ModerationService *moderation.Service
	TxStore           storage.TxStore
	HubManager        *notify.HubManager
	Metrics           *metrics.Metrics
	// Gatherer backs /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
	// AllowedOrigin restricts WebSocket upgrades; empty allows any origin
	AllowedOrigin string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.ModerationService)
	playerHandler := handler.NewPlayerHandler(cfg.CheckInService)
	txHandler := handler.NewTxHandler(cfg.TxStore, cfg.HubManager, cfg.AllowedOrigin)
	quoteHandler := handler.NewQuoteHandler(cfg.ModerationService)

	// Create middleware
	authMiddleware := apimiddleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := apimiddleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestID)
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)
	if cfg.Metrics != nil {
		api.Use(middleware.Metrics(cfg.Metrics))
	}

	// Sign-in (no auth)
	api.HandleFunc("/auth/challenge", authHandler.Challenge).Methods(http.MethodPost)
	api.HandleFunc("/auth/verify", authHandler.Verify).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	// Public reads
	api.HandleFunc("/players/{address}", playerHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/players/{address}/elements", playerHandler.Elements).Methods(http.MethodGet)
	api.HandleFunc("/txs/{hash}", txHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/quotes", quoteHandler.ListApproved).Methods(http.MethodGet)

	// Signed-in player
	me := api.PathPrefix("/me").Subrouter()
	me.Use(authMiddleware)
	me.HandleFunc("", playerHandler.Me).Methods(http.MethodGet)
	me.HandleFunc("/register", playerHandler.Register).Methods(http.MethodPost)
	me.HandleFunc("/checkin", playerHandler.CheckIn).Methods(http.MethodPost)
	me.HandleFunc("/fuse", playerHandler.Fuse).Methods(http.MethodPost)
	me.HandleFunc("/level-up", playerHandler.LevelUp).Methods(http.MethodPost)
	me.HandleFunc("/txs", txHandler.List).Methods(http.MethodGet)

	// Live streams and quote submission share paths with public routes,
	// so they are wrapped individually
	requireSession := func(h http.HandlerFunc) http.Handler { return authMiddleware(h) }
	api.Handle("/events", requireSession(txHandler.Events)).Methods(http.MethodGet)
	api.Handle("/ws", requireSession(txHandler.WebSocket)).Methods(http.MethodGet)
	api.Handle("/quotes", requireSession(quoteHandler.Submit)).Methods(http.MethodPost)

	// Admin panel; the moderation service checks the allow-list
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware)
	admin.HandleFunc("/quotes", quoteHandler.AdminList).Methods(http.MethodGet)
	admin.HandleFunc("/quotes/stats", quoteHandler.Stats).Methods(http.MethodGet)
	admin.HandleFunc("/quotes/bulk-delete", quoteHandler.BulkDelete).Methods(http.MethodPost)
	admin.HandleFunc("/quotes/{id}", quoteHandler.Moderate).Methods(http.MethodPatch)
	admin.HandleFunc("/quotes/{id}", quoteHandler.Delete).Methods(http.MethodDelete)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
