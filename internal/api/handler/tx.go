package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mcoot/mysphere/internal/api/response"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/notify"
	"github.com/mcoot/mysphere/internal/storage"
)

const (
	defaultTxLimit = 20
	maxTxLimit     = 100
)

// TxHandler serves transaction status, by poll or by stream
type TxHandler struct {
	txs        storage.TxStore
	hubManager *notify.HubManager
	upgrader   *websocket.Upgrader
}

// NewTxHandler creates a new tx handler
func NewTxHandler(txs storage.TxStore, hubManager *notify.HubManager, allowedOrigin string) *TxHandler {
	return &TxHandler{
		txs:        txs,
		hubManager: hubManager,
		upgrader:   notify.NewUpgrader(allowedOrigin),
	}
}

// Get handles GET /api/v1/txs/{hash}
func (h *TxHandler) Get(w http.ResponseWriter, r *http.Request) {
	hash := model.TxHash(mux.Vars(r)["hash"])
	u, err := h.txs.GetTx(r.Context(), hash)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.TxStatusFromModel(u))
}

// List handles GET /api/v1/me/txs
func (h *TxHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultTxLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, NewInvalidRequestError("limit must be a positive integer"))
			return
		}
		limit = min(n, maxTxLimit)
	}

	updates, err := h.txs.ListTxs(r.Context(), caller(r), limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	out := make([]response.TxStatus, len(updates))
	for i := range updates {
		out[i] = response.TxStatusFromModel(&updates[i])
	}
	response.JSON(w, http.StatusOK, out)
}

// Events handles GET /api/v1/events (server-sent events)
func (h *TxHandler) Events(w http.ResponseWriter, r *http.Request) {
	h.hubManager.ServeSSE(w, r, caller(r))
}

// WebSocket handles GET /api/v1/ws
func (h *TxHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.hubManager.ServeWS(w, r, h.upgrader, caller(r))
}
