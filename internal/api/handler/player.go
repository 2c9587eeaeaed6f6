package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/mysphere/internal/api/request"
	"github.com/mcoot/mysphere/internal/api/response"
	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/services/checkin"
)

// PlayerHandler serves player state and the check-in/fusion writes
type PlayerHandler struct {
	checkInService *checkin.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(checkInService *checkin.Service) *PlayerHandler {
	return &PlayerHandler{
		checkInService: checkInService,
	}
}

// Get handles GET /api/v1/players/{address}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		WriteError(w, err)
		return
	}
	status, err := h.checkInService.Status(r.Context(), addr)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PlayerFromModel(status.Player))
}

// Elements handles GET /api/v1/players/{address}/elements
func (h *PlayerHandler) Elements(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		WriteError(w, err)
		return
	}
	status, err := h.checkInService.Status(r.Context(), addr)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ElementsFromModel(status.Elements))
}

// Me handles GET /api/v1/me
func (h *PlayerHandler) Me(w http.ResponseWriter, r *http.Request) {
	status, err := h.checkInService.Status(r.Context(), caller(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.StatusFromService(status))
}

// Register handles POST /api/v1/me/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	res, err := h.checkInService.Register(r.Context(), caller(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if res.AlreadyRegistered {
		status = http.StatusOK
	}
	response.JSON(w, status, response.TxFromResult(res))
}

// CheckIn handles POST /api/v1/me/checkin
func (h *PlayerHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	res, err := h.checkInService.CheckIn(r.Context(), caller(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.TxFromResult(res))
}

// Fuse handles POST /api/v1/me/fuse
func (h *PlayerHandler) Fuse(w http.ResponseWriter, r *http.Request) {
	var req request.FuseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	ids := make([]model.ElementID, len(req.ElementIDs))
	for i, id := range req.ElementIDs {
		ids[i] = model.ElementID(id)
	}

	res, err := h.checkInService.FuseElements(r.Context(), caller(r), ids)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.TxFromResult(res))
}

// LevelUp handles POST /api/v1/me/level-up
func (h *PlayerHandler) LevelUp(w http.ResponseWriter, r *http.Request) {
	res, err := h.checkInService.LevelUp(r.Context(), caller(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.TxFromResult(res))
}
