package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mcoot/mysphere/internal/api/request"
	"github.com/mcoot/mysphere/internal/api/response"
	"github.com/mcoot/mysphere/internal/services/auth"
	"github.com/mcoot/mysphere/internal/services/moderation"
)

// AuthHandler handles wallet sign-in
type AuthHandler struct {
	authService       *auth.Service
	moderationService *moderation.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, moderationService *moderation.Service) *AuthHandler {
	return &AuthHandler{
		authService:       authService,
		moderationService: moderationService,
	}
}

// Challenge handles POST /api/v1/auth/challenge
func (h *AuthHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req request.ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		WriteError(w, err)
		return
	}

	c := h.authService.NewChallenge(addr)
	response.Created(w, response.ChallengeFromService(c))
}

// Verify handles POST /api/v1/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		WriteError(w, err)
		return
	}
	if req.Signature == "" {
		WriteError(w, NewInvalidRequestError("signature is required"))
		return
	}

	session, err := h.authService.Verify(addr, req.Signature)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session, h.moderationService.IsAdmin(addr)))
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.InvalidateSession(auth.BearerToken(r.Header.Get("Authorization")))
	response.NoContent(w)
}
