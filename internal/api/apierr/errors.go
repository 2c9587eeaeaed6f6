package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// HoursRemaining is set for COOLDOWN_ACTIVE
	HoursRemaining int64 `json:"hours_remaining,omitempty"`
	// Reason is the contract revert reason for TX_REVERTED
	Reason string `json:"reason,omitempty"`
	// RequestID lets a client quote an unexpected failure back to operators
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeInvalidAddress         = "INVALID_ADDRESS"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodePlayerNotFound         = "PLAYER_NOT_FOUND"
	CodeAlreadyRegistered      = "ALREADY_REGISTERED"
	CodeNotRegistered          = "NOT_REGISTERED"
	CodeCooldownActive         = "COOLDOWN_ACTIVE"
	CodeLevelUpNotReady        = "LEVEL_UP_NOT_READY"
	CodeElementNotFound        = "ELEMENT_NOT_FOUND"
	CodeElementNotOwned        = "ELEMENT_NOT_OWNED"
	CodeInvalidFusion          = "INVALID_FUSION"
	CodeFusionMismatch         = "FUSION_MISMATCH"
	CodeMaxLevel               = "MAX_LEVEL"
	CodeTxNotFound             = "TX_NOT_FOUND"
	CodeTxReverted             = "TX_REVERTED"
	CodeNoSigner               = "NO_SIGNER"
	CodeQuoteNotFound          = "QUOTE_NOT_FOUND"
	CodeInvalidQuote           = "INVALID_QUOTE"
	CodeInvalidQuoteTransition = "INVALID_QUOTE_TRANSITION"
	CodeChallengeNotFound      = "CHALLENGE_NOT_FOUND"
	CodeChallengeExpired       = "CHALLENGE_EXPIRED"
	CodeInvalidSignature       = "INVALID_SIGNATURE"
	CodeInternalError          = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status WriteError would use for err
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var cooldown *model.CooldownError
	if errors.As(err, &cooldown) {
		return &httpError{http.StatusConflict, APIError{
			Code:           CodeCooldownActive,
			Message:        "Check-in cooldown active",
			HoursRemaining: cooldown.HoursRemaining(),
		}}
	}

	// A reverted tx with a known cause maps like the cause, keeping the reason
	var revert *model.RevertError
	if errors.As(err, &revert) {
		if revert.Cause != nil {
			he := toHTTPError(revert.Cause)
			if he.status != http.StatusInternalServerError {
				he.apiError.Reason = revert.Reason
				return he
			}
		}
		return &httpError{http.StatusConflict, APIError{
			Code:    CodeTxReverted,
			Message: "Transaction reverted",
			Reason:  revert.Reason,
		}}
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrInvalidAddress):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidAddress, Message: "Invalid wallet address"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodePlayerNotFound, Message: "Player not found"}}
	case errors.Is(err, model.ErrAlreadyRegistered):
		return &httpError{http.StatusConflict, APIError{Code: CodeAlreadyRegistered, Message: "Already registered"}}
	case errors.Is(err, model.ErrNotRegistered):
		return &httpError{http.StatusConflict, APIError{Code: CodeNotRegistered, Message: "Not registered"}}
	case errors.Is(err, model.ErrCooldownActive):
		return &httpError{http.StatusConflict, APIError{Code: CodeCooldownActive, Message: "Check-in cooldown active"}}
	case errors.Is(err, model.ErrLevelUpNotReady):
		return &httpError{http.StatusConflict, APIError{Code: CodeLevelUpNotReady, Message: "Level up requirements not met"}}
	case errors.Is(err, model.ErrElementNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeElementNotFound, Message: "Element does not exist"}}
	case errors.Is(err, model.ErrElementNotOwned):
		return &httpError{http.StatusForbidden, APIError{Code: CodeElementNotOwned, Message: "Not element owner"}}
	case errors.Is(err, model.ErrInvalidFusionCount):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidFusion, Message: "Need exactly 3 distinct elements"}}
	case errors.Is(err, model.ErrFusionMismatch):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeFusionMismatch, Message: "Elements must share type and level"}}
	case errors.Is(err, model.ErrMaxLevel):
		return &httpError{http.StatusConflict, APIError{Code: CodeMaxLevel, Message: "Max level reached"}}
	case errors.Is(err, model.ErrTxNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeTxNotFound, Message: "Transaction not found"}}
	case errors.Is(err, model.ErrNoSigner):
		return &httpError{http.StatusForbidden, APIError{Code: CodeNoSigner, Message: "Server cannot sign for this wallet"}}
	case errors.Is(err, model.ErrQuoteNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeQuoteNotFound, Message: "Quote not found"}}
	case errors.Is(err, model.ErrInvalidQuote):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidQuote, Message: err.Error()}}
	case errors.Is(err, model.ErrInvalidQuoteTransition):
		return &httpError{http.StatusConflict, APIError{Code: CodeInvalidQuoteTransition, Message: "Only pending quotes can be moderated"}}
	case errors.Is(err, model.ErrNotAdmin):
		return &httpError{http.StatusForbidden, APIError{Code: CodeForbidden, Message: "Administrator access required"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Invalid or expired session"}}
	case errors.Is(err, auth.ErrChallengeNotFound):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeChallengeNotFound, Message: "Request a challenge first"}}
	case errors.Is(err, auth.ErrChallengeExpired):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeChallengeExpired, Message: "Challenge expired"}}
	case errors.Is(err, auth.ErrInvalidSignature):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeInvalidSignature, Message: "Signature does not match address"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}

// NewRequestFailedError is an internal error tagged with the request id
// under which the failure was logged
func NewRequestFailedError(requestID string) error {
	return &httpError{http.StatusInternalServerError, APIError{
		Code:      CodeInternalError,
		Message:   "Internal server error",
		RequestID: requestID,
	}}
}
