package handler

import (
	"net/http"

	"github.com/mcoot/mysphere/internal/api/apierr"
	"github.com/mcoot/mysphere/internal/api/middleware"
	"github.com/mcoot/mysphere/internal/model"
)

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// parseAddress reads a wallet address from a path or body value
func parseAddress(s string) (model.Address, error) {
	if s == "" {
		return "", NewInvalidRequestError("address is required")
	}
	return model.ParseAddress(s)
}

// caller returns the signed-in wallet
func caller(r *http.Request) model.Address {
	return middleware.MustGetSession(r.Context()).Address
}
