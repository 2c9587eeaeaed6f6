package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/mysphere/internal/api/apierr"
	"github.com/mcoot/mysphere/internal/middleware"
)

// Recovery turns a panicking API handler into a JSON 500 carrying the
// request id, so the client can point at the logged stack
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, writePanic)
}

func writePanic(w http.ResponseWriter, r *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewRequestFailedError(middleware.GetRequestID(r.Context())))
}
