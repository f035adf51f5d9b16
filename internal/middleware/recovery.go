package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/arquery/arquery/internal/models"
	"github.com/rs/zerolog/log"
)

// Recovery turns a handler panic into the same 500 body a pipeline
// InternalError produces. Aborted handlers keep unwinding.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Error().
				Str("request_id", RequestIDFromContext(r.Context())).
				Str("route", routePattern(r)).
				Str("client_ip", clientIP(r)).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			models.WriteError(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
