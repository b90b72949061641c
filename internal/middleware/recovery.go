package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"activation-backend/internal/metrics"
	"activation-backend/pkg/utils"
)

// PanicRecovery turns a handler panic into a 500 JSON response
func PanicRecovery(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					metrics.PanicsTotal.Inc()
					log.Error("panic recovered",
						"method", r.Method, "path", r.URL.Path,
						"panic", fmt.Sprint(err), "stack", string(debug.Stack()))
					utils.RespondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
