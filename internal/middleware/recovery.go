package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/buildin7days/entitlements/internal/handler"
	"github.com/buildin7days/entitlements/internal/logging"
)

// Recovery is the outermost guard. Handlers that must answer panics in their
// own wire format recover before this runs.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log := logging.FromContext(r.Context())
				log.Error("panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
