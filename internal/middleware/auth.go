package middleware

import (
	"net/http"
	"strings"

	"github.com/buildin7days/entitlements/internal/auth"
	"github.com/buildin7days/entitlements/internal/handler"
	"github.com/buildin7days/entitlements/internal/logging"
)

func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				logging.FromContext(r.Context()).Warn("admin token rejected", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithSubject(r.Context(), claims.Subject)
			ctx = logging.With(ctx, "admin_subject", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
