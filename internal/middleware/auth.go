package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/faucet-ledger/internal/auth"
	"github.com/josh-kwaku/faucet-ledger/internal/handler"
)

// Auth requires a valid bearer token and attaches its identity to the
// request context. Paths in public are served without a token.
func Auth(secret string, public ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path, public) {
				next.ServeHTTP(w, r)
				return
			}

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
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), claims.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		if strings.HasSuffix(p, "/") && strings.HasPrefix(path, p) {
			return true
		}
		if path == p {
			return true
		}
	}
	return false
}
