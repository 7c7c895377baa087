package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/josh-kwaku/faucet-ledger/internal/auth"
	"github.com/josh-kwaku/faucet-ledger/internal/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging scopes the request logger to the caller identity and logs one line
// per completed request. Health probes are not logged.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		ctx := r.Context()
		if identity, ok := auth.IdentityFromContext(ctx); ok {
			ctx = logging.With(ctx, "identity", identity)
		}
		logger := logging.FromContext(ctx)
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
