package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/faucet-ledger/internal/handler"
	"github.com/josh-kwaku/faucet-ledger/internal/logging"
)

// Recovery turns a panic anywhere below it into a 500. It sits outside
// Tracing, so the request id is read back from the response header.
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
					"request_id", w.Header().Get(traceIDHeader),
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
