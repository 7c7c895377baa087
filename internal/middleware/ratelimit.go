package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/josh-kwaku/faucet-ledger/internal/auth"
	"github.com/josh-kwaku/faucet-ledger/internal/handler"
	"github.com/josh-kwaku/faucet-ledger/internal/logging"
)

// RateLimiter hands out one token bucket per caller. Authenticated requests
// are keyed by identity, anonymous ones by remote address.
type RateLimiter struct {
	limiters sync.Map
	limit    rate.Limit
	burst    int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{limit: rate.Limit(rps), burst: burst}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	l, ok := rl.limiters.Load(key)
	if !ok {
		l, _ = rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.limit, rl.burst))
	}
	return l.(*rate.Limiter)
}

// Allow consumes a token for key at t.
func (rl *RateLimiter) Allow(key string, t time.Time) bool {
	return rl.limiter(key).AllowN(t, 1)
}

// Middleware rejects requests over the caller's rate with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rateKey(r)
		if !rl.Allow(key, time.Now()) {
			logging.FromContext(r.Context()).Warn("rate limited", "key", key, "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(1))
			handler.RespondAppError(w, handler.ErrRateLimited, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateKey(r *http.Request) string {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return "id:" + id.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
