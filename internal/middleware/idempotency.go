package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/faucet-ledger/internal/auth"
	"github.com/josh-kwaku/faucet-ledger/internal/handler"
	"github.com/josh-kwaku/faucet-ledger/internal/logging"
	"github.com/josh-kwaku/faucet-ledger/internal/repository"
)

type idempotencyRepository interface {
	Get(ctx context.Context, key string, identity uuid.UUID) (*repository.IdempotencyCacheEntry, error)
	Reserve(ctx context.Context, entry *repository.IdempotencyCacheEntry) (bool, error)
	Set(ctx context.Context, entry *repository.IdempotencyCacheEntry) error
	Release(ctx context.Context, key string, identity uuid.UUID) error
}

const (
	idempotencyTTL = 24 * time.Hour
	// outlives the server write timeout so a live request never loses its key
	reservationTTL = time.Minute
)

// Idempotency replays the stored response when a mutating request repeats an
// Idempotency-Key for the same identity. A key reused with a different
// method, path or body is rejected. Only successful responses are stored:
// a rejected request moved no funds, so retrying it under the same key
// re-evaluates it against the current ledger. The key is reserved before the
// request runs, so a concurrent duplicate gets 409 instead of running twice.
func Idempotency(repo idempotencyRepository, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			// public routes carry no identity to scope a key to
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			reqHash := computeHash(r.Method, r.URL.Path, body)

			log := logging.FromContext(r.Context())

			cached, err := repo.Get(r.Context(), key, identity)
			if err != nil {
				log.Error("idempotency cache lookup failed", "error", err, "idempotency_key", key)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}
			if cached != nil {
				replay(w, r, cached, reqHash)
				return
			}

			reservedAt := now().UTC()
			reserved, err := repo.Reserve(r.Context(), &repository.IdempotencyCacheEntry{
				Key:         key,
				Identity:    identity,
				RequestHash: reqHash,
				CreatedAt:   reservedAt,
				ExpiresAt:   reservedAt.Add(reservationTTL),
			})
			if err != nil {
				log.Error("idempotency reservation failed", "error", err, "idempotency_key", key)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}
			if !reserved {
				// another request took the key between lookup and reservation
				cached, err := repo.Get(r.Context(), key, identity)
				if err != nil {
					log.Error("idempotency cache lookup failed", "error", err, "idempotency_key", key)
					handler.RespondAppError(w, handler.ErrInternalError, nil)
					return
				}
				if cached == nil {
					handler.RespondAppError(w, handler.ErrIdempotencyInProgress, nil)
					return
				}
				replay(w, r, cached, reqHash)
				return
			}

			stored := false
			defer func() {
				if stored {
					return
				}
				if err := repo.Release(context.WithoutCancel(r.Context()), key, identity); err != nil {
					log.Error("idempotency release failed", "error", err, "idempotency_key", key)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode < 200 || rec.statusCode >= 300 {
				return
			}

			created := now().UTC()
			entry := &repository.IdempotencyCacheEntry{
				Key:          key,
				Identity:     identity,
				RequestHash:  reqHash,
				StatusCode:   rec.statusCode,
				ResponseBody: rec.body.Bytes(),
				CreatedAt:    created,
				ExpiresAt:    created.Add(idempotencyTTL),
			}
			if err := repo.Set(context.WithoutCancel(r.Context()), entry); err != nil {
				log.Error("idempotency cache store failed", "error", err, "idempotency_key", key)
				return
			}
			stored = true
		})
	}
}

// replay answers a repeated key from the cache: a different request is a
// conflict, a pending one is still running, a completed one is replayed.
func replay(w http.ResponseWriter, r *http.Request, cached *repository.IdempotencyCacheEntry, reqHash string) {
	if cached.RequestHash != reqHash {
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
		return
	}
	if cached.Pending() {
		handler.RespondAppError(w, handler.ErrIdempotencyInProgress, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	if _, err := w.Write(cached.ResponseBody); err != nil {
		logging.FromContext(r.Context()).Error("failed to write idempotent replay", "error", err, "idempotency_key", cached.Key)
	}
}

func computeHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return fmt.Sprintf("%x", h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
