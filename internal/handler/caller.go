package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/faucet-ledger/internal/auth"
)

// callerFromContext returns the identity the auth middleware attached to the
// request. Every faucet operation acts on behalf of that identity only.
func callerFromContext(r *http.Request) (uuid.UUID, *AppError) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrMissingToken
	}
	return id, nil
}
