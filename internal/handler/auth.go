package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/faucet-ledger/internal/auth"
	"github.com/josh-kwaku/faucet-ledger/internal/logging"
)

// AuthHandler exchanges a trusted client key for a token scoped to a single
// identity. The client (a faucet frontend, a CI runner) is expected to have
// authenticated the identity itself.
type AuthHandler struct {
	clientKeyHash []byte
	jwtSecret     string
	jwtExpiry     time.Duration
}

func NewAuthHandler(clientKeyHash, jwtSecret string, jwtExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		clientKeyHash: []byte(clientKeyHash),
		jwtSecret:     jwtSecret,
		jwtExpiry:     jwtExpiry,
	}
}

type tokenRequest struct {
	Identity  string `json:"identity"`
	ClientKey string `json:"client_key"`
}

func (r tokenRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Identity == "" {
		errs = append(errs, FieldError{Field: "identity", Message: "required"})
	} else if id, err := uuid.Parse(r.Identity); err != nil || id == uuid.Nil {
		errs = append(errs, FieldError{Field: "identity", Message: "must be a non-nil uuid"})
	}
	if r.ClientKey == "" {
		errs = append(errs, FieldError{Field: "client_key", Message: "required"})
	}
	return errs
}

type tokenResponse struct {
	Token     string    `json:"token"`
	Identity  uuid.UUID `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}

	if err := bcrypt.CompareHashAndPassword(h.clientKeyHash, []byte(req.ClientKey)); err != nil {
		logging.FromContext(r.Context()).Warn("token request with bad client key")
		RespondAppError(w, ErrInvalidClientKey, nil)
		return
	}

	identity := uuid.MustParse(req.Identity)
	expiresAt := time.Now().Add(h.jwtExpiry).UTC().Truncate(time.Second)
	token, err := auth.GenerateToken(identity, h.jwtSecret, h.jwtExpiry)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to sign token", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	logging.FromContext(r.Context()).Info("token issued", "identity", identity)
	RespondSuccess(w, http.StatusOK, tokenResponse{
		Token:     token,
		Identity:  identity,
		ExpiresAt: expiresAt,
	})
}

// HashClientKey produces the value expected in TOKEN_CLIENT_KEY_HASH.
func HashClientKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
