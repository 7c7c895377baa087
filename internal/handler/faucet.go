package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/faucet-ledger/internal/domain"
	"github.com/josh-kwaku/faucet-ledger/internal/logging"
	"github.com/josh-kwaku/faucet-ledger/internal/service"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxWindowSeconds = math.MaxInt64 / int64(time.Second)
)

type faucetService interface {
	Deposit(ctx context.Context, from uuid.UUID, amount int64) (*domain.Transfer, error)
	Withdraw(ctx context.Context, caller uuid.UUID, amount int64) (*domain.Transfer, error)
	SetLimit(ctx context.Context, caller uuid.UUID, limit int64) error
	SetWindow(ctx context.Context, caller uuid.UUID, window time.Duration) error
	SweepAll(ctx context.Context, caller uuid.UUID) (*domain.Transfer, error)
	Disable(ctx context.Context, caller uuid.UUID) (*domain.Transfer, error)
	State(ctx context.Context) domain.FaucetState
	MaxWithdrawal(ctx context.Context) int64
	MinWindow(ctx context.Context) time.Duration
	Eligibility(ctx context.Context, caller uuid.UUID) service.Eligibility
	Transfers(ctx context.Context, identity uuid.UUID, limit, offset int) ([]domain.Transfer, int, error)
}

type FaucetHandler struct {
	faucet faucetService
}

func NewFaucetHandler(faucet faucetService) *FaucetHandler {
	return &FaucetHandler{faucet: faucet}
}

type amountRequest struct {
	Amount *int64 `json:"amount"`
}

// Validate only checks presence. The sign is left to the ledger so a
// disabled faucet reports FAUCET_DISABLED before INVALID_AMOUNT.
func (r amountRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Amount == nil {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	}
	return errs
}

type limitRequest struct {
	Limit *int64 `json:"limit"`
}

func (r limitRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Limit == nil {
		errs = append(errs, FieldError{Field: "limit", Message: "required"})
	} else if *r.Limit <= 0 {
		errs = append(errs, FieldError{Field: "limit", Message: "must be greater than 0"})
	}
	return errs
}

type windowRequest struct {
	WindowSeconds *int64 `json:"window_seconds"`
}

func (r windowRequest) Validate() []FieldError {
	var errs []FieldError
	switch {
	case r.WindowSeconds == nil:
		errs = append(errs, FieldError{Field: "window_seconds", Message: "required"})
	case *r.WindowSeconds < 0:
		errs = append(errs, FieldError{Field: "window_seconds", Message: "must not be negative"})
	case *r.WindowSeconds > maxWindowSeconds:
		errs = append(errs, FieldError{Field: "window_seconds", Message: "too large"})
	}
	return errs
}

type transferDTO struct {
	ID            uuid.UUID `json:"id"`
	Seq           int64     `json:"seq"`
	Kind          string    `json:"kind"`
	Identity      uuid.UUID `json:"identity"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

func toTransferDTO(t *domain.Transfer) transferDTO {
	return transferDTO{
		ID:            t.ID,
		Seq:           t.Seq,
		Kind:          string(t.Kind),
		Identity:      t.Identity,
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		CreatedAt:     t.CreatedAt,
	}
}

type stateDTO struct {
	Administrator uuid.UUID `json:"administrator"`
	Balance       int64     `json:"balance"`
	MaxWithdrawal int64     `json:"max_withdrawal"`
	MinWindowS    int64     `json:"min_window_seconds"`
	Active        bool      `json:"active"`
	Withdrawers   int       `json:"withdrawers"`
}

type eligibilityDTO struct {
	Eligible    bool       `json:"eligible"`
	NextAt      *time.Time `json:"next_at,omitempty"`
	RetryAfterS int64      `json:"retry_after_seconds"`
}

type transferListDTO struct {
	Transfers []transferDTO `json:"transfers"`
	Total     int           `json:"total"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}

func (h *FaucetHandler) State(w http.ResponseWriter, r *http.Request) {
	s := h.faucet.State(r.Context())
	RespondSuccess(w, http.StatusOK, stateDTO{
		Administrator: s.Administrator,
		Balance:       s.Balance,
		MaxWithdrawal: s.WithdrawalLimit,
		MinWindowS:    int64(s.CooldownWindow / time.Second),
		Active:        s.Active,
		Withdrawers:   s.Withdrawers,
	})
}

func (h *FaucetHandler) MaxWithdrawal(w http.ResponseWriter, r *http.Request) {
	RespondSuccess(w, http.StatusOK, map[string]int64{
		"max_withdrawal": h.faucet.MaxWithdrawal(r.Context()),
	})
}

func (h *FaucetHandler) MinWindow(w http.ResponseWriter, r *http.Request) {
	RespondSuccess(w, http.StatusOK, map[string]int64{
		"min_window_seconds": int64(h.faucet.MinWindow(r.Context()) / time.Second),
	})
}

func (h *FaucetHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	caller, appErr := callerFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, toEligibilityDTO(h.faucet.Eligibility(r.Context(), caller)))
}

func (h *FaucetHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	caller, appErr := callerFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, offset, fields := pageParams(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	transfers, total, err := h.faucet.Transfers(r.Context(), caller, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list transfers", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transferDTO, len(transfers))
	for i := range transfers {
		dtos[i] = toTransferDTO(&transfers[i])
	}

	RespondSuccess(w, http.StatusOK, transferListDTO{
		Transfers: dtos,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

func (h *FaucetHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, appErr := callerFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req amountRequest
	if !decode(w, r, &req) {
		return
	}

	t, err := h.faucet.Deposit(r.Context(), caller, *req.Amount)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransferDTO(t))
}

func (h *FaucetHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, appErr := callerFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req amountRequest
	if !decode(w, r, &req) {
		return
	}

	t, err := h.faucet.Withdraw(r.Context(), caller, *req.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrTooSoon) {
			e := h.faucet.Eligibility(r.Context(), caller)
			retry := tooSoonRetryAfter(e)
			dto := toEligibilityDTO(e)
			dto.RetryAfterS = retry
			w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
			RespondAppError(w, ErrTooSoon, dto)
			return
		}
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransferDTO(t))
}

func (h *FaucetHandler) SetLimit(w http.ResponseWriter, r *http.Request) {
	caller, appErr := callerFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req limitRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.faucet.SetLimit(r.Context(), caller, *req.Limit); err != nil {
		RespondDomainError(w, err)
		return
	}

	h.MaxWithdrawal(w, r)
}

func (h *FaucetHandler) SetWindow(w http.ResponseWriter, r *http.Request) {
	caller, appErr := callerFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req windowRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.faucet.SetWindow(r.Context(), caller, time.Duration(*req.WindowSeconds)*time.Second); err != nil {
		RespondDomainError(w, err)
		return
	}

	h.MinWindow(w, r)
}

func (h *FaucetHandler) SweepAll(w http.ResponseWriter, r *http.Request) {
	caller, appErr := callerFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	t, err := h.faucet.SweepAll(r.Context(), caller)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(t))
}

func (h *FaucetHandler) Disable(w http.ResponseWriter, r *http.Request) {
	caller, appErr := callerFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	t, err := h.faucet.Disable(r.Context(), caller)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransferDTO(t))
}

type validator interface {
	Validate() []FieldError
}

// decode reads and validates a JSON body, writing the error response itself
// when it returns false.
func decode(w http.ResponseWriter, r *http.Request, req validator) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return false
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return false
	}
	return true
}

func pageParams(r *http.Request) (limit, offset int, errs []FieldError) {
	limit, offset = defaultPageLimit, 0
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageLimit {
			errs = append(errs, FieldError{Field: "limit", Message: "must be between 1 and 100"})
		} else {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, FieldError{Field: "offset", Message: "must be a non-negative integer"})
		} else {
			offset = n
		}
	}
	return limit, offset, errs
}

func toEligibilityDTO(e service.Eligibility) eligibilityDTO {
	dto := eligibilityDTO{Eligible: e.Eligible, RetryAfterS: retryAfterSeconds(e)}
	if !e.Eligible {
		next := e.NextAt
		dto.NextAt = &next
	}
	return dto
}

// retryAfterSeconds rounds up so a client that waits exactly this long is
// past the cooldown boundary.
func retryAfterSeconds(e service.Eligibility) int64 {
	d := e.RetryAfter()
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

// tooSoonRetryAfter is never zero: the cooldown may lapse between the
// rejection and the eligibility read, and a 429 must still ask for a wait.
func tooSoonRetryAfter(e service.Eligibility) int64 {
	return max(retryAfterSeconds(e), 1)
}
