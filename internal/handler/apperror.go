package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidClientKey = &AppError{http.StatusUnauthorized, "INVALID_CLIENT_KEY", "Client key is not recognised"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
	ErrRateLimited      = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, slow down"}

	ErrFaucetDisabled    = &AppError{http.StatusGone, "FAUCET_DISABLED", "Faucet has been permanently disabled"}
	ErrInsufficientFunds = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds in faucet"}
	ErrLimitExceeded     = &AppError{http.StatusUnprocessableEntity, "WITHDRAWAL_LIMIT_EXCEEDED", "Withdrawal limit exceeded"}
	ErrTooSoon           = &AppError{http.StatusTooManyRequests, "WITHDRAWAL_TOO_SOON", "Cooldown window has not elapsed since your last withdrawal"}
	ErrNotAuthorized     = &AppError{http.StatusForbidden, "NOT_AUTHORIZED", "Only the administrator may perform this operation"}
	ErrInvalidAmount     = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must not be negative"}
	ErrInvalidLimit      = &AppError{http.StatusBadRequest, "INVALID_LIMIT", "Withdrawal limit must be greater than zero"}
	ErrInvalidWindow     = &AppError{http.StatusBadRequest, "INVALID_WINDOW", "Cooldown window must not be negative"}
	ErrBalanceOverflow   = &AppError{http.StatusUnprocessableEntity, "BALANCE_OVERFLOW", "Deposit would overflow the faucet balance"}

	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInProgress = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is still being processed"}
)
