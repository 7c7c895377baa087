package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrDisabled             = errors.New("faucet disabled")
	ErrInsufficientFunds    = errors.New("insufficient funds in faucet")
	ErrLimitExceeded        = errors.New("withdrawal limit exceeded")
	ErrTooSoon              = errors.New("withdrawal cooldown has not elapsed")
	ErrNotAuthorized        = errors.New("caller is not the administrator")
	ErrInvalidAmount        = errors.New("amount must not be negative")
	ErrInvalidLimit         = errors.New("withdrawal limit must be greater than zero")
	ErrInvalidWindow        = errors.New("cooldown window must not be negative")
	ErrInvalidAdministrator = errors.New("administrator identity is required")
	ErrBalanceOverflow      = errors.New("deposit would overflow faucet balance")
	ErrInvalidRequest       = errors.New("invalid request")
)
