package domain

import (
	"time"

	"github.com/google/uuid"
)

// FaucetState is a point-in-time copy of the ledger's observable fields.
type FaucetState struct {
	Administrator   uuid.UUID
	Balance         int64
	WithdrawalLimit int64
	CooldownWindow  time.Duration
	Active          bool
	Withdrawers     int
}
