package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransferKind string

const (
	TransferKindDeposit    TransferKind = "deposit"
	TransferKindWithdrawal TransferKind = "withdrawal"
	TransferKindSweep      TransferKind = "sweep"
	TransferKindDisable    TransferKind = "disable"
)

func (k TransferKind) IsValid() bool {
	switch k {
	case TransferKindDeposit, TransferKindWithdrawal, TransferKindSweep, TransferKindDisable:
		return true
	}
	return false
}

// Inbound reports whether the transfer moved value into the faucet.
func (k TransferKind) Inbound() bool {
	return k == TransferKindDeposit
}

// Transfer is the receipt of one value movement in or out of the faucet.
// Identity is the depositor for inbound transfers and the recipient otherwise.
type Transfer struct {
	ID            uuid.UUID
	Seq           int64
	Kind          TransferKind
	Identity      uuid.UUID
	Amount        int64
	BalanceBefore int64
	BalanceAfter  int64
	CreatedAt     time.Time
}
