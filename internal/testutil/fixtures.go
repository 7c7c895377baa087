package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/faucet-ledger/internal/domain"
)

var (
	AdminID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	Epoch   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

const (
	MaxWithdrawal = int64(1000)
	MinWindow     = 24 * time.Hour
	TotalFunds    = int64(1_000_000_000)
)

func NewTransfer(kind domain.TransferKind, identity uuid.UUID, seq, amount, before int64, at time.Time) *domain.Transfer {
	after := before - amount
	if kind.Inbound() {
		after = before + amount
	}
	return &domain.Transfer{
		ID:            uuid.New(),
		Seq:           seq,
		Kind:          kind,
		Identity:      identity,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedAt:     at,
	}
}

func CountTransfers(t *testing.T, db *sql.DB, identity uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transfers WHERE identity = $1`, identity).Scan(&count)
	if err != nil {
		t.Fatalf("count transfers for %s: %v", identity, err)
	}
	return count
}
