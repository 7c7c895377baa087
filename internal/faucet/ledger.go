// Package faucet holds the pooled-balance ledger: anyone may deposit, anyone
// may withdraw up to a limit once per cooldown window, and a single
// administrator may retune the limits, sweep the pool or shut it down.
//
// Every method takes the ledger's lock for its whole duration, so operations
// on one Ledger are linearizable. Mutations read the caller-supplied Clock
// while holding the lock, so receipt times never run backwards against seq.
package faucet

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/faucet-ledger/internal/domain"
)

// Clock supplies the time stamped on receipts and cooldowns.
type Clock interface {
	Now() time.Time
}

type Ledger struct {
	mu sync.RWMutex

	admin   uuid.UUID
	balance int64
	limit   int64
	window  time.Duration
	active  bool
	seq     int64

	// absent key means the identity has never withdrawn
	lastWithdrawal map[uuid.UUID]time.Time
}

func New(admin uuid.UUID, limit int64, window time.Duration) (*Ledger, error) {
	if admin == uuid.Nil {
		return nil, fmt.Errorf("New: %w", domain.ErrInvalidAdministrator)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("New: %w", domain.ErrInvalidLimit)
	}
	if window < 0 {
		return nil, fmt.Errorf("New: %w", domain.ErrInvalidWindow)
	}

	return &Ledger{
		admin:          admin,
		limit:          limit,
		window:         window,
		active:         true,
		lastWithdrawal: make(map[uuid.UUID]time.Time),
	}, nil
}

// Deposit adds amount to the pool. Zero is accepted.
func (l *Ledger) Deposit(from uuid.UUID, amount int64, clk Clock) (*domain.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return nil, fmt.Errorf("Deposit: %w", domain.ErrDisabled)
	}
	if amount < 0 {
		return nil, fmt.Errorf("Deposit: %w", domain.ErrInvalidAmount)
	}
	if l.balance > math.MaxInt64-amount {
		return nil, fmt.Errorf("Deposit: %w", domain.ErrBalanceOverflow)
	}

	return l.move(domain.TransferKindDeposit, from, amount, clk.Now()), nil
}

// Withdraw pays amount to caller. The checks run in a fixed order and the
// first failing one decides the error: disabled, insufficient pool funds,
// per-call limit, then the caller's cooldown.
func (l *Ledger) Withdraw(caller uuid.UUID, amount int64, clk Clock) (*domain.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return nil, fmt.Errorf("Withdraw: %w", domain.ErrDisabled)
	}
	if amount < 0 {
		return nil, fmt.Errorf("Withdraw: %w", domain.ErrInvalidAmount)
	}
	if amount > l.balance {
		return nil, fmt.Errorf("Withdraw: requested %d, available %d: %w", amount, l.balance, domain.ErrInsufficientFunds)
	}
	if amount > l.limit {
		return nil, fmt.Errorf("Withdraw: requested %d, limit %d: %w", amount, l.limit, domain.ErrLimitExceeded)
	}
	now := clk.Now()
	if last, ok := l.lastWithdrawal[caller]; ok && now.Sub(last) < l.window {
		return nil, fmt.Errorf("Withdraw: eligible at %s: %w", last.Add(l.window).Format(time.RFC3339), domain.ErrTooSoon)
	}

	t := l.move(domain.TransferKindWithdrawal, caller, amount, now)
	l.lastWithdrawal[caller] = now
	return t, nil
}

func (l *Ledger) SetLimit(caller uuid.UUID, limit int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(caller); err != nil {
		return fmt.Errorf("SetLimit: %w", err)
	}
	if limit <= 0 {
		return fmt.Errorf("SetLimit: %w", domain.ErrInvalidLimit)
	}

	l.limit = limit
	return nil
}

// SetWindow replaces the cooldown window. The new value applies to every
// later Withdraw, including callers already part-way through a cooldown.
func (l *Ledger) SetWindow(caller uuid.UUID, window time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(caller); err != nil {
		return fmt.Errorf("SetWindow: %w", err)
	}
	if window < 0 {
		return fmt.Errorf("SetWindow: %w", domain.ErrInvalidWindow)
	}

	l.window = window
	return nil
}

// SweepAll moves the whole pool to the administrator and leaves the ledger active.
func (l *Ledger) SweepAll(caller uuid.UUID, clk Clock) (*domain.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(caller); err != nil {
		return nil, fmt.Errorf("SweepAll: %w", err)
	}

	return l.move(domain.TransferKindSweep, l.admin, l.balance, clk.Now()), nil
}

// Disable returns the whole pool to the administrator and makes the ledger
// terminal. Every later mutating call, including Disable, fails ErrDisabled.
func (l *Ledger) Disable(caller uuid.UUID, clk Clock) (*domain.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorize(caller); err != nil {
		return nil, fmt.Errorf("Disable: %w", err)
	}

	t := l.move(domain.TransferKindDisable, l.admin, l.balance, clk.Now())
	l.active = false
	return t, nil
}

func (l *Ledger) MaxWithdrawal() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limit
}

func (l *Ledger) MinWindow() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.window
}

func (l *Ledger) Balance() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

func (l *Ledger) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

func (l *Ledger) Administrator() uuid.UUID {
	return l.admin
}

// LastWithdrawal reports the time of the identity's most recent successful
// withdrawal. ok is false if it has never withdrawn.
func (l *Ledger) LastWithdrawal(id uuid.UUID) (t time.Time, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok = l.lastWithdrawal[id]
	return t, ok
}

// NextEligible reports when the identity's cooldown ends under the current
// window. ok is false if it has never withdrawn and may withdraw right away.
func (l *Ledger) NextEligible(id uuid.UUID) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	last, ok := l.lastWithdrawal[id]
	if !ok {
		return time.Time{}, false
	}
	return last.Add(l.window), true
}

func (l *Ledger) Snapshot() domain.FaucetState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return domain.FaucetState{
		Administrator:   l.admin,
		Balance:         l.balance,
		WithdrawalLimit: l.limit,
		CooldownWindow:  l.window,
		Active:          l.active,
		Withdrawers:     len(l.lastWithdrawal),
	}
}

// authorize gates privileged operations. Caller must hold l.mu.
func (l *Ledger) authorize(caller uuid.UUID) error {
	if !l.active {
		return domain.ErrDisabled
	}
	if caller != l.admin {
		return domain.ErrNotAuthorized
	}
	return nil
}

// move applies a validated balance change and builds its receipt.
// Caller must hold l.mu.
func (l *Ledger) move(kind domain.TransferKind, id uuid.UUID, amount int64, now time.Time) *domain.Transfer {
	before := l.balance
	if kind.Inbound() {
		l.balance += amount
	} else {
		l.balance -= amount
	}
	l.seq++

	return &domain.Transfer{
		ID:            uuid.New(),
		Seq:           l.seq,
		Kind:          kind,
		Identity:      id,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  l.balance,
		CreatedAt:     now,
	}
}
