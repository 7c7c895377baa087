package faucet

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/faucet-ledger/internal/domain"
)

const (
	maxWithdrawal = int64(1000)
	minWindow     = 24 * time.Hour
	totalFunds    = int64(1_000_000_000)
)

var epoch = time.Unix(0, 0).UTC()

// at is a Clock stopped at a fixed instant.
type at time.Time

func (a at) Now() time.Time { return time.Time(a) }

// stepClock advances one nanosecond on every read.
type stepClock struct {
	ticks atomic.Int64
}

func (c *stepClock) Now() time.Time {
	return epoch.Add(time.Duration(c.ticks.Add(1)))
}

func newLedger(t *testing.T) (*Ledger, uuid.UUID) {
	t.Helper()
	admin := uuid.New()
	l, err := New(admin, maxWithdrawal, minWindow)
	require.NoError(t, err)
	return l, admin
}

func newFundedLedger(t *testing.T) (*Ledger, uuid.UUID) {
	t.Helper()
	l, admin := newLedger(t)
	_, err := l.Deposit(admin, totalFunds, at(epoch))
	require.NoError(t, err)
	return l, admin
}

func TestNew(t *testing.T) {
	admin := uuid.New()

	tests := []struct {
		name    string
		admin   uuid.UUID
		limit   int64
		window  time.Duration
		wantErr error
	}{
		{name: "valid", admin: admin, limit: maxWithdrawal, window: minWindow},
		{name: "zero window allowed", admin: admin, limit: 1, window: 0},
		{name: "nil administrator", admin: uuid.Nil, limit: maxWithdrawal, window: minWindow, wantErr: domain.ErrInvalidAdministrator},
		{name: "zero limit", admin: admin, limit: 0, window: minWindow, wantErr: domain.ErrInvalidLimit},
		{name: "negative limit", admin: admin, limit: -5, window: minWindow, wantErr: domain.ErrInvalidLimit},
		{name: "negative window", admin: admin, limit: maxWithdrawal, window: -time.Second, wantErr: domain.ErrInvalidWindow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := New(tc.admin, tc.limit, tc.window)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, l)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.limit, l.MaxWithdrawal())
			assert.Equal(t, tc.window, l.MinWindow())
			assert.Equal(t, int64(0), l.Balance())
			assert.True(t, l.Active())
			assert.Equal(t, tc.admin, l.Administrator())
		})
	}
}

func TestDeposit(t *testing.T) {
	l, _ := newLedger(t)
	depositor := uuid.New()

	tr, err := l.Deposit(depositor, totalFunds, at(epoch))
	require.NoError(t, err)
	assert.Equal(t, totalFunds, l.Balance())
	assert.Equal(t, domain.TransferKindDeposit, tr.Kind)
	assert.Equal(t, depositor, tr.Identity)
	assert.Equal(t, totalFunds, tr.Amount)
	assert.Equal(t, int64(0), tr.BalanceBefore)
	assert.Equal(t, totalFunds, tr.BalanceAfter)
	assert.Equal(t, int64(1), tr.Seq)
}

func TestDeposit_Zero(t *testing.T) {
	l, _ := newLedger(t)

	tr, err := l.Deposit(uuid.New(), 0, at(epoch))
	require.NoError(t, err)
	assert.Equal(t, int64(0), tr.Amount)
	assert.Equal(t, int64(0), l.Balance())
}

func TestDeposit_Rejections(t *testing.T) {
	t.Run("negative amount", func(t *testing.T) {
		l, _ := newLedger(t)
		_, err := l.Deposit(uuid.New(), -1, at(epoch))
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
		assert.Equal(t, int64(0), l.Balance())
	})

	t.Run("overflow", func(t *testing.T) {
		l, _ := newLedger(t)
		_, err := l.Deposit(uuid.New(), math.MaxInt64, at(epoch))
		require.NoError(t, err)

		_, err = l.Deposit(uuid.New(), 1, at(epoch))
		require.ErrorIs(t, err, domain.ErrBalanceOverflow)
		assert.Equal(t, int64(math.MaxInt64), l.Balance())
	})

	t.Run("disabled", func(t *testing.T) {
		l, admin := newLedger(t)
		_, err := l.Disable(admin, at(epoch))
		require.NoError(t, err)

		_, err = l.Deposit(uuid.New(), 10, at(epoch))
		require.ErrorIs(t, err, domain.ErrDisabled)
	})
}

func TestWithdraw_NoFunds(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.Withdraw(uuid.New(), maxWithdrawal, at(epoch))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(0), l.Balance())
}

func TestWithdraw_CheckOrder(t *testing.T) {
	caller := uuid.New()

	tests := []struct {
		name    string
		setup   func(t *testing.T, l *Ledger, admin uuid.UUID)
		amount  int64
		wantErr error
	}{
		{
			name: "disabled wins over everything",
			setup: func(t *testing.T, l *Ledger, admin uuid.UUID) {
				_, err := l.Disable(admin, at(epoch))
				require.NoError(t, err)
			},
			amount:  maxWithdrawal * 2,
			wantErr: domain.ErrDisabled,
		},
		{
			name:    "insufficient funds wins over limit on a drained pool",
			setup:   func(t *testing.T, l *Ledger, admin uuid.UUID) {},
			amount:  maxWithdrawal * 2,
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name: "insufficient funds wins over cooldown",
			setup: func(t *testing.T, l *Ledger, admin uuid.UUID) {
				_, err := l.Deposit(admin, 1500, at(epoch))
				require.NoError(t, err)
				_, err = l.Withdraw(caller, maxWithdrawal, at(epoch))
				require.NoError(t, err)
			},
			amount:  maxWithdrawal,
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name: "limit wins over cooldown",
			setup: func(t *testing.T, l *Ledger, admin uuid.UUID) {
				_, err := l.Deposit(admin, totalFunds, at(epoch))
				require.NoError(t, err)
				_, err = l.Withdraw(caller, maxWithdrawal, at(epoch))
				require.NoError(t, err)
			},
			amount:  maxWithdrawal + 1,
			wantErr: domain.ErrLimitExceeded,
		},
		{
			name: "negative amount",
			setup: func(t *testing.T, l *Ledger, admin uuid.UUID) {
				_, err := l.Deposit(admin, totalFunds, at(epoch))
				require.NoError(t, err)
			},
			amount:  -1,
			wantErr: domain.ErrInvalidAmount,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, admin := newLedger(t)
			tc.setup(t, l, admin)
			before := l.Snapshot()
			last, hadLast := l.LastWithdrawal(caller)

			_, err := l.Withdraw(caller, tc.amount, at(epoch))
			require.ErrorIs(t, err, tc.wantErr)

			assert.Equal(t, before, l.Snapshot())
			gotLast, gotHad := l.LastWithdrawal(caller)
			assert.Equal(t, hadLast, gotHad)
			assert.Equal(t, last, gotLast)
		})
	}
}

func TestWithdraw_LimitExceeded(t *testing.T) {
	l, _ := newFundedLedger(t)

	_, err := l.Withdraw(uuid.New(), maxWithdrawal*2, at(epoch))
	require.ErrorIs(t, err, domain.ErrLimitExceeded)
	assert.Equal(t, totalFunds, l.Balance())
}

func TestWithdraw_AtLimitIsAllowed(t *testing.T) {
	l, _ := newFundedLedger(t)
	caller := uuid.New()

	tr, err := l.Withdraw(caller, maxWithdrawal, at(epoch))
	require.NoError(t, err)
	assert.Equal(t, domain.TransferKindWithdrawal, tr.Kind)
	assert.Equal(t, caller, tr.Identity)
	assert.Equal(t, maxWithdrawal, tr.Amount)
	assert.Equal(t, totalFunds, tr.BalanceBefore)
	assert.Equal(t, totalFunds-maxWithdrawal, tr.BalanceAfter)
	assert.Equal(t, totalFunds-maxWithdrawal, l.Balance())
}

func TestWithdraw_Cooldown(t *testing.T) {
	l, _ := newFundedLedger(t)
	caller := uuid.New()

	_, err := l.Withdraw(caller, maxWithdrawal, at(epoch))
	require.NoError(t, err)

	_, err = l.Withdraw(caller, maxWithdrawal, at(epoch))
	require.ErrorIs(t, err, domain.ErrTooSoon)

	_, err = l.Withdraw(caller, maxWithdrawal, at(epoch.Add(minWindow-time.Second)))
	require.ErrorIs(t, err, domain.ErrTooSoon)
	assert.Equal(t, totalFunds-maxWithdrawal, l.Balance())

	_, err = l.Withdraw(caller, maxWithdrawal, at(epoch.Add(minWindow)))
	require.NoError(t, err)
	assert.Equal(t, int64(999_998_000), l.Balance())

	last, ok := l.LastWithdrawal(caller)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(minWindow), last)
}

func TestWithdraw_EpochTimestampIsStillRecorded(t *testing.T) {
	l, _ := newFundedLedger(t)
	caller := uuid.New()

	_, ok := l.LastWithdrawal(caller)
	assert.False(t, ok, "never-withdrawn caller has no entry")

	// a genuine withdrawal at the zero Unix time must start a cooldown
	_, err := l.Withdraw(caller, 1, at(epoch))
	require.NoError(t, err)

	last, ok := l.LastWithdrawal(caller)
	require.True(t, ok)
	assert.Equal(t, epoch, last)

	_, err = l.Withdraw(caller, 1, at(epoch))
	require.ErrorIs(t, err, domain.ErrTooSoon)
}

func TestWithdraw_FirstWithdrawalAtZeroTime(t *testing.T) {
	l, _ := newFundedLedger(t)

	_, err := l.Withdraw(uuid.New(), 1, at(time.Time{}))
	require.NoError(t, err)
}

func TestWithdraw_CallersAreIndependent(t *testing.T) {
	l, _ := newFundedLedger(t)
	a, b := uuid.New(), uuid.New()

	_, err := l.Withdraw(a, maxWithdrawal, at(epoch))
	require.NoError(t, err)

	_, err = l.Withdraw(b, maxWithdrawal, at(epoch))
	require.NoError(t, err)

	assert.Equal(t, totalFunds-2*maxWithdrawal, l.Balance())
}

func TestWithdraw_ZeroWindow(t *testing.T) {
	l, admin := newFundedLedger(t)
	require.NoError(t, l.SetWindow(admin, 0))
	caller := uuid.New()

	for range 3 {
		_, err := l.Withdraw(caller, maxWithdrawal, at(epoch))
		require.NoError(t, err)
	}
	assert.Equal(t, totalFunds-3*maxWithdrawal, l.Balance())
}

func TestWithdraw_ClockBehindLastWithdrawal(t *testing.T) {
	l, admin := newFundedLedger(t)
	require.NoError(t, l.SetWindow(admin, 0))
	caller := uuid.New()

	_, err := l.Withdraw(caller, 1, at(epoch.Add(time.Hour)))
	require.NoError(t, err)

	_, err = l.Withdraw(caller, 1, at(epoch))
	require.ErrorIs(t, err, domain.ErrTooSoon)

	last, _ := l.LastWithdrawal(caller)
	assert.Equal(t, epoch.Add(time.Hour), last)
}

func TestSetWindow_AppliesToCooldownsInFlight(t *testing.T) {
	l, admin := newFundedLedger(t)
	caller := uuid.New()

	_, err := l.Withdraw(caller, maxWithdrawal, at(epoch))
	require.NoError(t, err)

	require.NoError(t, l.SetWindow(admin, time.Hour))
	_, err = l.Withdraw(caller, maxWithdrawal, at(epoch.Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, l.SetWindow(admin, 48*time.Hour))
	_, err = l.Withdraw(caller, maxWithdrawal, at(epoch.Add(25*time.Hour)))
	require.ErrorIs(t, err, domain.ErrTooSoon)

	next, ok := l.NextEligible(caller)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(49*time.Hour), next)
}

func TestNextEligible_NeverWithdrawn(t *testing.T) {
	l, _ := newLedger(t)
	next, ok := l.NextEligible(uuid.New())
	assert.False(t, ok)
	assert.True(t, next.IsZero())
}

func TestSetters(t *testing.T) {
	l, admin := newLedger(t)

	require.NoError(t, l.SetLimit(admin, 2*maxWithdrawal))
	assert.Equal(t, 2*maxWithdrawal, l.MaxWithdrawal())

	require.NoError(t, l.SetWindow(admin, 2*minWindow))
	assert.Equal(t, 2*minWindow, l.MinWindow())

	require.ErrorIs(t, l.SetLimit(admin, 0), domain.ErrInvalidLimit)
	require.ErrorIs(t, l.SetWindow(admin, -time.Second), domain.ErrInvalidWindow)
	assert.Equal(t, 2*maxWithdrawal, l.MaxWithdrawal())
	assert.Equal(t, 2*minWindow, l.MinWindow())
}

func TestSetLimit_AppliesImmediately(t *testing.T) {
	l, admin := newFundedLedger(t)

	require.NoError(t, l.SetLimit(admin, 10))
	_, err := l.Withdraw(uuid.New(), 11, at(epoch))
	require.ErrorIs(t, err, domain.ErrLimitExceeded)
}

func TestPrivilegedOperations_NotAuthorized(t *testing.T) {
	other := uuid.New()

	ops := []struct {
		name string
		call func(l *Ledger) error
	}{
		{"SetLimit", func(l *Ledger) error { return l.SetLimit(other, 2*maxWithdrawal) }},
		{"SetWindow", func(l *Ledger) error { return l.SetWindow(other, 2*minWindow) }},
		{"SweepAll", func(l *Ledger) error { _, err := l.SweepAll(other, at(epoch)); return err }},
		{"Disable", func(l *Ledger) error { _, err := l.Disable(other, at(epoch)); return err }},
		{"SetLimit invalid value", func(l *Ledger) error { return l.SetLimit(other, -1) }},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			l, _ := newFundedLedger(t)
			before := l.Snapshot()

			err := op.call(l)
			require.ErrorIs(t, err, domain.ErrNotAuthorized)
			assert.Equal(t, before, l.Snapshot())
		})
	}
}

func TestSweepAll(t *testing.T) {
	l, admin := newFundedLedger(t)
	caller := uuid.New()
	_, err := l.Withdraw(caller, maxWithdrawal, at(epoch))
	require.NoError(t, err)

	tr, err := l.SweepAll(admin, at(epoch))
	require.NoError(t, err)
	assert.Equal(t, domain.TransferKindSweep, tr.Kind)
	assert.Equal(t, admin, tr.Identity)
	assert.Equal(t, totalFunds-maxWithdrawal, tr.Amount)
	assert.Equal(t, int64(0), tr.BalanceAfter)

	state := l.Snapshot()
	assert.Equal(t, int64(0), state.Balance)
	assert.True(t, state.Active)
	assert.Equal(t, maxWithdrawal, state.WithdrawalLimit)
	assert.Equal(t, minWindow, state.CooldownWindow)

	_, ok := l.LastWithdrawal(caller)
	assert.True(t, ok, "sweep must not clear cooldowns")

	_, err = l.Deposit(uuid.New(), 5, at(epoch))
	require.NoError(t, err, "ledger stays usable after a sweep")
}

func TestSweepAll_Scenario(t *testing.T) {
	l, admin := newFundedLedger(t)

	tr, err := l.SweepAll(admin, at(epoch))
	require.NoError(t, err)
	assert.Equal(t, totalFunds, tr.Amount)
	assert.Equal(t, int64(0), l.Balance())
	assert.True(t, l.Active())
}

func TestDisable(t *testing.T) {
	l, admin := newFundedLedger(t)

	tr, err := l.Disable(admin, at(epoch))
	require.NoError(t, err)
	assert.Equal(t, domain.TransferKindDisable, tr.Kind)
	assert.Equal(t, admin, tr.Identity)
	assert.Equal(t, totalFunds, tr.Amount)
	assert.Equal(t, int64(0), l.Balance())
	assert.False(t, l.Active())

	ops := []struct {
		name string
		call func() error
	}{
		{"Deposit", func() error { _, err := l.Deposit(admin, 1, at(epoch)); return err }},
		{"Withdraw", func() error { _, err := l.Withdraw(uuid.New(), 1, at(epoch)); return err }},
		{"SetLimit", func() error { return l.SetLimit(admin, 1) }},
		{"SetWindow", func() error { return l.SetWindow(admin, 0) }},
		{"SweepAll", func() error { _, err := l.SweepAll(admin, at(epoch)); return err }},
		{"Disable again", func() error { _, err := l.Disable(admin, at(epoch)); return err }},
		{"non-admin Disable", func() error { _, err := l.Disable(uuid.New(), at(epoch)); return err }},
	}
	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			require.ErrorIs(t, op.call(), domain.ErrDisabled)
		})
	}

	// observation keeps working
	assert.Equal(t, maxWithdrawal, l.MaxWithdrawal())
	assert.Equal(t, minWindow, l.MinWindow())
}

func TestSeq_IncreasesPerMovement(t *testing.T) {
	l, admin := newLedger(t)

	t1, err := l.Deposit(admin, 5000, at(epoch))
	require.NoError(t, err)
	t2, err := l.Withdraw(uuid.New(), 10, at(epoch))
	require.NoError(t, err)
	_, err = l.Withdraw(uuid.New(), maxWithdrawal+1, at(epoch))
	require.Error(t, err)
	t3, err := l.SweepAll(admin, at(epoch))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, []int64{t1.Seq, t2.Seq, t3.Seq})
}

func TestConcurrentWithdraw_SameCaller(t *testing.T) {
	l, _ := newFundedLedger(t)
	caller := uuid.New()

	const workers = 50
	var wg sync.WaitGroup
	var succeeded atomic.Int32

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Withdraw(caller, maxWithdrawal, at(epoch))
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrTooSoon)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, totalFunds-maxWithdrawal, l.Balance())
}

func TestConcurrentWithdraw_OneLimitOfFunds(t *testing.T) {
	l, admin := newLedger(t)
	_, err := l.Deposit(admin, maxWithdrawal, at(epoch))
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Withdraw(uuid.New(), maxWithdrawal, at(epoch))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientFunds):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, insufficient)
	assert.Equal(t, int64(0), l.Balance())
}

func TestConcurrentMixed_BalanceConserved(t *testing.T) {
	l, admin := newLedger(t)
	require.NoError(t, l.SetWindow(admin, 0))

	const workers = 20
	var wg sync.WaitGroup
	var deposited, withdrawn atomic.Int64

	for range workers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if tr, err := l.Deposit(uuid.New(), 300, at(epoch)); err == nil {
				deposited.Add(tr.Amount)
			}
		}()
		go func() {
			defer wg.Done()
			if tr, err := l.Withdraw(uuid.New(), 200, at(epoch)); err == nil {
				withdrawn.Add(tr.Amount)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, deposited.Load()-withdrawn.Load(), l.Balance())
	assert.GreaterOrEqual(t, l.Balance(), int64(0))
}

func TestConcurrentWithdraw_ZeroWindowSameCaller(t *testing.T) {
	admin := uuid.New()
	l, err := New(admin, maxWithdrawal, 0)
	require.NoError(t, err)
	clk := &stepClock{}
	_, err = l.Deposit(admin, totalFunds, clk)
	require.NoError(t, err)
	caller := uuid.New()

	const workers = 50
	var wg sync.WaitGroup
	receipts := make(chan *domain.Transfer, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := l.Withdraw(caller, 1, clk)
			if assert.NoError(t, err, "a zero window never rejects") {
				receipts <- tr
			}
		}()
	}
	wg.Wait()
	close(receipts)

	bySeq := make(map[int64]time.Time)
	for tr := range receipts {
		bySeq[tr.Seq] = tr.CreatedAt
	}
	require.Len(t, bySeq, workers)
	for seq := int64(3); seq <= workers+1; seq++ {
		assert.True(t, bySeq[seq].After(bySeq[seq-1]), "seq %d stamped before seq %d", seq, seq-1)
	}

	last, ok := l.LastWithdrawal(caller)
	require.True(t, ok)
	assert.Equal(t, bySeq[workers+1], last)
}
