package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/faucet-ledger/internal/clock"
	"github.com/josh-kwaku/faucet-ledger/internal/domain"
	"github.com/josh-kwaku/faucet-ledger/internal/faucet"
	"github.com/josh-kwaku/faucet-ledger/internal/logging"
)

type FaucetService struct {
	ledger    *faucet.Ledger
	clock     clock.Clock
	transfers transferJournal
	publisher eventPublisher
}

func NewFaucetService(ledger *faucet.Ledger, clk clock.Clock, transfers transferJournal) *FaucetService {
	return &FaucetService{
		ledger:    ledger,
		clock:     clk,
		transfers: transfers,
	}
}

// WithPublisher makes the service emit an event for every journaled transfer.
func (s *FaucetService) WithPublisher(p eventPublisher) *FaucetService {
	s.publisher = p
	return s
}

func (s *FaucetService) Deposit(ctx context.Context, from uuid.UUID, amount int64) (*domain.Transfer, error) {
	t, err := s.ledger.Deposit(from, amount, s.clock)
	if err != nil {
		logging.FromContext(ctx).Warn("deposit rejected", "identity", from, "amount", amount, "error", err)
		return nil, fmt.Errorf("Deposit: %w", err)
	}

	logging.FromContext(ctx).Info("deposit completed",
		"transfer_id", t.ID,
		"identity", from,
		"amount", amount,
		"balance_after", t.BalanceAfter,
	)
	s.record(ctx, t)
	return t, nil
}

func (s *FaucetService) Withdraw(ctx context.Context, caller uuid.UUID, amount int64) (*domain.Transfer, error) {
	t, err := s.ledger.Withdraw(caller, amount, s.clock)
	if err != nil {
		logging.FromContext(ctx).Warn("withdrawal rejected", "identity", caller, "amount", amount, "error", err)
		return nil, fmt.Errorf("Withdraw: %w", err)
	}

	logging.FromContext(ctx).Info("withdrawal completed",
		"transfer_id", t.ID,
		"identity", caller,
		"amount", amount,
		"balance_after", t.BalanceAfter,
	)
	s.record(ctx, t)
	return t, nil
}

func (s *FaucetService) SetLimit(ctx context.Context, caller uuid.UUID, limit int64) error {
	previous := s.ledger.MaxWithdrawal()
	if err := s.ledger.SetLimit(caller, limit); err != nil {
		logging.FromContext(ctx).Warn("set limit rejected", "identity", caller, "limit", limit, "error", err)
		return fmt.Errorf("SetLimit: %w", err)
	}

	logging.FromContext(ctx).Info("withdrawal limit changed", "identity", caller, "previous", previous, "limit", limit)
	return nil
}

func (s *FaucetService) SetWindow(ctx context.Context, caller uuid.UUID, window time.Duration) error {
	previous := s.ledger.MinWindow()
	if err := s.ledger.SetWindow(caller, window); err != nil {
		logging.FromContext(ctx).Warn("set window rejected", "identity", caller, "window", window, "error", err)
		return fmt.Errorf("SetWindow: %w", err)
	}

	logging.FromContext(ctx).Info("cooldown window changed", "identity", caller, "previous", previous, "window", window)
	return nil
}

func (s *FaucetService) SweepAll(ctx context.Context, caller uuid.UUID) (*domain.Transfer, error) {
	t, err := s.ledger.SweepAll(caller, s.clock)
	if err != nil {
		logging.FromContext(ctx).Warn("sweep rejected", "identity", caller, "error", err)
		return nil, fmt.Errorf("SweepAll: %w", err)
	}

	logging.FromContext(ctx).Info("faucet swept", "transfer_id", t.ID, "amount", t.Amount)
	s.record(ctx, t)
	return t, nil
}

func (s *FaucetService) Disable(ctx context.Context, caller uuid.UUID) (*domain.Transfer, error) {
	t, err := s.ledger.Disable(caller, s.clock)
	if err != nil {
		logging.FromContext(ctx).Warn("disable rejected", "identity", caller, "error", err)
		return nil, fmt.Errorf("Disable: %w", err)
	}

	logging.FromContext(ctx).Info("faucet disabled", "transfer_id", t.ID, "returned", t.Amount)
	s.record(ctx, t)
	return t, nil
}

func (s *FaucetService) State(_ context.Context) domain.FaucetState {
	return s.ledger.Snapshot()
}

func (s *FaucetService) MaxWithdrawal(_ context.Context) int64 {
	return s.ledger.MaxWithdrawal()
}

func (s *FaucetService) MinWindow(_ context.Context) time.Duration {
	return s.ledger.MinWindow()
}

// Eligibility reports when the caller may next withdraw. A caller that has
// never withdrawn, or whose cooldown has passed, is eligible now.
func (s *FaucetService) Eligibility(_ context.Context, caller uuid.UUID) Eligibility {
	now := s.clock.Now()
	next, ok := s.ledger.NextEligible(caller)
	if !ok || !next.After(now) {
		return Eligibility{Eligible: true, Now: now}
	}
	return Eligibility{Eligible: false, Now: now, NextAt: next}
}

type Eligibility struct {
	Eligible bool
	Now      time.Time
	NextAt   time.Time
}

// RetryAfter is how long the caller must wait, zero when eligible.
func (e Eligibility) RetryAfter() time.Duration {
	if e.Eligible {
		return 0
	}
	return e.NextAt.Sub(e.Now)
}

func (s *FaucetService) Transfers(ctx context.Context, identity uuid.UUID, limit, offset int) ([]domain.Transfer, int, error) {
	transfers, total, err := s.transfers.GetByIdentity(ctx, identity, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("Transfers: %w", err)
	}
	return transfers, total, nil
}

// record journals and publishes a committed transfer. The ledger has already
// moved the funds, so failures here are logged rather than returned.
func (s *FaucetService) record(ctx context.Context, t *domain.Transfer) {
	log := logging.FromContext(ctx)

	if err := s.transfers.Create(ctx, t); err != nil {
		log.Error("failed to journal transfer", "transfer_id", t.ID, "seq", t.Seq, "kind", t.Kind, "error", err)
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransfer(ctx, t); err != nil {
		log.Error("failed to publish transfer event", "transfer_id", t.ID, "seq", t.Seq, "error", err)
	}
}
