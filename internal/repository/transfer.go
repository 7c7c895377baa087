package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/faucet-ledger/internal/domain"
)

const transferColumns = `id, seq, kind, identity, amount, balance_before, balance_after, created_at`

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, t *domain.Transfer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transfers (`+transferColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Seq, t.Kind, t.Identity, t.Amount,
		t.BalanceBefore, t.BalanceAfter, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id,
	)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// GetByIdentity returns the identity's transfers newest first, plus the
// total count for pagination.
func (r *TransferRepository) GetByIdentity(ctx context.Context, identity uuid.UUID, limit, offset int) ([]domain.Transfer, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transfers WHERE identity = $1`, identity,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByIdentity: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transferColumns+` FROM transfers
		WHERE identity = $1 ORDER BY created_at DESC, seq DESC LIMIT $2 OFFSET $3`,
		identity, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByIdentity: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("GetByIdentity: scan: %w", err)
		}
		transfers = append(transfers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("GetByIdentity: rows: %w", err)
	}
	return transfers, total, nil
}

func scanTransfer(s scanner) (*domain.Transfer, error) {
	var t domain.Transfer
	err := s.Scan(
		&t.ID, &t.Seq, &t.Kind, &t.Identity, &t.Amount,
		&t.BalanceBefore, &t.BalanceAfter, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
