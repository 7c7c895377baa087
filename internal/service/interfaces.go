package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/josh-kwaku/faucet-ledger/internal/domain"
)

type transferJournal interface {
	Create(ctx context.Context, t *domain.Transfer) error
	GetByIdentity(ctx context.Context, identity uuid.UUID, limit, offset int) ([]domain.Transfer, int, error)
}

type eventPublisher interface {
	PublishTransfer(ctx context.Context, t *domain.Transfer) error
}
