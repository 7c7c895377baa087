package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/faucet-ledger/internal/domain"
)

// MemoryTransferRepository keeps the transfer journal in process memory.
// Used when no DATABASE_URL is configured and in unit tests.
type MemoryTransferRepository struct {
	mu        sync.Mutex
	transfers []domain.Transfer
}

func NewMemoryTransferRepository() *MemoryTransferRepository {
	return &MemoryTransferRepository{}
}

func (m *MemoryTransferRepository) Create(_ context.Context, t *domain.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transfers = append(m.transfers, *t)
	return nil
}

func (m *MemoryTransferRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.transfers {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
}

func (m *MemoryTransferRepository) GetByIdentity(_ context.Context, identity uuid.UUID, limit, offset int) ([]domain.Transfer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.Transfer
	for _, t := range m.transfers {
		if t.Identity == identity {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Seq > matched[j].Seq
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	page := make([]domain.Transfer, end-offset)
	copy(page, matched[offset:end])
	return page, total, nil
}

type idempotencyKey struct {
	key      string
	identity uuid.UUID
}

// MemoryIdempotencyRepository is the in-process replay cache.
type MemoryIdempotencyRepository struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[idempotencyKey]IdempotencyCacheEntry
}

func NewMemoryIdempotencyRepository(now func() time.Time) *MemoryIdempotencyRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryIdempotencyRepository{
		now:     now,
		entries: make(map[idempotencyKey]IdempotencyCacheEntry),
	}
}

func (m *MemoryIdempotencyRepository) Get(_ context.Context, key string, identity uuid.UUID) (*IdempotencyCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[idempotencyKey{key, identity}]
	if !ok || !e.ExpiresAt.After(m.now()) {
		return nil, nil
	}
	e.ResponseBody = append([]byte(nil), e.ResponseBody...)
	return &e, nil
}

// Reserve inserts a pending entry unless a live one already holds the key.
func (m *MemoryIdempotencyRepository) Reserve(_ context.Context, entry *IdempotencyCacheEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := idempotencyKey{entry.Key, entry.Identity}
	if existing, ok := m.entries[k]; ok && existing.ExpiresAt.After(m.now()) {
		return false, nil
	}
	e := *entry
	e.StatusCode = 0
	e.ResponseBody = nil
	m.entries[k] = e
	return true, nil
}

// Set stores a completed response. A live entry is only replaced when it is
// the pending reservation for the same request.
func (m *MemoryIdempotencyRepository) Set(_ context.Context, entry *IdempotencyCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := idempotencyKey{entry.Key, entry.Identity}
	if existing, ok := m.entries[k]; ok && existing.ExpiresAt.After(m.now()) {
		if !existing.Pending() || existing.RequestHash != entry.RequestHash {
			return nil
		}
	}
	e := *entry
	e.ResponseBody = append([]byte(nil), entry.ResponseBody...)
	m.entries[k] = e
	return nil
}

// Release drops a pending reservation so the key can be used again.
func (m *MemoryIdempotencyRepository) Release(_ context.Context, key string, identity uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := idempotencyKey{key, identity}
	if existing, ok := m.entries[k]; ok && existing.Pending() {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryIdempotencyRepository) CleanExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for k, e := range m.entries {
		if !e.ExpiresAt.After(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}
