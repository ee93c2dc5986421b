/**
 * @description
 * In-memory Repository implementation. The default store when no DATABASE_URL
 * is configured, and the store used throughout the test suite. Records are
 * cloned on the way in and out so callers never share mutable state with the
 * map, and UpdateTransfer enforces the same compare-and-set discipline as the
 * PostgreSQL implementation.
 */

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stablepath/remit-orchestrator/internal/domain"
)

// MemoryRepository keeps transfers and quotes in process-local maps.
type MemoryRepository struct {
	mu        sync.RWMutex
	transfers map[uuid.UUID]*domain.Transfer
	quotes    map[uuid.UUID]*domain.TransferQuote
}

// NewMemoryRepository returns an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		transfers: make(map[uuid.UUID]*domain.Transfer),
		quotes:    make(map[uuid.UUID]*domain.TransferQuote),
	}
}

// CreateTransfer stores a new transfer record.
func (r *MemoryRepository) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[transfer.ID] = transfer.Clone()
	return nil
}

// GetTransfer returns a clone of the stored transfer or ErrTransferNotFound.
func (r *MemoryRepository) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transfers[id]
	if !ok {
		return nil, ErrTransferNotFound
	}
	return t.Clone(), nil
}

// ListTransfers returns all transfers ordered by creation time, newest first.
func (r *MemoryRepository) ListTransfers(ctx context.Context) ([]domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Transfer, 0, len(r.transfers))
	for _, t := range r.transfers {
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateTransfer replaces the stored record if the caller holds the current
// version. The stored version is bumped so a concurrent stale writer fails.
func (r *MemoryRepository) UpdateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.transfers[transfer.ID]
	if !ok {
		return ErrTransferNotFound
	}
	if current.Version != transfer.Version {
		return ErrVersionConflict
	}
	next := transfer.Clone()
	next.Version++
	r.transfers[transfer.ID] = next
	transfer.Version = next.Version
	return nil
}

// SaveQuote stores a quote for later commit.
func (r *MemoryRepository) SaveQuote(ctx context.Context, quote *domain.TransferQuote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := *quote
	r.quotes[quote.ID] = &q
	return nil
}

// GetQuote returns the stored quote or ErrQuoteNotFound.
func (r *MemoryRepository) GetQuote(ctx context.Context, id uuid.UUID) (*domain.TransferQuote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quotes[id]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	out := *q
	return &out, nil
}

// DeleteExpiredQuotes removes quotes whose expiry has passed and reports how
// many were pruned.
func (r *MemoryRepository) DeleteExpiredQuotes(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pruned int64
	for id, q := range r.quotes {
		if q.Expired(now) {
			delete(r.quotes, id)
			pruned++
		}
	}
	return pruned, nil
}
