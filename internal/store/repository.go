/**
 * @description
 * This file defines the `Repository` interface, the contract for all durable
 * state the orchestrator keeps: transfer records and the quotes they are
 * committed from. Defining an interface decouples the business logic from the
 * backing store (in-memory or PostgreSQL) and keeps the service testable.
 *
 * Concurrency contract: UpdateTransfer is compare-and-set on the record's
 * version counter. A stale write returns ErrVersionConflict so the caller can
 * reload and retry; combined with the dispatcher's per-transfer lock this
 * linearizes all mutations of one transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stablepath/remit-orchestrator/internal/domain"
)

var (
	// ErrTransferNotFound signals a lookup for an unknown transfer id. This is a
	// normal, expected outcome, distinct from a system error.
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrQuoteNotFound signals a commit against an unknown quote id.
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrVersionConflict signals a compare-and-set update that lost a race.
	ErrVersionConflict = errors.New("transfer version conflict")
)

// Repository is the set of operations the orchestrator needs from its store.
type Repository interface {
	// Transfer records. Transfers are retained indefinitely; no deletion path.
	CreateTransfer(ctx context.Context, transfer *domain.Transfer) error
	GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	ListTransfers(ctx context.Context) ([]domain.Transfer, error)
	UpdateTransfer(ctx context.Context, transfer *domain.Transfer) error

	// Quote records, kept until committed or expired.
	SaveQuote(ctx context.Context, quote *domain.TransferQuote) error
	GetQuote(ctx context.Context, id uuid.UUID) (*domain.TransferQuote, error)
	DeleteExpiredQuotes(ctx context.Context, now time.Time) (int64, error)
}
