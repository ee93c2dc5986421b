package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stablepath/remit-orchestrator/internal/domain"
)

func seedTransfer(createdAt time.Time) *domain.Transfer {
	quote := domain.TransferQuote{ID: uuid.New()}
	req := domain.TransferRequest{
		Sender:    domain.Party{Name: "Alice Sender"},
		Recipient: domain.Party{Name: "Bob Recipient"},
	}
	return domain.NewTransfer(uuid.New(), quote, req, createdAt)
}

func TestMemoryRepository_GetTransferNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	if _, err := repo.GetTransfer(context.Background(), uuid.New()); !errors.Is(err, ErrTransferNotFound) {
		t.Fatalf("expected ErrTransferNotFound, got %v", err)
	}
}

func TestMemoryRepository_CloneIsolation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	transfer := seedTransfer(time.Now())

	if err := repo.CreateTransfer(ctx, transfer); err != nil {
		t.Fatal(err)
	}
	// Mutating the caller's copy after storing must not touch the stored record.
	transfer.Status = domain.TransferStatusFailed

	got, err := repo.GetTransfer(ctx, transfer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TransferStatusPending {
		t.Fatalf("stored record mutated through caller's reference: %s", got.Status)
	}

	// Mutating a fetched copy must not touch the stored record either.
	got.Status = domain.TransferStatusCancelled
	again, _ := repo.GetTransfer(ctx, transfer.ID)
	if again.Status != domain.TransferStatusPending {
		t.Fatalf("stored record mutated through fetched reference: %s", again.Status)
	}
}

func TestMemoryRepository_UpdateTransferVersionConflict(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	transfer := seedTransfer(time.Now())
	if err := repo.CreateTransfer(ctx, transfer); err != nil {
		t.Fatal(err)
	}

	first, _ := repo.GetTransfer(ctx, transfer.ID)
	second, _ := repo.GetTransfer(ctx, transfer.ID)

	if err := first.Transition(domain.TransferStatusProcessing, "writer one", nil, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateTransfer(ctx, first); err != nil {
		t.Fatalf("first writer: %v", err)
	}
	if first.Version != 2 {
		t.Fatalf("winning writer's version should be bumped, got %d", first.Version)
	}

	if err := second.Transition(domain.TransferStatusFailed, "writer two", nil, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateTransfer(ctx, second); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale writer should get ErrVersionConflict, got %v", err)
	}

	got, _ := repo.GetTransfer(ctx, transfer.ID)
	if got.Status != domain.TransferStatusProcessing {
		t.Fatalf("stale writer overwrote the record: %s", got.Status)
	}
}

func TestMemoryRepository_UpdateTransferNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	transfer := seedTransfer(time.Now())
	if err := repo.UpdateTransfer(context.Background(), transfer); !errors.Is(err, ErrTransferNotFound) {
		t.Fatalf("expected ErrTransferNotFound, got %v", err)
	}
}

func TestMemoryRepository_ListTransfersNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Now()

	oldest := seedTransfer(base.Add(-2 * time.Hour))
	middle := seedTransfer(base.Add(-1 * time.Hour))
	newest := seedTransfer(base)
	for _, tr := range []*domain.Transfer{middle, oldest, newest} {
		if err := repo.CreateTransfer(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	out, err := repo.ListTransfers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 transfers, got %d", len(out))
	}
	if out[0].ID != newest.ID || out[2].ID != oldest.ID {
		t.Fatal("transfers not ordered newest first")
	}
}

func TestMemoryRepository_QuoteLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	live := &domain.TransferQuote{ID: uuid.New(), ExpiresAt: now.Add(5 * time.Minute)}
	expired := &domain.TransferQuote{ID: uuid.New(), ExpiresAt: now.Add(-1 * time.Minute)}
	for _, q := range []*domain.TransferQuote{live, expired} {
		if err := repo.SaveQuote(ctx, q); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := repo.GetQuote(ctx, uuid.New()); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound, got %v", err)
	}

	pruned, err := repo.DeleteExpiredQuotes(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned quote, got %d", pruned)
	}
	if _, err := repo.GetQuote(ctx, live.ID); err != nil {
		t.Fatalf("live quote should survive the sweep: %v", err)
	}
	if _, err := repo.GetQuote(ctx, expired.ID); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("expired quote should be gone, got %v", err)
	}
}
