package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stablepath/remit-orchestrator/internal/domain"
	"github.com/stablepath/remit-orchestrator/internal/store"
)

func commitTestTransfer(t *testing.T, svc *Service) *domain.Transfer {
	t.Helper()
	quote := mustQuote(t, svc)
	transfer, err := svc.CreateTransfer(context.Background(), CreateTransferRequest{
		QuoteID: quote.ID,
		Request: testTransferRequest(),
	})
	if err != nil {
		t.Fatalf("commit transfer: %v", err)
	}
	return transfer
}

func TestWebhookFlow_HappyPathToCompleted(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)
	ctx := context.Background()

	transfer := commitTestTransfer(t, svc)

	if err := svc.HandleCollectionWebhook(ctx, transfer.ID, domain.CollectionWebhookEvent{
		Status: "settled",
		Amount: 1000,
	}); err != nil {
		t.Fatalf("collection webhook: %v", err)
	}
	got, _ := repo.GetTransfer(ctx, transfer.ID)
	if got.Status != domain.TransferStatusBridging {
		t.Fatalf("after collection settled: %s, want bridging", got.Status)
	}
	if got.Leg(domain.LegCollection).Status != domain.LegStateCompleted {
		t.Fatal("collection leg should be completed")
	}
	if got.Leg(domain.LegConversion).Status != domain.LegStateProcessing {
		t.Fatal("conversion leg should be processing once funds bridge")
	}

	if err := svc.HandleConversionWebhook(ctx, transfer.ID, domain.ConversionWebhookEvent{
		Status:           "processed",
		TxHash:           "0xabc123",
		StablecoinAmount: 992.01,
		Stablecoin:       "USDC",
	}); err != nil {
		t.Fatalf("conversion webhook: %v", err)
	}
	got, _ = repo.GetTransfer(ctx, transfer.ID)
	if got.Status != domain.TransferStatusSettling {
		t.Fatalf("after conversion processed: %s, want settling", got.Status)
	}
	convLeg := got.Leg(domain.LegConversion)
	if convLeg.Status != domain.LegStateCompleted || convLeg.TxHash == nil || *convLeg.TxHash != "0xabc123" {
		t.Fatalf("conversion leg should be completed with tx hash, got %+v", convLeg)
	}
	if got.Leg(domain.LegPayout).Status != domain.LegStateProcessing {
		t.Fatal("payout leg should be processing after initiation")
	}
	if len(payout.initiated) != 1 {
		t.Fatalf("expected one payout initiation, got %d", len(payout.initiated))
	}
	if payout.initiated[0].StablecoinAmount != 992.01 {
		t.Fatalf("payout must use the confirmed stablecoin amount, got %v", payout.initiated[0].StablecoinAmount)
	}

	if err := svc.HandlePayoutWebhook(ctx, transfer.ID, domain.PayoutWebhookEvent{Status: "settled"}); err != nil {
		t.Fatalf("payout webhook: %v", err)
	}
	got, _ = repo.GetTransfer(ctx, transfer.ID)
	if got.Status != domain.TransferStatusCompleted {
		t.Fatalf("final status %s, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("completedAt must be stamped")
	}
	for leg := domain.LegCollection; leg <= domain.LegPayout; leg++ {
		if got.Leg(leg).Status != domain.LegStateCompleted {
			t.Fatalf("%s leg is %s, want completed", leg, got.Leg(leg).Status)
		}
	}

	// The timeline is the audit trail: strictly increasing timestamps and a
	// terminal event carrying the completed status.
	for i := 1; i < len(got.Timeline); i++ {
		if !got.Timeline[i].Timestamp.After(got.Timeline[i-1].Timestamp) {
			t.Fatalf("timeline not strictly increasing at index %d", i)
		}
	}
	last := got.Timeline[len(got.Timeline)-1]
	if last.Status != domain.TransferStatusCompleted {
		t.Fatalf("last timeline event is %s, want completed", last.Status)
	}
}

func TestHandleCollectionWebhook_UnknownTransfer(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)

	err := svc.HandleCollectionWebhook(context.Background(), uuid.New(), domain.CollectionWebhookEvent{Status: "settled"})
	if !errors.Is(err, store.ErrTransferNotFound) {
		t.Fatalf("expected ErrTransferNotFound, got %v", err)
	}
}

func TestHandleCollectionWebhook_LegNeverInitiated(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)
	quote := mustQuote(t, svc)

	transfer := domain.NewTransfer(uuid.New(), *quote, testTransferRequest(), svc.now())
	if err := repo.CreateTransfer(context.Background(), transfer); err != nil {
		t.Fatal(err)
	}

	err := svc.HandleCollectionWebhook(context.Background(), transfer.ID, domain.CollectionWebhookEvent{Status: "settled"})
	if !errors.Is(err, ErrUnexpectedWebhook) {
		t.Fatalf("expected ErrUnexpectedWebhook, got %v", err)
	}
}

func TestHandleCollectionWebhook_UnknownStatusAcknowledged(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)
	ctx := context.Background()

	transfer := commitTestTransfer(t, svc)

	if err := svc.HandleCollectionWebhook(ctx, transfer.ID, domain.CollectionWebhookEvent{Status: "awaiting_review"}); err != nil {
		t.Fatalf("unknown status should be acknowledged, got %v", err)
	}
	got, _ := repo.GetTransfer(ctx, transfer.ID)
	if got.Status != domain.TransferStatusProcessing {
		t.Fatalf("status mutated by unknown webhook: %s", got.Status)
	}
}

func TestHandleCollectionWebhook_DuplicateDelivery(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)
	ctx := context.Background()

	transfer := commitTestTransfer(t, svc)

	if err := svc.HandleCollectionWebhook(ctx, transfer.ID, domain.CollectionWebhookEvent{Status: "settled"}); err != nil {
		t.Fatal(err)
	}
	before, _ := repo.GetTransfer(ctx, transfer.ID)

	if err := svc.HandleCollectionWebhook(ctx, transfer.ID, domain.CollectionWebhookEvent{Status: "settled"}); err != nil {
		t.Fatalf("duplicate delivery must be acknowledged, got %v", err)
	}
	after, _ := repo.GetTransfer(ctx, transfer.ID)
	if len(after.Timeline) != len(before.Timeline) {
		t.Fatal("duplicate delivery must not append timeline events")
	}
	if after.Version != before.Version {
		t.Fatal("duplicate delivery must not write to the store")
	}
}

func TestHandleCollectionWebhook_Failure(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)
	ctx := context.Background()

	transfer := commitTestTransfer(t, svc)

	if err := svc.HandleCollectionWebhook(ctx, transfer.ID, domain.CollectionWebhookEvent{
		Status: "failed",
		Reason: "card declined",
	}); err != nil {
		t.Fatal(err)
	}
	got, _ := repo.GetTransfer(ctx, transfer.ID)
	if got.Status != domain.TransferStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	leg := got.Leg(domain.LegCollection)
	if leg.Status != domain.LegStateFailed || leg.ErrorMessage == nil || *leg.ErrorMessage != "card declined" {
		t.Fatalf("collection leg should carry the failure reason, got %+v", leg)
	}
}

func TestHandleConversionWebhook_PayoutInitiationFailure(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	payout.initiateErr = errors.New("payout provider 500")
	svc := newTestService(repo, collection, conversion, payout)
	ctx := context.Background()

	transfer := commitTestTransfer(t, svc)
	if err := svc.HandleCollectionWebhook(ctx, transfer.ID, domain.CollectionWebhookEvent{Status: "settled"}); err != nil {
		t.Fatal(err)
	}

	err := svc.HandleConversionWebhook(ctx, transfer.ID, domain.ConversionWebhookEvent{
		Status: "processed",
		TxHash: "0xdeadbeef",
	})
	if !errors.Is(err, ErrLegInitiation) {
		t.Fatalf("expected ErrLegInitiation, got %v", err)
	}

	got, _ := repo.GetTransfer(ctx, transfer.ID)
	if got.Status != domain.TransferStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	// Leg 2 succeeded and its record stays intact; leg 3 never started.
	convLeg := got.Leg(domain.LegConversion)
	if convLeg.Status != domain.LegStateCompleted || convLeg.TxHash == nil || *convLeg.TxHash != "0xdeadbeef" {
		t.Fatalf("conversion success must be preserved, got %+v", convLeg)
	}
	if got.Leg(domain.LegPayout) != nil {
		t.Fatal("payout leg must not exist when initiation never succeeded")
	}

	// The event was fully processed; a provider retry is a duplicate, not a
	// second payout attempt.
	if err := svc.HandleConversionWebhook(ctx, transfer.ID, domain.ConversionWebhookEvent{
		Status: "processed",
		TxHash: "0xdeadbeef",
	}); err != nil {
		t.Fatalf("retry should be acknowledged as terminal/duplicate, got %v", err)
	}
}

func TestHandleConversionWebhook_FallsBackToQuotedStablecoinAmount(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)
	ctx := context.Background()

	transfer := commitTestTransfer(t, svc)
	if err := svc.HandleCollectionWebhook(ctx, transfer.ID, domain.CollectionWebhookEvent{Status: "settled"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleConversionWebhook(ctx, transfer.ID, domain.ConversionWebhookEvent{Status: "processed"}); err != nil {
		t.Fatal(err)
	}

	if len(payout.initiated) != 1 {
		t.Fatalf("expected one payout initiation, got %d", len(payout.initiated))
	}
	if got, want := payout.initiated[0].StablecoinAmount, transfer.Quote.StablecoinAmount; got != want {
		t.Fatalf("payout amount %v, want quoted %v", got, want)
	}
}

func TestHandlePayoutWebhook_TerminalTransferAcknowledged(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)
	ctx := context.Background()

	transfer := commitTestTransfer(t, svc)
	if err := svc.HandleCollectionWebhook(ctx, transfer.ID, domain.CollectionWebhookEvent{Status: "settled"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleConversionWebhook(ctx, transfer.ID, domain.ConversionWebhookEvent{Status: "processed"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandlePayoutWebhook(ctx, transfer.ID, domain.PayoutWebhookEvent{Status: "settled"}); err != nil {
		t.Fatal(err)
	}

	// A late failed replay after completion is a no-op acknowledgement.
	if err := svc.HandlePayoutWebhook(ctx, transfer.ID, domain.PayoutWebhookEvent{Status: "failed", Reason: "late replay"}); err != nil {
		t.Fatalf("late replay must be acknowledged, got %v", err)
	}
	got, _ := repo.GetTransfer(ctx, transfer.ID)
	if got.Status != domain.TransferStatusCompleted {
		t.Fatalf("late replay mutated status to %s", got.Status)
	}
}

func TestNormalizeStatusVocabularies(t *testing.T) {
	if got := normalizeCollectionStatus("Payment_Settled"); got != outcomeSettled {
		t.Fatalf("collection payment_settled -> %q", got)
	}
	if got := normalizeCollectionStatus("expired"); got != outcomeFailed {
		t.Fatalf("collection expired -> %q", got)
	}
	if got := normalizeConversionStatus("confirmed"); got != outcomeSettled {
		t.Fatalf("conversion confirmed -> %q", got)
	}
	if got := normalizePayoutStatus("rejected"); got != outcomeFailed {
		t.Fatalf("payout rejected -> %q", got)
	}
	if got := normalizePayoutStatus("on_hold"); got != "" {
		t.Fatalf("unknown payout status -> %q, want empty", got)
	}
}
