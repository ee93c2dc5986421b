package app

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stablepath/remit-orchestrator/internal/domain"
	"github.com/stablepath/remit-orchestrator/internal/store"
)

func TestGetTransferQuote_ChainsLegsInPipelineOrder(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)

	quote := mustQuote(t, svc)

	// send 1000 USD, collection fee 5, conversion rate 0.998 fee 1,
	// payout fee 2 rate 56. Fees and rates compound through the chain.
	stablecoin := (1000-5)*0.998 - 1
	receive := (stablecoin - 2) * 56

	if got, want := quote.StablecoinAmount, round2(stablecoin); got != want {
		t.Fatalf("stablecoin amount %v, want %v", got, want)
	}
	if got, want := quote.ReceiveAmount, round2(receive); got != want {
		t.Fatalf("receive amount %v, want %v", got, want)
	}
	if got, want := quote.ExchangeRate, round6(receive/1000); got != want {
		t.Fatalf("exchange rate %v, want %v", got, want)
	}

	// Platform fee is 50 bps of the send amount; stablecoin fees are reported
	// in the send currency via the conversion rate.
	wantTotal := round2(5 + 1/0.998 + 2/0.998 + 5.0)
	if math.Abs(quote.TotalFees-wantTotal) > 1e-9 {
		t.Fatalf("total fees %v, want %v", quote.TotalFees, wantTotal)
	}
	if len(quote.Fees) != 4 {
		t.Fatalf("expected 4 fee lines, got %d", len(quote.Fees))
	}
	for _, line := range quote.Fees {
		if line.Currency != "USD" {
			t.Fatalf("fee line %s reported in %s, want USD", line.Label, line.Currency)
		}
	}

	if len(quote.Route.Legs) != 3 {
		t.Fatalf("expected 3 route legs, got %d", len(quote.Route.Legs))
	}
	if quote.Route.Network != "solana" || quote.Route.Stablecoin != "USDC" {
		t.Fatalf("USD corridor should route solana/USDC, got %s/%s", quote.Route.Network, quote.Route.Stablecoin)
	}
	if !quote.ExpiresAt.After(quote.CreatedAt) {
		t.Fatal("quote must carry an expiry after its creation time")
	}
}

func TestGetTransferQuote_AllOrNothing(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	payout.quoteErr = errors.New("corridor offline")
	svc := newTestService(repo, collection, conversion, payout)

	_, err := svc.GetTransferQuote(context.Background(), domain.QuoteRequest{
		SendAmount:      1000,
		SendCurrency:    "USD",
		ReceiveCurrency: "PHP",
		SendCountry:     "US",
		ReceiveCountry:  "PH",
	})
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestGetTransferQuote_Validation(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)

	cases := []struct {
		name string
		req  domain.QuoteRequest
	}{
		{"zero amount", domain.QuoteRequest{SendAmount: 0, SendCurrency: "USD", ReceiveCurrency: "PHP", SendCountry: "US", ReceiveCountry: "PH"}},
		{"negative amount", domain.QuoteRequest{SendAmount: -10, SendCurrency: "USD", ReceiveCurrency: "PHP", SendCountry: "US", ReceiveCountry: "PH"}},
		{"bad currency code", domain.QuoteRequest{SendAmount: 100, SendCurrency: "US", ReceiveCurrency: "PHP", SendCountry: "US", ReceiveCountry: "PH"}},
		{"missing country", domain.QuoteRequest{SendAmount: 100, SendCurrency: "USD", ReceiveCurrency: "PHP", SendCountry: "", ReceiveCountry: "PH"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.GetTransferQuote(context.Background(), tc.req); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestGetTransferQuote_FeesExceedAmount(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	collection.quote.Fee = 150
	svc := newTestService(repo, collection, conversion, payout)

	_, err := svc.GetTransferQuote(context.Background(), domain.QuoteRequest{
		SendAmount:      100,
		SendCurrency:    "USD",
		ReceiveCurrency: "PHP",
		SendCountry:     "US",
		ReceiveCountry:  "PH",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation when fees swallow the amount, got %v", err)
	}
}

func TestGetTransferQuote_PersistsForLaterCommit(t *testing.T) {
	repo := store.NewMemoryRepository()
	collection, conversion, payout := defaultStubs()
	svc := newTestService(repo, collection, conversion, payout)

	quote := mustQuote(t, svc)

	stored, err := repo.GetQuote(context.Background(), quote.ID)
	if err != nil {
		t.Fatalf("stored quote: %v", err)
	}
	if stored.ReceiveAmount != quote.ReceiveAmount {
		t.Fatalf("stored quote differs: %v vs %v", stored.ReceiveAmount, quote.ReceiveAmount)
	}
}

func TestDefaultRoutePolicy(t *testing.T) {
	if network, coin := DefaultRoutePolicy("USD"); network != "solana" || coin != "USDC" {
		t.Fatalf("USD routed %s/%s", network, coin)
	}
	if network, coin := DefaultRoutePolicy("EUR"); network != "polygon" || coin != "USDT" {
		t.Fatalf("EUR routed %s/%s", network, coin)
	}
}
