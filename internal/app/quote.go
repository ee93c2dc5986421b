/**
 * @description
 * Quote aggregation: fans out to the three providers concurrently, then chains
 * the leg quotes into one end-to-end priced offer. Quoting is all-or-nothing;
 * if any leg quote fails the whole request fails and partial results are
 * discarded. The computation is purely functional given the three adapter
 * responses, with rounding applied only at the reporting boundary.
 */

package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/stablepath/remit-orchestrator/internal/domain"
	"golang.org/x/sync/errgroup"
)

// RoutePolicy deterministically selects the settlement network and intermediate
// stablecoin for a source currency.
type RoutePolicy func(sendCurrency string) (network, stablecoin string)

// DefaultRoutePolicy routes USD corridors over Solana/USDC and everything else
// over Polygon/USDT, matching current liquidity on the conversion provider.
func DefaultRoutePolicy(sendCurrency string) (string, string) {
	if sendCurrency == "USD" {
		return "solana", "USDC"
	}
	return "polygon", "USDT"
}

// GetTransferQuote prices a corridor end to end and stores the quote for a
// later commit. The quote expires after the configured window.
func (s *Service) GetTransferQuote(ctx context.Context, req domain.QuoteRequest) (*domain.TransferQuote, error) {
	if req.SendAmount <= 0 {
		return nil, fmt.Errorf("%w: send amount must be positive", ErrValidation)
	}
	sendCurrency := strings.ToUpper(strings.TrimSpace(req.SendCurrency))
	receiveCurrency := strings.ToUpper(strings.TrimSpace(req.ReceiveCurrency))
	if len(sendCurrency) != 3 || len(receiveCurrency) != 3 {
		return nil, fmt.Errorf("%w: currencies must be 3-letter codes", ErrValidation)
	}
	if strings.TrimSpace(req.SendCountry) == "" || strings.TrimSpace(req.ReceiveCountry) == "" {
		return nil, fmt.Errorf("%w: send and receive countries are required", ErrValidation)
	}

	network, stablecoin := s.routePolicy(sendCurrency)

	// Fan out the three leg quotes; the first failure cancels the rest and the
	// aggregate request fails fast.
	var collectionQuote, conversionQuote, payoutQuote *domain.LegQuote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := s.collection.Quote(gctx, req.SendAmount, sendCurrency, req.SendCountry)
		if err != nil {
			return fmt.Errorf("collection quote: %w", err)
		}
		collectionQuote = q
		return nil
	})
	g.Go(func() error {
		q, err := s.conversion.Quote(gctx, req.SendAmount, sendCurrency, stablecoin, network)
		if err != nil {
			return fmt.Errorf("conversion quote: %w", err)
		}
		conversionQuote = q
		return nil
	})
	g.Go(func() error {
		q, err := s.payout.Quote(gctx, req.SendAmount, stablecoin, receiveCurrency, req.ReceiveCountry)
		if err != nil {
			return fmt.Errorf("payout quote: %w", err)
		}
		payoutQuote = q
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	// Chain amounts in pipeline order: fees and rates compound, they do not
	// average. No intermediate rounding.
	afterCollection := req.SendAmount - collectionQuote.Fee
	if afterCollection <= 0 {
		return nil, fmt.Errorf("%w: send amount does not cover the collection fee", ErrValidation)
	}
	stablecoinAmount := afterCollection*conversionQuote.Rate - conversionQuote.Fee
	receiveAmount := (stablecoinAmount - payoutQuote.Fee) * payoutQuote.Rate
	if receiveAmount <= 0 {
		return nil, fmt.Errorf("%w: send amount does not cover the corridor fees", ErrValidation)
	}

	// Platform fee is a basis-point take of the send amount, on top of the
	// provider fees. Stablecoin-denominated fees are normalized back to the
	// send currency via the conversion rate for reporting only.
	platformFee := req.SendAmount * float64(s.platformFeeBps) / 10000.0
	conversionFeeInSend := conversionQuote.Fee / conversionQuote.Rate
	payoutFeeInSend := payoutQuote.Fee / conversionQuote.Rate
	totalFees := collectionQuote.Fee + conversionFeeInSend + payoutFeeInSend + platformFee

	now := s.now()
	quote := &domain.TransferQuote{
		ID: uuid.New(),
		Route: domain.TransferRoute{
			SendCurrency:    sendCurrency,
			ReceiveCurrency: receiveCurrency,
			SendCountry:     req.SendCountry,
			ReceiveCountry:  req.ReceiveCountry,
			Network:         network,
			Stablecoin:      stablecoin,
			Legs: []domain.RouteLeg{
				{Leg: domain.LegCollection, Provider: collectionQuote.Provider, Method: "bank_collection", EstimatedSeconds: collectionQuote.EstimatedSeconds, Fee: round2(collectionQuote.Fee)},
				{Leg: domain.LegConversion, Provider: conversionQuote.Provider, Method: network, EstimatedSeconds: conversionQuote.EstimatedSeconds, Fee: round2(conversionQuote.Fee)},
				{Leg: domain.LegPayout, Provider: payoutQuote.Provider, Method: "local_payout", EstimatedSeconds: payoutQuote.EstimatedSeconds, Fee: round2(payoutQuote.Fee)},
			},
		},
		SendAmount:       round2(req.SendAmount),
		ReceiveAmount:    round2(receiveAmount),
		StablecoinAmount: round2(stablecoinAmount),
		ExchangeRate:     round6(receiveAmount / req.SendAmount),
		Fees: []domain.FeeLine{
			{Label: "collection_fee", Amount: round2(collectionQuote.Fee), Currency: sendCurrency},
			{Label: "conversion_fee", Amount: round2(conversionFeeInSend), Currency: sendCurrency},
			{Label: "payout_fee", Amount: round2(payoutFeeInSend), Currency: sendCurrency},
			{Label: "platform_fee", Amount: round2(platformFee), Currency: sendCurrency},
		},
		TotalFees: round2(totalFees),
		CreatedAt: now,
		ExpiresAt: now.Add(s.quoteTTL),
	}

	if err := s.repo.SaveQuote(ctx, quote); err != nil {
		return nil, fmt.Errorf("save quote: %w", err)
	}
	return quote, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
