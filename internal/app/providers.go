/**
 * @description
 * Capability interfaces for the three external payment providers. The service
 * depends on these rather than on the concrete HTTP clients so the webhook and
 * commit paths can be exercised against stubs. Every call must complete or
 * fail within the client's bounded timeout; quote calls must not have side
 * effects, and initiate calls must be idempotent with respect to the supplied
 * transfer id.
 */

package app

import (
	"context"

	"github.com/stablepath/remit-orchestrator/internal/domain"
)

// CollectionProvider fulfils leg 1: fiat collection from the sender.
type CollectionProvider interface {
	Quote(ctx context.Context, amount float64, currency, country string) (*domain.LegQuote, error)
	Initiate(ctx context.Context, p domain.CollectionInitiation) (*domain.LegHandle, error)
}

// ConversionProvider fulfils leg 2: fiat-to-stablecoin conversion and on-chain
// routing, triggered automatically when its liquidation address is funded.
type ConversionProvider interface {
	Quote(ctx context.Context, amount float64, fromCurrency, stablecoin, network string) (*domain.LegQuote, error)
	CreateLiquidationAddress(ctx context.Context, p domain.LiquidationAddressRequest) (*domain.LiquidationAddress, error)
}

// PayoutProvider fulfils leg 3: stablecoin-to-fiat payout to the recipient.
type PayoutProvider interface {
	Quote(ctx context.Context, amount float64, stablecoin, toCurrency, country string) (*domain.LegQuote, error)
	Initiate(ctx context.Context, p domain.PayoutInitiation) (*domain.LegHandle, error)
}
