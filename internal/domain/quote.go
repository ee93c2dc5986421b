/**
 * @description
 * Quote-side domain models: the immutable three-leg route chosen for a corridor,
 * the priced and time-boxed transfer quote, and the per-leg quote/handle types
 * returned by provider adapters.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// QuoteRequest is the input to quote aggregation.
type QuoteRequest struct {
	SendAmount      float64 `json:"send_amount"`
	SendCurrency    string  `json:"send_currency"`
	ReceiveCurrency string  `json:"receive_currency"`
	SendCountry     string  `json:"send_country"`
	ReceiveCountry  string  `json:"receive_country"`
}

// RouteLeg describes one stage of the chosen path: which provider fulfils it,
// over which rail, and its quoted fee and settlement estimate.
type RouteLeg struct {
	Leg              Leg     `json:"leg"`
	Provider         string  `json:"provider"`
	Method           string  `json:"method"`
	EstimatedSeconds int     `json:"estimated_seconds"`
	Fee              float64 `json:"fee"`
}

// TransferRoute is the immutable description of the three-leg path for a
// corridor. Computed once at quote time and never mutated afterwards.
type TransferRoute struct {
	SendCurrency    string     `json:"send_currency"`
	ReceiveCurrency string     `json:"receive_currency"`
	SendCountry     string     `json:"send_country"`
	ReceiveCountry  string     `json:"receive_country"`
	Network         string     `json:"network"`
	Stablecoin      string     `json:"stablecoin"`
	Legs            []RouteLeg `json:"legs"`
}

// FeeLine is one itemized fee on a quote, reported in the send currency.
type FeeLine struct {
	Label    string  `json:"label"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// TransferQuote is a priced, time-boxed offer. ExpiresAt is fixed at creation;
// a quote must not be accepted for transfer creation after expiry.
type TransferQuote struct {
	ID               uuid.UUID     `json:"id"`
	Route            TransferRoute `json:"route"`
	SendAmount       float64       `json:"send_amount"`
	ReceiveAmount    float64       `json:"receive_amount"`
	StablecoinAmount float64       `json:"stablecoin_amount"`
	ExchangeRate     float64       `json:"exchange_rate"`
	Fees             []FeeLine     `json:"fees"`
	TotalFees        float64       `json:"total_fees"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
}

// Expired reports whether the quote can no longer be committed.
func (q TransferQuote) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// LegQuote is a single provider's answer to a leg quote request. Rate is 1.0
// for legs that do not convert currency.
type LegQuote struct {
	Provider         string  `json:"provider"`
	Fee              float64 `json:"fee"`
	Rate             float64 `json:"rate"`
	EstimatedSeconds int     `json:"estimated_seconds"`
}

// LegHandle is the provider's reference for an initiated leg.
type LegHandle struct {
	ProviderReferenceID string `json:"provider_reference_id"`
}

// LiquidationAddress is the conversion provider's deposit target. Funding it
// triggers that provider's automatic conversion and on-chain forwarding.
type LiquidationAddress struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Network string `json:"network"`
}

// CollectionInitiation carries the parameters for starting the collection leg.
type CollectionInitiation struct {
	TransferID  uuid.UUID
	Amount      float64
	Currency    string
	SenderName  string
	DepositRef  string
	CallbackURL string
}

// PayoutInitiation carries the parameters for starting the payout leg.
type PayoutInitiation struct {
	TransferID       uuid.UUID
	StablecoinAmount float64
	Stablecoin       string
	Currency         string
	Country          string
	Recipient        Party
	CallbackURL      string
}

// LiquidationAddressRequest asks the conversion provider for a deposit target
// bound to one transfer.
type LiquidationAddressRequest struct {
	TransferID uuid.UUID
	Network    string
	Stablecoin string
}
