/**
 * @description
 * Inbound webhook payloads, one shape per provider. Each provider uses its own
 * status vocabulary; normalization to the orchestrator's state machine happens
 * in the dispatcher, not here.
 */

package domain

import "time"

// CollectionWebhookEvent is delivered by the collection provider when the
// sender's fiat payment settles or fails.
type CollectionWebhookEvent struct {
	Status    string  `json:"status"`
	Reference string  `json:"reference,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	Currency  string  `json:"currency,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// ConversionWebhookEvent is delivered by the conversion provider once a deposit
// to the liquidation address has been converted and routed on-chain.
type ConversionWebhookEvent struct {
	Status           string  `json:"status"`
	TxHash           string  `json:"tx_hash,omitempty"`
	StablecoinAmount float64 `json:"stablecoin_amount,omitempty"`
	Stablecoin       string  `json:"stablecoin,omitempty"`
	Reason           string  `json:"reason,omitempty"`
}

// PayoutWebhookEvent is delivered by the payout provider when the recipient-side
// fiat disbursement settles or is rejected.
type PayoutWebhookEvent struct {
	Status    string  `json:"status"`
	Reference string  `json:"reference,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	Currency  string  `json:"currency,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// TransferStatusEvent is the internal event published after each state change.
type TransferStatusEvent struct {
	TransferID string         `json:"transfer_id"`
	Status     TransferStatus `json:"status"`
	Leg        string         `json:"leg,omitempty"`
	Message    string         `json:"message"`
	Timestamp  time.Time      `json:"timestamp"`
}
