package app

import "errors"

var (
	// ErrValidation marks a malformed or out-of-range request. Returned before
	// any state is created or mutated.
	ErrValidation = errors.New("validation error")

	// ErrQuoteUnavailable marks a quote aggregation where one or more leg quote
	// calls failed or timed out. No partial quote is ever returned.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrLegInitiation marks a failed adapter call to start a leg. The transfer
	// record carries the failure in its timeline; the caller gets this error so
	// the protocol boundary can respond.
	ErrLegInitiation = errors.New("leg initiation failed")

	// ErrUnexpectedWebhook marks a notification that does not belong to an
	// expected transition, e.g. a settlement event for a leg that was never
	// initiated.
	ErrUnexpectedWebhook = errors.New("webhook does not match an expected transition")

	// ErrNotCancellable marks a cancel request for a transfer whose collection
	// leg has already been accepted by a provider; the orchestrator never
	// attempts to undo provider-side in-flight work.
	ErrNotCancellable = errors.New("transfer can no longer be cancelled")
)
