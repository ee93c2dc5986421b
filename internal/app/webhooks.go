/**
 * @description
 * The webhook dispatcher: one entry point per provider. Each handler maps the
 * provider's status vocabulary onto the state machine, serializes mutation
 * per transfer id, de-duplicates repeated deliveries, and drives the next leg
 * forward. The conversion handler is the one place the dispatcher performs
 * outbound work: a confirmed conversion synchronously initiates the payout leg.
 *
 * A webhook for an unknown transfer id is an error surfaced to the caller; a
 * webhook for an already-terminal transfer is acknowledged as a no-op so
 * provider at-least-once delivery never turns into an error loop.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stablepath/remit-orchestrator/internal/domain"
)

// Normalized webhook outcomes shared by the three handlers.
const (
	outcomeSettled = "settled"
	outcomeFailed  = "failed"
)

// HandleCollectionWebhook processes a leg-1 notification. A settled collection
// moves the transfer to bridging: the provider has forwarded the sender's
// funds to the liquidation address.
func (s *Service) HandleCollectionWebhook(ctx context.Context, transferID uuid.UUID, event domain.CollectionWebhookEvent) error {
	outcome := normalizeCollectionStatus(event.Status)

	unlock := s.locks.lock(transferID.String())
	defer unlock()

	transfer, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status.IsTerminal() {
		log.Printf("level=info component=webhook_dispatcher leg=collection msg=\"event for terminal transfer acknowledged\" transfer_id=%s status=%s", transferID, transfer.Status)
		return nil
	}
	if outcome == "" {
		log.Printf("level=info component=webhook_dispatcher leg=collection msg=\"unhandled provider status acknowledged\" transfer_id=%s provider_status=%q", transferID, event.Status)
		return nil
	}
	if transfer.Leg(domain.LegCollection) == nil {
		return fmt.Errorf("%w: collection leg was never initiated for %s", ErrUnexpectedWebhook, transferID)
	}

	key := webhookDedupKey(transferID, domain.LegCollection, outcome)
	if s.dedup.IsDuplicate(ctx, key) {
		log.Printf("level=info component=webhook_dispatcher leg=collection msg=\"duplicate event acknowledged\" transfer_id=%s outcome=%s", transferID, outcome)
		return nil
	}

	now := s.now()
	switch outcome {
	case outcomeSettled:
		if err := transfer.CompleteLeg(domain.LegCollection, now); err != nil {
			return err
		}
		// Funds are on their way to the liquidation address; the conversion
		// leg is now live.
		if err := transfer.StartLeg(domain.LegConversion, now); err != nil {
			return err
		}
		metadata := map[string]string{}
		if event.Amount > 0 {
			metadata["collected_amount"] = strconv.FormatFloat(event.Amount, 'f', 2, 64)
		}
		if err := transfer.Transition(domain.TransferStatusBridging, "Sender funds settled; bridging to stablecoin", metadata, now); err != nil {
			return err
		}
	case outcomeFailed:
		if err := transfer.FailLeg(domain.LegCollection, event.Reason, now); err != nil {
			return err
		}
		if err := transfer.Transition(domain.TransferStatusFailed, failureMessage("Collection failed", event.Reason), nil, now); err != nil {
			return err
		}
	}

	if err := s.saveTransfer(ctx, transfer); err != nil {
		return err
	}
	s.dedup.MarkSeen(ctx, key)
	s.publishStatus(ctx, transfer, domain.LegCollection.String(), "Collection "+outcome)
	return nil
}

// HandleConversionWebhook processes a leg-2 notification. A processed
// conversion records the on-chain transaction hash and synchronously initiates
// the payout leg with the just-confirmed stablecoin amount. If that outbound
// call fails, the transfer is marked failed but the conversion leg's success
// is preserved: leg 2 succeeded, leg 3 never started.
func (s *Service) HandleConversionWebhook(ctx context.Context, transferID uuid.UUID, event domain.ConversionWebhookEvent) error {
	outcome := normalizeConversionStatus(event.Status)

	unlock := s.locks.lock(transferID.String())
	defer unlock()

	transfer, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status.IsTerminal() {
		log.Printf("level=info component=webhook_dispatcher leg=conversion msg=\"event for terminal transfer acknowledged\" transfer_id=%s status=%s", transferID, transfer.Status)
		return nil
	}
	if outcome == "" {
		log.Printf("level=info component=webhook_dispatcher leg=conversion msg=\"unhandled provider status acknowledged\" transfer_id=%s provider_status=%q", transferID, event.Status)
		return nil
	}
	if transfer.Leg(domain.LegConversion) == nil {
		return fmt.Errorf("%w: conversion leg was never created for %s", ErrUnexpectedWebhook, transferID)
	}

	key := webhookDedupKey(transferID, domain.LegConversion, outcome)
	if s.dedup.IsDuplicate(ctx, key) {
		log.Printf("level=info component=webhook_dispatcher leg=conversion msg=\"duplicate event acknowledged\" transfer_id=%s outcome=%s", transferID, outcome)
		return nil
	}

	now := s.now()
	if outcome == outcomeFailed {
		if err := transfer.FailLeg(domain.LegConversion, event.Reason, now); err != nil {
			return err
		}
		if err := transfer.Transition(domain.TransferStatusFailed, failureMessage("Conversion failed", event.Reason), nil, now); err != nil {
			return err
		}
		if err := s.saveTransfer(ctx, transfer); err != nil {
			return err
		}
		s.dedup.MarkSeen(ctx, key)
		s.publishStatus(ctx, transfer, domain.LegConversion.String(), "Conversion failed")
		return nil
	}

	// Conversion processed: record leg-2 completion with its transaction hash.
	if err := transfer.CompleteLeg(domain.LegConversion, now); err != nil {
		return err
	}
	if event.TxHash != "" {
		hash := event.TxHash
		transfer.Leg(domain.LegConversion).TxHash = &hash
	}
	metadata := map[string]string{}
	if event.TxHash != "" {
		metadata["tx_hash"] = event.TxHash
	}
	if err := transfer.Transition(domain.TransferStatusConverting, "Stablecoin conversion confirmed; preparing payout", metadata, now); err != nil {
		return err
	}

	stablecoinAmount := event.StablecoinAmount
	if stablecoinAmount <= 0 {
		stablecoinAmount = transfer.Quote.StablecoinAmount
	}

	handle, initErr := s.payout.Initiate(ctx, domain.PayoutInitiation{
		TransferID:       transfer.ID,
		StablecoinAmount: stablecoinAmount,
		Stablecoin:       transfer.Quote.Route.Stablecoin,
		Currency:         transfer.Quote.Route.ReceiveCurrency,
		Country:          transfer.Quote.Route.ReceiveCountry,
		Recipient:        transfer.Request.Recipient,
		CallbackURL:      s.webhookCallbackURL("payout"),
	})
	if initErr != nil {
		// Leg 3 is left uncreated; the conversion leg's completed state and
		// tx hash stay recorded.
		msg := fmt.Sprintf("payout initiation failed: %v", initErr)
		if err := transfer.Transition(domain.TransferStatusFailed, msg, nil, s.now()); err != nil {
			return err
		}
		if err := s.saveTransfer(ctx, transfer); err != nil {
			return err
		}
		s.dedup.MarkSeen(ctx, key)
		s.publishStatus(ctx, transfer, domain.LegPayout.String(), msg)
		return fmt.Errorf("%w: %v", ErrLegInitiation, initErr)
	}

	if err := transfer.CreateLeg(domain.LegPayout, "payout", handle.ProviderReferenceID); err != nil {
		return err
	}
	if err := transfer.StartLeg(domain.LegPayout, s.now()); err != nil {
		return err
	}
	if err := transfer.Transition(domain.TransferStatusSettling, "Payout initiated; awaiting settlement", map[string]string{
		"provider_reference": handle.ProviderReferenceID,
	}, s.now()); err != nil {
		return err
	}
	if err := s.saveTransfer(ctx, transfer); err != nil {
		return err
	}
	s.dedup.MarkSeen(ctx, key)
	s.publishStatus(ctx, transfer, domain.LegPayout.String(), "Payout initiated")
	return nil
}

// HandlePayoutWebhook processes a leg-3 notification. Completion stamps
// completedAt and emits the final, recipient-facing summary.
func (s *Service) HandlePayoutWebhook(ctx context.Context, transferID uuid.UUID, event domain.PayoutWebhookEvent) error {
	outcome := normalizePayoutStatus(event.Status)

	unlock := s.locks.lock(transferID.String())
	defer unlock()

	transfer, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status.IsTerminal() {
		log.Printf("level=info component=webhook_dispatcher leg=payout msg=\"event for terminal transfer acknowledged\" transfer_id=%s status=%s", transferID, transfer.Status)
		return nil
	}
	if outcome == "" {
		log.Printf("level=info component=webhook_dispatcher leg=payout msg=\"unhandled provider status acknowledged\" transfer_id=%s provider_status=%q", transferID, event.Status)
		return nil
	}
	if transfer.Leg(domain.LegPayout) == nil {
		return fmt.Errorf("%w: payout leg was never initiated for %s", ErrUnexpectedWebhook, transferID)
	}

	key := webhookDedupKey(transferID, domain.LegPayout, outcome)
	if s.dedup.IsDuplicate(ctx, key) {
		log.Printf("level=info component=webhook_dispatcher leg=payout msg=\"duplicate event acknowledged\" transfer_id=%s outcome=%s", transferID, outcome)
		return nil
	}

	now := s.now()
	switch outcome {
	case outcomeSettled:
		if err := transfer.CompleteLeg(domain.LegPayout, now); err != nil {
			return err
		}
		summary := fmt.Sprintf("Transfer completed; %.2f %s delivered to %s",
			transfer.Quote.ReceiveAmount, transfer.Quote.Route.ReceiveCurrency, transfer.Request.Recipient.Name)
		if err := transfer.Transition(domain.TransferStatusCompleted, summary, nil, now); err != nil {
			return err
		}
	case outcomeFailed:
		if err := transfer.FailLeg(domain.LegPayout, event.Reason, now); err != nil {
			return err
		}
		if err := transfer.Transition(domain.TransferStatusFailed, failureMessage("Payout failed", event.Reason), nil, now); err != nil {
			return err
		}
	}

	if err := s.saveTransfer(ctx, transfer); err != nil {
		return err
	}
	s.dedup.MarkSeen(ctx, key)
	s.publishStatus(ctx, transfer, domain.LegPayout.String(), "Payout "+outcome)
	return nil
}

// normalizeCollectionStatus maps the collection provider's vocabulary onto
// settled/failed. Unknown statuses return "" and are acknowledged unprocessed.
func normalizeCollectionStatus(status string) string {
	switch strings.TrimSpace(strings.ToLower(status)) {
	case "settled", "succeeded", "completed", "payment_settled":
		return outcomeSettled
	case "failed", "payment_failed", "expired":
		return outcomeFailed
	default:
		return ""
	}
}

// normalizeConversionStatus maps the conversion provider's vocabulary.
func normalizeConversionStatus(status string) string {
	switch strings.TrimSpace(strings.ToLower(status)) {
	case "processed", "payment_processed", "completed", "confirmed":
		return outcomeSettled
	case "failed", "error", "returned":
		return outcomeFailed
	default:
		return ""
	}
}

// normalizePayoutStatus maps the payout provider's vocabulary.
func normalizePayoutStatus(status string) string {
	switch strings.TrimSpace(strings.ToLower(status)) {
	case "settled", "completed", "success", "successful":
		return outcomeSettled
	case "failed", "rejected", "returned":
		return outcomeFailed
	default:
		return ""
	}
}

func failureMessage(prefix, reason string) string {
	if strings.TrimSpace(reason) == "" {
		return prefix
	}
	return prefix + ": " + reason
}
