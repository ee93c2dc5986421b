/**
 * @description
 * The orchestrator service: owns transfer creation (commit), lookups, and
 * cancellation, and holds the dependencies the webhook dispatcher drives.
 * The store is the single source of truth; every step reads the record,
 * mutates it through the domain state machine, and writes it back under the
 * per-transfer lock with a compare-and-set update.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain model and persistence contract.
 * - pkg/rabbitmq: Best-effort transfer status event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stablepath/remit-orchestrator/internal/domain"
	"github.com/stablepath/remit-orchestrator/internal/store"
	"github.com/stablepath/remit-orchestrator/pkg/rabbitmq"
)

// Service wires the store, the three provider adapters, and the event producer
// into the transfer orchestration logic.
type Service struct {
	repo       store.Repository
	collection CollectionProvider
	conversion ConversionProvider
	payout     PayoutProvider
	producer   rabbitmq.Publisher

	locks       *transferLocks
	dedup       WebhookDeduper
	routePolicy RoutePolicy

	platformFeeBps  int64
	quoteTTL        time.Duration
	callbackBaseURL string

	now func() time.Time
}

// NewService creates the orchestrator service. A nil producer degrades to a
// no-op publisher so a missing broker never blocks transfers.
func NewService(
	repo store.Repository,
	collection CollectionProvider,
	conversion ConversionProvider,
	payout PayoutProvider,
	producer rabbitmq.Publisher,
	platformFeeBps int64,
	quoteTTL time.Duration,
	callbackBaseURL string,
) *Service {
	if producer == nil {
		producer = &rabbitmq.FallbackProducer{}
	}
	return &Service{
		repo:            repo,
		collection:      collection,
		conversion:      conversion,
		payout:          payout,
		producer:        producer,
		locks:           newTransferLocks(),
		dedup:           newMemoryDeduper(24 * time.Hour),
		routePolicy:     DefaultRoutePolicy,
		platformFeeBps:  platformFeeBps,
		quoteTTL:        quoteTTL,
		callbackBaseURL: strings.TrimRight(callbackBaseURL, "/"),
		now:             time.Now,
	}
}

// SetWebhookDeduper swaps in a shared deduper (e.g. Redis-backed) when the
// orchestrator runs with more than one instance.
func (s *Service) SetWebhookDeduper(d WebhookDeduper) {
	if d != nil {
		s.dedup = d
	}
}

// SetRoutePolicy overrides the default network/stablecoin selection.
func (s *Service) SetRoutePolicy(p RoutePolicy) {
	if p != nil {
		s.routePolicy = p
	}
}

// CreateTransferRequest is the commit input: a previously issued quote plus the
// sender/recipient instructions.
type CreateTransferRequest struct {
	QuoteID uuid.UUID              `json:"quote_id"`
	Request domain.TransferRequest `json:"request"`
}

// CreateTransfer commits a quote into a live transfer: validates the request,
// rejects expired or unknown quotes, creates the record, obtains the
// conversion leg's liquidation address, and initiates collection. Initiation
// failures are recorded into the transfer's own timeline as a failed event;
// the record is returned alongside the error as the durable error report.
func (s *Service) CreateTransfer(ctx context.Context, p CreateTransferRequest) (*domain.Transfer, error) {
	if err := p.Request.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	quote, err := s.repo.GetQuote(ctx, p.QuoteID)
	if err != nil {
		if errors.Is(err, store.ErrQuoteNotFound) {
			return nil, fmt.Errorf("%w: unknown quote %s", ErrValidation, p.QuoteID)
		}
		return nil, fmt.Errorf("load quote: %w", err)
	}
	now := s.now()
	if quote.Expired(now) {
		return nil, fmt.Errorf("%w: quote %s expired at %s", ErrValidation, quote.ID, quote.ExpiresAt.Format(time.RFC3339))
	}

	transfer := domain.NewTransfer(uuid.New(), *quote, p.Request, now)
	if err := s.repo.CreateTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("create transfer record: %w", err)
	}

	unlock := s.locks.lock(transfer.ID.String())
	defer unlock()

	if err := transfer.Transition(domain.TransferStatusProcessing, "Transfer created; collecting funds from sender", nil, s.now()); err != nil {
		return nil, err
	}
	if err := s.saveTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	s.publishStatus(ctx, transfer, "", "Transfer created")

	// Leg 2 first: the collection leg needs the liquidation address as its
	// deposit target.
	addr, err := s.conversion.CreateLiquidationAddress(ctx, domain.LiquidationAddressRequest{
		TransferID: transfer.ID,
		Network:    quote.Route.Network,
		Stablecoin: quote.Route.Stablecoin,
	})
	if err != nil {
		return transfer, s.failTransfer(ctx, transfer, 0, "liquidation address request failed", err)
	}
	if err := transfer.CreateLeg(domain.LegConversion, "conversion", addr.ID); err != nil {
		return transfer, err
	}
	if err := transfer.AppendEvent("Liquidation address obtained", map[string]string{
		"address": addr.Address,
		"network": addr.Network,
	}, s.now()); err != nil {
		return transfer, err
	}
	if err := s.saveTransfer(ctx, transfer); err != nil {
		return transfer, err
	}

	handle, err := s.collection.Initiate(ctx, domain.CollectionInitiation{
		TransferID:  transfer.ID,
		Amount:      quote.SendAmount,
		Currency:    quote.Route.SendCurrency,
		SenderName:  p.Request.Sender.Name,
		DepositRef:  addr.Address,
		CallbackURL: s.webhookCallbackURL("collection"),
	})
	if err != nil {
		return transfer, s.failTransfer(ctx, transfer, 0, "collection initiation failed", err)
	}
	if err := transfer.CreateLeg(domain.LegCollection, "collection", handle.ProviderReferenceID); err != nil {
		return transfer, err
	}
	if err := transfer.StartLeg(domain.LegCollection, s.now()); err != nil {
		return transfer, err
	}
	if err := transfer.AppendEvent("Collection initiated with provider", map[string]string{
		"provider_reference": handle.ProviderReferenceID,
	}, s.now()); err != nil {
		return transfer, err
	}
	if err := s.saveTransfer(ctx, transfer); err != nil {
		return transfer, err
	}

	log.Printf("level=info component=orchestrator msg=\"transfer committed\" transfer_id=%s corridor=%s->%s amount=%.2f",
		transfer.ID, quote.Route.SendCurrency, quote.Route.ReceiveCurrency, quote.SendAmount)
	return transfer, nil
}

// GetTransfer returns one transfer by id.
func (s *Service) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	return s.repo.GetTransfer(ctx, id)
}

// ListTransfers returns all transfers, newest first.
func (s *Service) ListTransfers(ctx context.Context) ([]domain.Transfer, error) {
	return s.repo.ListTransfers(ctx)
}

// CancelTransfer cancels a transfer that has not yet had its collection leg
// accepted by a provider. Once a provider holds an in-flight operation the
// orchestrator can only await its outcome.
func (s *Service) CancelTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	unlock := s.locks.lock(id.String())
	defer unlock()

	transfer, err := s.repo.GetTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	if transfer.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: transfer is %s", ErrNotCancellable, transfer.Status)
	}
	if leg := transfer.Leg(domain.LegCollection); leg != nil && leg.ExternalID != "" {
		return nil, fmt.Errorf("%w: collection already initiated", ErrNotCancellable)
	}
	if err := transfer.Transition(domain.TransferStatusCancelled, "Transfer cancelled before collection", nil, s.now()); err != nil {
		return nil, err
	}
	if err := s.saveTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	s.publishStatus(ctx, transfer, "", "Transfer cancelled")
	return transfer, nil
}

// failTransfer records a terminal failure into the transfer and returns the
// LegInitiationError the caller should surface. The record itself is the
// durable error report, so persistence failures here are logged, not raised.
func (s *Service) failTransfer(ctx context.Context, t *domain.Transfer, leg domain.Leg, message string, cause error) error {
	full := fmt.Sprintf("%s: %v", message, cause)
	if leg != 0 && t.Leg(leg) != nil {
		if err := t.FailLeg(leg, full, s.now()); err != nil {
			log.Printf("level=error component=orchestrator msg=\"leg failure bookkeeping rejected\" transfer_id=%s leg=%s err=%v", t.ID, leg, err)
		}
	}
	if err := t.Transition(domain.TransferStatusFailed, full, nil, s.now()); err != nil {
		log.Printf("level=error component=orchestrator msg=\"failure transition rejected\" transfer_id=%s err=%v", t.ID, err)
	}
	if err := s.saveTransfer(ctx, t); err != nil {
		log.Printf("level=error component=orchestrator msg=\"failed transfer not persisted\" transfer_id=%s err=%v", t.ID, err)
	}
	legName := ""
	if leg != 0 {
		legName = leg.String()
	}
	s.publishStatus(ctx, t, legName, full)
	return fmt.Errorf("%w: %v", ErrLegInitiation, cause)
}

func (s *Service) saveTransfer(ctx context.Context, t *domain.Transfer) error {
	if err := s.repo.UpdateTransfer(ctx, t); err != nil {
		return fmt.Errorf("persist transfer %s: %w", t.ID, err)
	}
	return nil
}

// publishStatus emits a best-effort transfer status event.
func (s *Service) publishStatus(ctx context.Context, t *domain.Transfer, leg, message string) {
	event := domain.TransferStatusEvent{
		TransferID: t.ID.String(),
		Status:     t.Status,
		Leg:        leg,
		Message:    message,
		Timestamp:  s.now(),
	}
	if err := s.producer.PublishTransferStatus(ctx, event); err != nil {
		log.Printf("level=warn component=orchestrator msg=\"status event publish failed\" transfer_id=%s status=%s err=%v", t.ID, t.Status, err)
	}
}

func (s *Service) webhookCallbackURL(provider string) string {
	if s.callbackBaseURL == "" {
		return ""
	}
	return s.callbackBaseURL + "/webhooks/" + provider
}
