/**
 * @description
 * This file defines the core domain model for the remit-orchestrator: the Transfer
 * aggregate, its per-leg bookkeeping, and the append-only timeline that serves as
 * the canonical audit history of every state change.
 *
 * @notes
 * - The Transfer owns all mutation: external components read it or submit events
 *   that request mutation through the orchestrator service.
 * - Amounts are float64 with rounding applied only at reporting boundaries, because
 *   the three legs chain values across currencies and an intermediate stablecoin.
 */

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransferStatus is the lifecycle status of a transfer.
type TransferStatus string

const (
	TransferStatusPending    TransferStatus = "pending"
	TransferStatusProcessing TransferStatus = "processing"
	TransferStatusBridging   TransferStatus = "bridging"
	TransferStatusConverting TransferStatus = "converting"
	TransferStatusSettling   TransferStatus = "settling"
	TransferStatusCompleted  TransferStatus = "completed"
	TransferStatusFailed     TransferStatus = "failed"
	TransferStatusCancelled  TransferStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are accepted from this status.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusFailed || s == TransferStatusCancelled
}

// Leg identifies one of the three ordered transfer stages.
type Leg int

const (
	LegCollection Leg = 1 // fiat collection from the sender
	LegConversion Leg = 2 // fiat-to-stablecoin conversion and on-chain routing
	LegPayout     Leg = 3 // stablecoin-to-fiat payout to the recipient
)

func (l Leg) String() string {
	switch l {
	case LegCollection:
		return "collection"
	case LegConversion:
		return "conversion"
	case LegPayout:
		return "payout"
	default:
		return fmt.Sprintf("leg%d", int(l))
	}
}

// LegState is the leg-local status, strictly ordered
// pending -> processing -> {completed|failed}.
type LegState string

const (
	LegStatePending    LegState = "pending"
	LegStateProcessing LegState = "processing"
	LegStateCompleted  LegState = "completed"
	LegStateFailed     LegState = "failed"
)

func (s LegState) isTerminal() bool {
	return s == LegStateCompleted || s == LegStateFailed
}

// rank orders leg states so progression can be checked for monotonicity.
func (s LegState) rank() int {
	switch s {
	case LegStatePending:
		return 0
	case LegStateProcessing:
		return 1
	case LegStateCompleted, LegStateFailed:
		return 2
	default:
		return -1
	}
}

// LegStatus is the per-leg record kept on a transfer.
type LegStatus struct {
	Provider     string     `json:"provider"`
	ExternalID   string     `json:"external_id,omitempty"`
	Status       LegState   `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	TxHash       *string    `json:"tx_hash,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// TimelineEvent is one immutable entry in a transfer's audit history. The status
// recorded on the event is the transfer's status at the time of the event.
type TimelineEvent struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Status    TransferStatus    `json:"status"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Transfer is the aggregate root for one cross-border transfer. It embeds the
// quote and request it was committed from, tracks at most one LegStatus per leg,
// and appends a TimelineEvent for every state change.
type Transfer struct {
	ID          uuid.UUID          `json:"id"`
	Status      TransferStatus     `json:"status"`
	Quote       TransferQuote      `json:"quote"`
	Request     TransferRequest    `json:"request"`
	Legs        map[Leg]*LegStatus `json:"legs"`
	Timeline    []TimelineEvent    `json:"timeline"`
	Version     int64              `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// allowedTransitions lists the forward edges of the status machine. failed and
// cancelled are reachable from any non-terminal status and are not listed here.
var allowedTransitions = map[TransferStatus]TransferStatus{
	TransferStatusPending:    TransferStatusProcessing,
	TransferStatusProcessing: TransferStatusBridging,
	TransferStatusBridging:   TransferStatusConverting,
	TransferStatusConverting: TransferStatusSettling,
	TransferStatusSettling:   TransferStatusCompleted,
}

// NewTransfer constructs a transfer in the pending status with an empty timeline.
// pending is assigned at record construction, before any event is appended.
func NewTransfer(id uuid.UUID, quote TransferQuote, request TransferRequest, now time.Time) *Transfer {
	return &Transfer{
		ID:        id,
		Status:    TransferStatusPending,
		Quote:     quote,
		Request:   request,
		Legs:      make(map[Leg]*LegStatus),
		Timeline:  nil,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the transfer to a new status and appends exactly one timeline
// event carrying that status. Transitions from a terminal status are rejected.
func (t *Transfer) Transition(status TransferStatus, message string, metadata map[string]string, now time.Time) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: transfer %s is %s", ErrTransferFinalized, t.ID, t.Status)
	}
	if status != TransferStatusFailed && status != TransferStatusCancelled {
		if allowedTransitions[t.Status] != status {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
		}
	}
	t.Status = status
	if status == TransferStatusCompleted && t.CompletedAt == nil {
		completed := now
		t.CompletedAt = &completed
	}
	t.appendEvent(status, message, metadata, now)
	return nil
}

// AppendEvent records a timeline event without changing the transfer status.
// Used for intermediate milestones such as obtaining the liquidation address.
func (t *Transfer) AppendEvent(message string, metadata map[string]string, now time.Time) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: transfer %s is %s", ErrTransferFinalized, t.ID, t.Status)
	}
	t.appendEvent(t.Status, message, metadata, now)
	return nil
}

func (t *Transfer) appendEvent(status TransferStatus, message string, metadata map[string]string, now time.Time) {
	t.Timeline = append(t.Timeline, TimelineEvent{
		ID:        uuid.New(),
		Timestamp: now,
		Status:    status,
		Message:   message,
		Metadata:  metadata,
	})
	t.UpdatedAt = now
}

// Leg returns the status record for a leg, or nil if the leg has not been created.
func (t *Transfer) Leg(leg Leg) *LegStatus {
	return t.Legs[leg]
}

// CreateLeg registers a leg in the pending state. A leg may be created only once.
func (t *Transfer) CreateLeg(leg Leg, provider, externalID string) error {
	if _, exists := t.Legs[leg]; exists {
		return fmt.Errorf("%w: %s leg already created", ErrInvalidTransition, leg)
	}
	t.Legs[leg] = &LegStatus{
		Provider:   provider,
		ExternalID: externalID,
		Status:     LegStatePending,
	}
	return nil
}

// StartLeg moves a leg to processing and stamps its start time.
func (t *Transfer) StartLeg(leg Leg, now time.Time) error {
	return t.advanceLeg(leg, LegStateProcessing, now)
}

// CompleteLeg moves a leg to completed and stamps its completion time.
func (t *Transfer) CompleteLeg(leg Leg, now time.Time) error {
	return t.advanceLeg(leg, LegStateCompleted, now)
}

// FailLeg moves a leg to failed and records the provider-reported reason.
func (t *Transfer) FailLeg(leg Leg, reason string, now time.Time) error {
	if err := t.advanceLeg(leg, LegStateFailed, now); err != nil {
		return err
	}
	if reason != "" {
		t.Legs[leg].ErrorMessage = &reason
	}
	return nil
}

// advanceLeg enforces that leg statuses only move forward and never regress.
func (t *Transfer) advanceLeg(leg Leg, state LegState, now time.Time) error {
	ls, exists := t.Legs[leg]
	if !exists {
		return fmt.Errorf("%w: %s leg not created", ErrLegNotFound, leg)
	}
	if ls.Status.isTerminal() {
		return fmt.Errorf("%w: %s leg already %s", ErrInvalidTransition, leg, ls.Status)
	}
	if state.rank() <= ls.Status.rank() {
		return fmt.Errorf("%w: %s leg %s -> %s", ErrInvalidTransition, leg, ls.Status, state)
	}
	ls.Status = state
	switch state {
	case LegStateProcessing:
		if ls.StartedAt == nil {
			started := now
			ls.StartedAt = &started
		}
	case LegStateCompleted, LegStateFailed:
		completed := now
		ls.CompletedAt = &completed
	}
	return nil
}

// Clone returns a deep copy of the transfer, detached from the original's maps
// and slices. The store hands out clones so callers cannot mutate shared state.
func (t *Transfer) Clone() *Transfer {
	cp := *t
	cp.Legs = make(map[Leg]*LegStatus, len(t.Legs))
	for leg, ls := range t.Legs {
		lsCopy := *ls
		if ls.StartedAt != nil {
			v := *ls.StartedAt
			lsCopy.StartedAt = &v
		}
		if ls.CompletedAt != nil {
			v := *ls.CompletedAt
			lsCopy.CompletedAt = &v
		}
		if ls.TxHash != nil {
			v := *ls.TxHash
			lsCopy.TxHash = &v
		}
		if ls.ErrorMessage != nil {
			v := *ls.ErrorMessage
			lsCopy.ErrorMessage = &v
		}
		cp.Legs[leg] = &lsCopy
	}
	cp.Timeline = make([]TimelineEvent, len(t.Timeline))
	for i, ev := range t.Timeline {
		evCopy := ev
		if ev.Metadata != nil {
			evCopy.Metadata = make(map[string]string, len(ev.Metadata))
			for k, v := range ev.Metadata {
				evCopy.Metadata[k] = v
			}
		}
		cp.Timeline[i] = evCopy
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		cp.CompletedAt = &v
	}
	return &cp
}
