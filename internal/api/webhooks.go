/**
 * @description
 * HTTP entry points for inbound provider webhooks, one per leg. Every payload
 * is authenticated with an HMAC-SHA256 signature over the raw body before any
 * state mutation is applied; an invalid signature is rejected at this boundary
 * and never reaches the dispatcher.
 *
 * Key features:
 * - Security: constant-time signature comparison, hex or base64 encoded.
 * - Idempotency: duplicate and late deliveries are acknowledged with 200 so
 *   providers with at-least-once delivery stop retrying.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, encoding/base64, encoding/hex: Signature checks.
 * - internal/app, internal/domain, internal/store: Dispatcher and models.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stablepath/remit-orchestrator/internal/app"
	"github.com/stablepath/remit-orchestrator/internal/domain"
	"github.com/stablepath/remit-orchestrator/internal/store"
)

// SignatureHeader carries the keyed hash of the request body.
const SignatureHeader = "x-webhook-signature"

// WebhookHandlers processes inbound notifications from the three providers.
type WebhookHandlers struct {
	service *app.Service
	secret  string
}

// NewWebhookHandlers creates the webhook entry points. The shared secret is
// required; an empty secret would accept unauthenticated mutations.
func NewWebhookHandlers(service *app.Service, secret string) *WebhookHandlers {
	return &WebhookHandlers{service: service, secret: secret}
}

// webhookEnvelope is the common wrapper all three providers deliver: the
// transfer id the event belongs to plus the provider-specific payload.
type webhookEnvelope struct {
	TransferID string          `json:"transfer_id"`
	Event      json.RawMessage `json:"event"`
}

// CollectionWebhookHandler receives leg-1 notifications.
// POST /webhooks/collection
func (h *WebhookHandlers) CollectionWebhookHandler(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "collection", func(ctx *http.Request, transferID uuid.UUID, raw json.RawMessage) error {
		var event domain.CollectionWebhookEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return errBadPayload
		}
		return h.service.HandleCollectionWebhook(ctx.Context(), transferID, event)
	})
}

// ConversionWebhookHandler receives leg-2 notifications.
// POST /webhooks/conversion
func (h *WebhookHandlers) ConversionWebhookHandler(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "conversion", func(ctx *http.Request, transferID uuid.UUID, raw json.RawMessage) error {
		var event domain.ConversionWebhookEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return errBadPayload
		}
		return h.service.HandleConversionWebhook(ctx.Context(), transferID, event)
	})
}

// PayoutWebhookHandler receives leg-3 notifications.
// POST /webhooks/payout
func (h *WebhookHandlers) PayoutWebhookHandler(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "payout", func(ctx *http.Request, transferID uuid.UUID, raw json.RawMessage) error {
		var event domain.PayoutWebhookEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return errBadPayload
		}
		return h.service.HandlePayoutWebhook(ctx.Context(), transferID, event)
	})
}

var errBadPayload = errors.New("invalid webhook payload")

func (h *WebhookHandlers) handle(w http.ResponseWriter, r *http.Request, leg string, dispatch func(*http.Request, uuid.UUID, json.RawMessage) error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	if !h.validSignature(r.Header.Get(SignatureHeader), body) {
		log.Printf("level=warn component=webhook_api leg=%s outcome=reject reason=invalid_signature remote=%s", leg, r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	transferID, err := uuid.Parse(envelope.TransferID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transfer id")
		return
	}

	if err := dispatch(r, transferID, envelope.Event); err != nil {
		switch {
		case errors.Is(err, errBadPayload):
			writeError(w, http.StatusBadRequest, "invalid webhook payload")
		case errors.Is(err, store.ErrTransferNotFound):
			log.Printf("level=warn component=webhook_api leg=%s outcome=reject reason=unknown_transfer transfer_id=%s", leg, transferID)
			writeError(w, http.StatusNotFound, "transfer not found")
		case errors.Is(err, app.ErrUnexpectedWebhook):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrLegInitiation):
			// The failure is recorded on the transfer; acknowledge so the
			// provider does not retry an event we have fully processed.
			log.Printf("level=error component=webhook_api leg=%s outcome=recorded_failure transfer_id=%s err=%v", leg, transferID, err)
			writeJSON(w, http.StatusOK, map[string]string{"status": "failure recorded"})
		default:
			log.Printf("level=error component=webhook_api leg=%s transfer_id=%s err=%v", leg, transferID, err)
			writeError(w, http.StatusInternalServerError, "webhook processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// validSignature verifies the HMAC-SHA256 of the body against the header,
// accepting hex or base64 encoding. Comparison is constant-time.
func (h *WebhookHandlers) validSignature(header string, body []byte) bool {
	header = strings.TrimSpace(header)
	if header == "" || h.secret == "" {
		return false
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "sha256=") {
		header = header[7:]
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if decoded, err := hex.DecodeString(header); err == nil {
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(header); err == nil {
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	return false
}

// mountWebhookRoutes registers the three provider endpoints on a router.
func mountWebhookRoutes(r chi.Router, h *WebhookHandlers) {
	r.Post("/collection", h.CollectionWebhookHandler)
	r.Post("/conversion", h.ConversionWebhookHandler)
	r.Post("/payout", h.PayoutWebhookHandler)
}
