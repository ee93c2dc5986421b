/**
 * @description
 * HTTP handlers for the orchestrator's service-facing API: quoting, committing
 * a transfer, lookup, listing, and cancellation. Handlers parse the request,
 * call the application service, and translate service errors into wire-level
 * responses.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stablepath/remit-orchestrator/internal/app"
	"github.com/stablepath/remit-orchestrator/internal/domain"
	"github.com/stablepath/remit-orchestrator/internal/store"
)

// TransferHandlers holds the application service that handlers call into.
type TransferHandlers struct {
	service *app.Service
}

// NewTransferHandlers creates a new instance of TransferHandlers.
func NewTransferHandlers(service *app.Service) *TransferHandlers {
	return &TransferHandlers{service: service}
}

type errorResponse struct {
	Error string `json:"error"`
}

// failedTransferResponse carries both the error and the transfer record when a
// commit fails mid-flight: the record is the durable error report.
type failedTransferResponse struct {
	Error    string           `json:"error"`
	Transfer *domain.Transfer `json:"transfer,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// CreateQuoteHandler prices a corridor end to end.
// POST /quotes
func (h *TransferHandlers) CreateQuoteHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	quote, err := h.service.GetTransferQuote(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrQuoteUnavailable):
			log.Printf("level=warn component=api endpoint=create_quote outcome=reject reason=quote_unavailable err=%v", err)
			writeError(w, http.StatusBadGateway, "quote is currently unavailable for this corridor")
		default:
			log.Printf("level=error component=api endpoint=create_quote err=%v", err)
			writeError(w, http.StatusInternalServerError, "unable to produce a quote")
		}
		return
	}
	writeJSON(w, http.StatusCreated, quote)
}

// CreateTransferHandler commits a quote into a live transfer.
// POST /transfers
func (h *TransferHandlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req app.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	transfer, err := h.service.CreateTransfer(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrLegInitiation):
			// The transfer exists and carries the failure in its timeline.
			log.Printf("level=warn component=api endpoint=create_transfer outcome=failed reason=leg_initiation err=%v", err)
			writeJSON(w, http.StatusBadGateway, failedTransferResponse{Error: err.Error(), Transfer: transfer})
		default:
			log.Printf("level=error component=api endpoint=create_transfer err=%v", err)
			writeError(w, http.StatusInternalServerError, "unable to create transfer")
		}
		return
	}
	writeJSON(w, http.StatusCreated, transfer)
}

// GetTransferHandler returns one transfer with its legs and timeline.
// GET /transfers/{transferID}
func (h *TransferHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "transferID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transfer id")
		return
	}

	transfer, err := h.service.GetTransfer(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrTransferNotFound) {
			writeError(w, http.StatusNotFound, "transfer not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_transfer transfer_id=%s err=%v", id, err)
		writeError(w, http.StatusInternalServerError, "unable to load transfer")
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

// ListTransfersHandler returns all transfers, newest first.
// GET /transfers
func (h *TransferHandlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.service.ListTransfers(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_transfers err=%v", err)
		writeError(w, http.StatusInternalServerError, "unable to list transfers")
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}

// CancelTransferHandler cancels a transfer not yet handed to a provider.
// POST /transfers/{transferID}/cancel
func (h *TransferHandlers) CancelTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "transferID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transfer id")
		return
	}

	transfer, err := h.service.CancelTransfer(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTransferNotFound):
			writeError(w, http.StatusNotFound, "transfer not found")
		case errors.Is(err, app.ErrNotCancellable):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("level=error component=api endpoint=cancel_transfer transfer_id=%s err=%v", id, err)
			writeError(w, http.StatusInternalServerError, "unable to cancel transfer")
		}
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}
