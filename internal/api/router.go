/**
 * @description
 * This file sets up the HTTP router for the remit-orchestrator. It defines the
 * API endpoints, associates them with their handlers, and applies middleware
 * for logging, panic recovery, timeouts, CORS, and internal authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes creates and returns the router for the orchestrator.
func Routes(h *TransferHandlers, wh *WebhookHandlers, internalAPIKey string, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", InternalAPIKeyHeader},
			MaxAge:         300,
		}))
	}

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Provider webhooks authenticate with their own HMAC signature, not the
	// internal API key.
	r.Route("/webhooks", func(r chi.Router) {
		mountWebhookRoutes(r, wh)
	})

	// Service-to-service API.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/quotes", h.CreateQuoteHandler)
		r.Post("/transfers", h.CreateTransferHandler)
		r.Get("/transfers", h.ListTransfersHandler)
		r.Get("/transfers/{transferID}", h.GetTransferHandler)
		r.Post("/transfers/{transferID}/cancel", h.CancelTransferHandler)
	})

	return r
}
