/**
 * @description
 * Custom middleware for the HTTP router. The orchestrator is consumed by other
 * internal services, so its API endpoints are protected by a shared internal
 * API key rather than end-user authentication.
 */

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// InternalAPIKeyHeader authenticates service-to-service calls.
const InternalAPIKeyHeader = "x-internal-api-key"

// InternalAuthMiddleware rejects requests that do not present the configured
// internal API key. An empty configured key disables the check (local dev).
func InternalAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(apiKey) == "" {
				next.ServeHTTP(w, r)
				return
			}
			provided := r.Header.Get(InternalAPIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid internal api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
