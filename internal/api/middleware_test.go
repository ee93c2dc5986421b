package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestInternalAuthMiddleware_RejectsMissingAndWrongKey(t *testing.T) {
	handler := InternalAuthMiddleware("sk_internal_123")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transfers", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/transfers", nil)
	req.Header.Set(InternalAPIKeyHeader, "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: expected 401, got %d", rec.Code)
	}
}

func TestInternalAuthMiddleware_AcceptsConfiguredKey(t *testing.T) {
	handler := InternalAuthMiddleware("sk_internal_123")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/transfers", nil)
	req.Header.Set(InternalAPIKeyHeader, "sk_internal_123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestInternalAuthMiddleware_EmptyKeyDisablesCheck(t *testing.T) {
	handler := InternalAuthMiddleware("")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transfers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth disabled, got %d", rec.Code)
	}
}
