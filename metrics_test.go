package bifrost

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestOutcomeLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrTokenExpired, "expired"},
		{fmt.Errorf("wrapped: %w", ErrTokenInvalid), "invalid"},
		{ErrInvalidCredential, "bad_credential"},
		{ErrMissingToken, "missing"},
		{ErrMissingKey, "missing"},
		{ErrMissingClaim, "missing"},
		{ErrIPNotAllowed, "ip_denied"},
		{ErrRateLimited, "rate_limited"},
		{ErrSecretNotConfigured, "misconfigured"},
		{fmt.Errorf("boom"), "error"},
	}
	for _, tt := range tests {
		if got := outcomeLabel(tt.err); got != tt.want {
			t.Errorf("outcomeLabel(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestInstrumentHTTPAndMetricsEndpoint(t *testing.T) {
	b, _ := newTestBifrost(t, nil)

	r := chi.NewRouter()
	r.Use(InstrumentHTTP)
	r.Handle("/metrics", MetricsHandler())
	r.Mount("/", b.Router())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/validate?token=x", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 to pass through, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	if !strings.Contains(body, "bifrost_http_requests_total") {
		t.Error("Expected HTTP request counter in scrape output")
	}
	if !strings.Contains(body, "bifrost_validations_total") {
		t.Error("Expected validation counter in scrape output")
	}
	if strings.Contains(body, "token=x") {
		t.Error("Query strings must not leak into metric labels")
	}
}
