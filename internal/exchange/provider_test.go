package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avoronov/billfold/internal/domain"
)

func TestAPIProvider_PairRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pair/EUR/USD" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"success","conversion_rate":1.0842}`))
	}))
	defer srv.Close()

	p := NewAPIProvider(srv.URL)
	rate, err := p.PairRate(context.Background(), "eur", "usd")
	if err != nil {
		t.Fatalf("PairRate error: %v", err)
	}
	if rate != 1.0842 {
		t.Errorf("PairRate = %v, want 1.0842", rate)
	}
}

func TestAPIProvider_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-200 status", http.StatusInternalServerError, ""},
		{"non-success result", http.StatusOK, `{"result":"error","error-type":"unsupported-code"}`},
		{"missing rate", http.StatusOK, `{"result":"success"}`},
		{"unparsable body", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewAPIProvider(srv.URL)
			_, err := p.PairRate(context.Background(), "EUR", "USD")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !domain.IsExternal(err) {
				t.Errorf("error %v is not an ExternalServiceError", err)
			}
		})
	}
}
