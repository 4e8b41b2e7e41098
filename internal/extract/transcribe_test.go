package extract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avoronov/billfold/internal/domain"
)

func TestHTTPTranscriber_ConcatenatesSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "audio/m4a" {
			t.Errorf("Content-Type = %q, want audio/m4a", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "fake-audio" {
			t.Errorf("body = %q", body)
		}
		w.Write([]byte(`{"segments": [
			{"start": 0, "end": 1.5, "text": " paid ten dollars "},
			{"start": 1.5, "end": 3, "text": "for lunch"}
		]}`))
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL)
	text, err := tr.Transcribe(context.Background(), []byte("fake-audio"), "audio/m4a")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "paid ten dollars for lunch" {
		t.Errorf("text = %q", text)
	}
}

func TestHTTPTranscriber_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-success status", http.StatusBadGateway, ""},
		{"unparsable payload", http.StatusOK, "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := NewHTTPTranscriber(srv.URL)
			_, err := tr.Transcribe(context.Background(), []byte("x"), "audio/m4a")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !domain.IsExternal(err) {
				t.Errorf("error %v is not an ExternalServiceError", err)
			}
		})
	}
}
