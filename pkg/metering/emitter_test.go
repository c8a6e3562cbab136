package metering

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestHTTPEmitter_SuccessOnAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization header = %q, want Bearer test-key", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e := NewHTTPEmitter(srv.URL, "test-key")
	if err := e.Emit(context.Background(), LedgerEvent{EventID: uuid.New()}); err != nil {
		t.Errorf("Emit() error = %v, want nil", err)
	}
}

func TestHTTPEmitter_ErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPEmitter(srv.URL, "")
	if err := e.Emit(context.Background(), LedgerEvent{EventID: uuid.New()}); err == nil {
		t.Error("Emit() error = nil, want an error for a 500 response")
	}
}

func TestNoopEmitter_AlwaysSucceeds(t *testing.T) {
	e := &NoopEmitter{Logger: slog.Default()}
	if err := e.Emit(context.Background(), LedgerEvent{EventID: uuid.New()}); err != nil {
		t.Errorf("Emit() error = %v, want nil", err)
	}
}
