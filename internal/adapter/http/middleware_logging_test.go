package adapthttp

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	s := &Server{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	var seen *slog.Logger
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = loggerFrom(r.Context(), nil)
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("OK")) //nolint:errcheck
	})
	handler := s.loggingMiddleware(nextHandler)

	req := httptest.NewRequest("GET", "/test-path", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, w.Code)
	}
	if seen == nil {
		t.Error("expected a request-scoped logger in the context")
	}
	id := w.Header().Get("X-Request-ID")
	if id == "" {
		t.Fatal("expected a generated request id")
	}

	logOutput := buf.String()
	for _, want := range []string{"method=GET", "path=/test-path", "status=418", "request_id=" + id} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("log output missing %q. Got: %s", want, logOutput)
		}
	}
}

func TestLoggingMiddleware_KeepsInboundRequestID(t *testing.T) {
	var buf bytes.Buffer
	s := &Server{logger: slog.New(slog.NewTextHandler(&buf, nil))}
	handler := s.loggingMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
	if !strings.Contains(buf.String(), "request_id=abc-123") || !strings.Contains(buf.String(), "status=200") {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}
