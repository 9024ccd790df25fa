package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	adapthttp "prodmax/internal/adapter/http"
	"prodmax/internal/adapter/maxapi"
	"prodmax/internal/app"
	"prodmax/internal/bot"
	"prodmax/internal/clock"
)

// ---------------------------------------------------------------------------
// Mocks (function-fields pattern)
// ---------------------------------------------------------------------------

type mockMessages struct {
	handled  []bot.Incoming
	handleFn func(ctx context.Context, in bot.Incoming) error
}

func (m *mockMessages) Handle(ctx context.Context, in bot.Incoming) error {
	m.handled = append(m.handled, in)
	if m.handleFn != nil {
		return m.handleFn(ctx, in)
	}
	return nil
}

type mockSubs struct {
	subscribeFn   func(ctx context.Context, webhookURL, secret string) (*maxapi.SimpleResult, error)
	listFn        func(ctx context.Context) ([]maxapi.Subscription, error)
	unsubscribeFn func(ctx context.Context, webhookURL string) (*maxapi.SimpleResult, error)
}

func (m *mockSubs) Subscribe(ctx context.Context, webhookURL, secret string) (*maxapi.SimpleResult, error) {
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, webhookURL, secret)
	}
	return &maxapi.SimpleResult{Success: true}, nil
}

func (m *mockSubs) Subscriptions(ctx context.Context) ([]maxapi.Subscription, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockSubs) Unsubscribe(ctx context.Context, webhookURL string) (*maxapi.SimpleResult, error) {
	if m.unsubscribeFn != nil {
		return m.unsubscribeFn(ctx, webhookURL)
	}
	return &maxapi.SimpleResult{Success: true}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const adminToken = "admin-token"

var adminHash = func() string {
	h, err := app.HashToken(adminToken)
	if err != nil {
		panic(err)
	}
	return h
}()

type testServer struct {
	messages *mockMessages
	subs     *mockSubs
	handler  http.Handler
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	ts := &testServer{messages: &mockMessages{}, subs: &mockSubs{}}
	srv := adapthttp.New(ts.messages, ts.subs, app.NewAdminAuth(adminHash, secret), adapthttp.Options{
		WebhookURL:    "https://bot.example.com/webhook",
		WebhookSecret: secret,
		Clock:         clock.NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&m); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return m
}

var bearer = map[string]string{"Authorization": "Bearer " + adminToken}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	m := decode(t, w)
	if m["status"] != "ok" || m["timestamp"] != "2026-03-10T09:00:00Z" {
		t.Errorf("unexpected body %v", m)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected no-store")
	}
}

func TestWebhook_Probe(t *testing.T) {
	ts := newTestServer(t, "")
	if w := ts.do(http.MethodGet, "/webhook", "", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestWebhook_DispatchesMessage(t *testing.T) {
	ts := newTestServer(t, "")
	body := `{"update_type":"message_created","message":{"sender":{"user_id":42,"name":"Ann"},"recipient":{"chat_id":900},"body":{"text":"/tasks"}}}`

	w := ts.do(http.MethodPost, "/webhook", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if decode(t, w)["ok"] != true {
		t.Errorf("expected ok=true, got %s", w.Body.String())
	}
	if len(ts.messages.handled) != 1 {
		t.Fatalf("expected one handled message, got %d", len(ts.messages.handled))
	}
	want := bot.Incoming{MaxUserID: 42, Name: "Ann", Text: "/tasks", Recipient: bot.Recipient{ChatID: 900}}
	if ts.messages.handled[0] != want {
		t.Errorf("got %+v, want %+v", ts.messages.handled[0], want)
	}
}

func TestWebhook_AlwaysOK(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		handle  error
		wantOK  bool
		handled int
	}{
		{name: "malformed json", body: `{oops`, wantOK: false},
		{name: "nothing to answer", body: `{"update_type":"bot_started"}`, wantOK: true},
		{name: "handler failure", body: `{"user_id":1,"text":"/help"}`, handle: errors.New("send failed"), wantOK: false, handled: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, "")
			ts.messages.handleFn = func(context.Context, bot.Incoming) error { return tt.handle }

			w := ts.do(http.MethodPost, "/webhook", tt.body, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			if got := decode(t, w)["ok"]; got != tt.wantOK {
				t.Errorf("ok = %v, want %v", got, tt.wantOK)
			}
			if len(ts.messages.handled) != tt.handled {
				t.Errorf("handled %d, want %d", len(ts.messages.handled), tt.handled)
			}
		})
	}
}

func TestWebhook_Secret(t *testing.T) {
	ts := newTestServer(t, "s3cret")
	body := `{"user_id":1,"text":"/help"}`

	if w := ts.do(http.MethodPost, "/webhook", body, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing secret: expected 401, got %d", w.Code)
	}
	if w := ts.do(http.MethodPost, "/webhook", body, map[string]string{"X-Max-Bot-Api-Secret": "nope"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: expected 401, got %d", w.Code)
	}
	if len(ts.messages.handled) != 0 {
		t.Fatal("unauthenticated deliveries must not be handled")
	}
	if w := ts.do(http.MethodPost, "/webhook", body, map[string]string{"X-Max-Bot-Api-Secret": "s3cret"}); w.Code != http.StatusOK {
		t.Errorf("right secret: expected 200, got %d", w.Code)
	}
	if len(ts.messages.handled) != 1 {
		t.Error("expected the authentic delivery to be handled")
	}
}

func TestWebhook_ProcessingOutlivesClient(t *testing.T) {
	ts := newTestServer(t, "")
	ts.messages.handleFn = func(ctx context.Context, _ bot.Incoming) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a processing deadline")
		}
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"user_id":1,"text":"/help"}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if decode(t, w)["ok"] != true {
		t.Errorf("processing must not inherit client cancellation, got %s", w.Body.String())
	}
}

func TestAdmin_Auth(t *testing.T) {
	ts := newTestServer(t, "")
	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer wrong"}, http.StatusUnauthorized},
		{"raw token without scheme", map[string]string{"Authorization": adminToken}, http.StatusOK},
		{"bearer", bearer, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := ts.do(http.MethodGet, "/subscription", "", tt.header); w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAdmin_Disabled(t *testing.T) {
	srv := adapthttp.New(&mockMessages{}, &mockSubs{}, app.NewAdminAuth("", ""), adapthttp.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	req := httptest.NewRequest(http.MethodGet, "/subscription", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestSetupWebhook(t *testing.T) {
	ts := newTestServer(t, "s3cret")
	var gotURL, gotSecret string
	ts.subs.subscribeFn = func(_ context.Context, u, secret string) (*maxapi.SimpleResult, error) {
		gotURL, gotSecret = u, secret
		if err := maxapi.ValidateWebhookURL(u); err != nil {
			return nil, err
		}
		return &maxapi.SimpleResult{Success: true}, nil
	}

	w := ts.do(http.MethodPost, "/setup-webhook", "", bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotURL != "https://bot.example.com/webhook" || gotSecret != "s3cret" {
		t.Errorf("expected configured url and secret, got %q %q", gotURL, gotSecret)
	}

	w = ts.do(http.MethodPost, "/setup-webhook", `{"url":"https://other.example.com/hook"}`, bearer)
	if w.Code != http.StatusOK || gotURL != "https://other.example.com/hook" {
		t.Errorf("expected body url to win, got %d %q", w.Code, gotURL)
	}

	if w := ts.do(http.MethodPost, "/setup-webhook", `{"url":"http://insecure.example.com"}`, bearer); w.Code != http.StatusBadRequest {
		t.Errorf("insecure url: expected 400, got %d", w.Code)
	}
	if w := ts.do(http.MethodPost, "/setup-webhook", `{"link":"x"}`, bearer); w.Code != http.StatusBadRequest {
		t.Errorf("unknown field: expected 400, got %d", w.Code)
	}

	ts.subs.subscribeFn = func(context.Context, string, string) (*maxapi.SimpleResult, error) {
		return nil, &maxapi.APIError{StatusCode: http.StatusUnauthorized, Message: "bad token"}
	}
	if w := ts.do(http.MethodPost, "/setup-webhook", "", bearer); w.Code != http.StatusBadGateway {
		t.Errorf("upstream failure: expected 502, got %d", w.Code)
	}
}

func TestSetupWebhook_NoURL(t *testing.T) {
	srv := adapthttp.New(&mockMessages{}, &mockSubs{}, app.NewAdminAuth(adminHash, ""), adapthttp.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	req := httptest.NewRequest(http.MethodPost, "/setup-webhook", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSubscription(t *testing.T) {
	ts := newTestServer(t, "")
	ts.subs.listFn = func(context.Context) ([]maxapi.Subscription, error) {
		return []maxapi.Subscription{{URL: "https://bot.example.com/webhook"}}, nil
	}
	w := ts.do(http.MethodGet, "/subscription", "", bearer)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	subs := decode(t, w)["subscriptions"].([]any)
	if len(subs) != 1 {
		t.Errorf("expected one subscription, got %v", subs)
	}
}

func TestDeleteWebhook(t *testing.T) {
	ts := newTestServer(t, "")
	var gotURL string
	ts.subs.unsubscribeFn = func(_ context.Context, u string) (*maxapi.SimpleResult, error) {
		gotURL = u
		return &maxapi.SimpleResult{Success: true}, nil
	}

	if w := ts.do(http.MethodDelete, "/setup-webhook?url=https://old.example.com/hook", "", bearer); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotURL != "https://old.example.com/hook" {
		t.Errorf("expected query url, got %q", gotURL)
	}

	if w := ts.do(http.MethodDelete, "/setup-webhook", "", bearer); w.Code != http.StatusOK || gotURL != "https://bot.example.com/webhook" {
		t.Errorf("expected configured url, got %d %q", w.Code, gotURL)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, "")
	if w := ts.do(http.MethodPut, "/webhook", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}
