package maxapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"prodmax/internal/bot"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "bot-token", time.Second, nil)
}

func TestSend_KeyboardAndQuery(t *testing.T) {
	var gotBody NewMessageBody
	var gotRaw map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "bot-token" {
			t.Errorf("Authorization = %q, want raw token", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
		if got := r.URL.Query().Get("chat_id"); got != "900" {
			t.Errorf("chat_id = %q, want 900", got)
		}
		if r.URL.Query().Has("user_id") {
			t.Error("user_id must not be set when chat_id is known")
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.Unmarshal(data, &gotRaw) //nolint:errcheck

		w.Write([]byte(`{"message":{}}`)) //nolint:errcheck
	})

	reply := bot.Reply{
		Text: "hello",
		Buttons: []bot.Button{
			{Text: "A"}, {Text: "B"}, {Text: "C", Command: "/pomodoro start"},
		},
	}
	if err := c.Send(context.Background(), bot.Recipient{ChatID: 900, UserID: 42}, reply); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if gotBody.Text != "hello" {
		t.Errorf("text = %q", gotBody.Text)
	}

	atts := gotRaw["attachments"].([]any)
	kb := atts[0].(map[string]any)
	if kb["type"] != "inline_keyboard" {
		t.Fatalf("attachment type = %v", kb["type"])
	}
	rows := kb["payload"].(map[string]any)["buttons"].([]any)
	if len(rows) != 2 || len(rows[0].([]any)) != 2 || len(rows[1].([]any)) != 1 {
		t.Fatalf("expected rows of two, got %v", rows)
	}
	cb := rows[1].([]any)[0].(map[string]any)
	if cb["type"] != "callback" || cb["payload"] != `{"command":"/pomodoro start"}` {
		t.Errorf("unexpected callback button %v", cb)
	}
	if first := rows[0].([]any)[0].(map[string]any); first["type"] != "message" {
		t.Errorf("plain button type = %v, want message", first["type"])
	}
}

func TestSend_FallsBackToUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_id"); got != "42" {
			t.Errorf("user_id = %q, want 42", got)
		}
		if _, err := io.ReadAll(r.Body); err != nil {
			t.Error(err)
		}
		if strings.Contains(r.URL.RawQuery, "chat_id") {
			t.Error("unexpected chat_id")
		}
	})
	if err := c.Send(context.Background(), bot.Recipient{UserID: 42}, bot.Reply{Text: "x"}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
}

func TestSend_NoRecipient(t *testing.T) {
	c := New("http://127.0.0.1:0", "t", time.Second, nil)
	if err := c.Send(context.Background(), bot.Recipient{}, bot.Reply{Text: "x"}); err == nil {
		t.Fatal("expected error without recipient")
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"verify.token","message":"Invalid access_token"}`)) //nolint:errcheck
	})
	_, err := c.GetUser(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("IsStatus(401) = false for %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "verify.token" {
		t.Errorf("unexpected error %v", err)
	}
	if !strings.Contains(err.Error(), "HTTP 401") {
		t.Errorf("error = %q, want it to contain 'HTTP 401'", err)
	}
}

func TestAPIError_PlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	_, err := c.Subscriptions(context.Background())
	if !IsStatus(err, http.StatusBadGateway) || !strings.Contains(err.Error(), "bad gateway") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestLookupUsername(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"name", User{Name: "Ann Lee", FirstName: "Ann"}, "Ann Lee"},
		{"first and last", User{FirstName: "Ann", LastName: "Lee"}, "Ann Lee"},
		{"first only", User{FirstName: "Ann"}, "Ann"},
		{"username", User{Username: "ann"}, "ann"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/users/7" {
					http.NotFound(w, r)
					return
				}
				json.NewEncoder(w).Encode(tt.user) //nolint:errcheck
			})
			got, err := c.LookupUsername(context.Background(), 7)
			if err != nil {
				t.Fatalf("LookupUsername() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubscribe(t *testing.T) {
	var body map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/subscriptions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"success":true}`)) //nolint:errcheck
	})

	res, err := c.Subscribe(context.Background(), "https://bot.example.com/webhook", "s3cret")
	if err != nil {
		t.Fatalf("Subscribe() error: %v", err)
	}
	if !res.Success {
		t.Error("expected success")
	}
	if body["url"] != "https://bot.example.com/webhook" || body["secret"] != "s3cret" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestSubscribe_RejectsInsecureURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})
	for _, u := range []string{"http://bot.example.com/webhook", "bot.example.com", "https://"} {
		if _, err := c.Subscribe(context.Background(), u, ""); !errors.Is(err, ErrInsecureWebhookURL) {
			t.Errorf("Subscribe(%q) error = %v, want ErrInsecureWebhookURL", u, err)
		}
	}
}

func TestSubscriptionsAndUnsubscribe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"subscriptions":[{"url":"https://a.example/webhook","time":1700000000000}]}`)) //nolint:errcheck
		case http.MethodDelete:
			if got := r.URL.Query().Get("url"); got != "https://a.example/webhook" {
				t.Errorf("url = %q", got)
			}
			w.Write([]byte(`{"success":true}`)) //nolint:errcheck
		}
	})

	subs, err := c.Subscriptions(context.Background())
	if err != nil {
		t.Fatalf("Subscriptions() error: %v", err)
	}
	if len(subs) != 1 || subs[0].URL != "https://a.example/webhook" {
		t.Fatalf("unexpected subscriptions %+v", subs)
	}

	res, err := c.Unsubscribe(context.Background(), subs[0].URL)
	if err != nil || !res.Success {
		t.Fatalf("Unsubscribe() = %+v, %v", res, err)
	}
}
