// Package adapthttp implements the HTTP adapter for the application: the MAX
// webhook endpoint and the admin endpoints that manage its subscription.
package adapthttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"prodmax/internal/adapter/maxapi"
	"prodmax/internal/app"
	"prodmax/internal/bot"
	"prodmax/internal/clock"
)

// MessageHandler consumes one parsed webhook message.
type MessageHandler interface {
	Handle(ctx context.Context, in bot.Incoming) error
}

// SubscriptionManager manages the bot's webhook subscription with MAX.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, webhookURL, secret string) (*maxapi.SimpleResult, error)
	Subscriptions(ctx context.Context) ([]maxapi.Subscription, error)
	Unsubscribe(ctx context.Context, webhookURL string) (*maxapi.SimpleResult, error)
}

// Options configures a Server.
type Options struct {
	// WebhookURL is the default subscription target for /setup-webhook.
	WebhookURL string
	// WebhookSecret is registered with MAX alongside the URL.
	WebhookSecret string
	// ProcessTimeout bounds the handling of one webhook delivery.
	ProcessTimeout time.Duration
	Clock          clock.Clock
	Logger         *slog.Logger
}

// Server is the driving HTTP adapter that routes requests to the bot and the
// subscription manager.
type Server struct {
	messages MessageHandler
	subs     SubscriptionManager
	auth     *app.AdminAuth
	opts     Options
	logger   *slog.Logger
}

// New creates a Server.
func New(messages MessageHandler, subs SubscriptionManager, auth *app.AdminAuth, opts Options) *Server {
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		messages: messages,
		subs:     subs,
		auth:     auth,
		opts:     opts,
		logger:   logger.With("component", "http"),
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /webhook", s.handleWebhookProbe)
	mux.HandleFunc("POST /webhook", s.handleWebhook)

	mux.Handle("POST /setup-webhook", s.adminMiddleware(http.HandlerFunc(s.handleSetupWebhook)))
	mux.Handle("DELETE /setup-webhook", s.adminMiddleware(http.HandlerFunc(s.handleDeleteWebhook)))
	mux.Handle("GET /subscription", s.adminMiddleware(http.HandlerFunc(s.handleSubscription)))

	return s.loggingMiddleware(withNoCache(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.opts.Clock.Now().UTC().Format(time.RFC3339),
	})
}
