package adapthttp

import (
	"errors"
	"io"
	"net/http"

	"prodmax/internal/adapter/maxapi"
)

var (
	errUnauthorized  = errors.New("unauthorized")
	errNoWebhookURL  = errors.New("webhook url is not set")
	errAdminDisabled = errors.New("admin endpoints are disabled")
)

type webhookRequest struct {
	URL string `json:"url"`
}

// webhookURL reads the target from an optional JSON body, falling back to
// the ?url= query and then the configured WEBHOOK_URL.
func (s *Server) webhookURL(r *http.Request) (string, error) {
	var req webhookRequest
	if r.ContentLength != 0 {
		if err := parseJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
	}
	if req.URL == "" {
		req.URL = r.URL.Query().Get("url")
	}
	if req.URL == "" {
		req.URL = s.opts.WebhookURL
	}
	if req.URL == "" {
		return "", errNoWebhookURL
	}
	return req.URL, nil
}

func (s *Server) handleSetupWebhook(w http.ResponseWriter, r *http.Request) {
	target, err := s.webhookURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.subs.Subscribe(r.Context(), target, s.opts.WebhookSecret)
	if errors.Is(err, maxapi.ErrInsecureWebhookURL) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		loggerFrom(r.Context(), s.logger).Error("subscribe webhook", "url", target, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	loggerFrom(r.Context(), s.logger).Info("webhook subscribed", "url", target)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": target, "result": res})
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subs.Subscriptions(r.Context())
	if err != nil {
		loggerFrom(r.Context(), s.logger).Error("list subscriptions", "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if subs == nil {
		subs = []maxapi.Subscription{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "subscriptions": subs})
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	target, err := s.webhookURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.subs.Unsubscribe(r.Context(), target)
	if err != nil {
		loggerFrom(r.Context(), s.logger).Error("unsubscribe webhook", "url", target, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	loggerFrom(r.Context(), s.logger).Info("webhook unsubscribed", "url", target)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}
