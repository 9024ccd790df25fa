package adapthttp

import (
	"context"
	"io"
	"net/http"

	"prodmax/internal/adapter/maxapi"
)

// maxWebhookBody caps a single delivery; MAX updates are a few KB.
const maxWebhookBody = 1 << 20

const secretHeader = "X-Max-Bot-Api-Secret"

func (s *Server) handleWebhookProbe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "webhook endpoint is active"})
}

// handleWebhook answers 200 for every authentic delivery, including ones it
// cannot parse or fails to process, so that MAX does not redeliver them.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := loggerFrom(r.Context(), s.logger)

	if !s.auth.VerifyWebhookSecret(r.Header.Get(secretHeader)) {
		log.Warn("webhook secret mismatch", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Warn("read webhook body", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}

	in, ok, err := maxapi.ParseUpdate(body)
	if err != nil {
		log.Warn("parse webhook update", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}
	if !ok {
		log.Debug("webhook update ignored")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// Processing must outlive a client that hangs up early.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.ProcessTimeout)
	defer cancel()

	if err := s.messages.Handle(ctx, in); err != nil {
		log.Error("handle webhook message", "max_user_id", in.MaxUserID, "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
