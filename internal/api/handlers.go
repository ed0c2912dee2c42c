// Package api provides HTTP handlers for FriendQuiz endpoints.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/friendmatch/FriendQuiz/internal/models"
	"github.com/friendmatch/FriendQuiz/internal/telegram"
)

// telegramSecretHeader carries the secret token Telegram echoes back on
// webhook deliveries.
const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// telegramWebhookHandler accepts Telegram update deliveries and feeds them to
// the messaging service. Transport-level auth is a constant-time comparison of
// the secret token header.
func (s *Server) telegramWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.telegramWebhookHandler: processing webhook request", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.telegramWebhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.telegramService == nil {
		slog.Warn("Server.telegramWebhookHandler: telegram transport not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Telegram transport not configured"))
		return
	}

	secret := r.Header.Get(telegramSecretHeader)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.webhookSecret)) != 1 {
		slog.Warn("Server.telegramWebhookHandler: invalid secret token")
		writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid secret token"))
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("Server.telegramWebhookHandler: failed to decode update", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	s.telegramService.FeedUpdate(update)
	slog.Debug("Server.telegramWebhookHandler: update accepted", "updateID", update.UpdateID)
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// twilioWebhookHandler accepts Twilio inbound SMS callbacks (form-encoded
// From/Body pairs) and feeds them to the SMS service.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.twilioWebhookHandler: processing inbound SMS", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.twilioWebhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.twilioService == nil {
		slog.Warn("Server.twilioWebhookHandler: twilio transport not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Twilio transport not configured"))
		return
	}

	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.twilioWebhookHandler: failed to parse form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid form data"))
		return
	}
	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if err := s.twilioService.FeedInbound(from, body); err != nil {
		slog.Warn("Server.twilioWebhookHandler: inbound SMS rejected", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid sender"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}
