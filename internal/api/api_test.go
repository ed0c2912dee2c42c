package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/friendmatch/FriendQuiz/internal/messaging"
)

const testSecret = "test-webhook-secret"

func newTestServer() (*Server, *messaging.TelegramService, *messaging.TwilioSMSService) {
	tg := messaging.NewTelegramService(nil, false)
	sms := messaging.NewTwilioSMSService(nil)
	s := NewServer(tg, sms, WithWebhookSecret(testSecret))
	return s, tg, sms
}

func postWebhook(s *Server, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
	}
	w := httptest.NewRecorder()
	s.telegramWebhookHandler(w, req)
	return w
}

func TestTelegramWebhookRejectsWrongSecret(t *testing.T) {
	s, _, _ := newTestServer()

	w := postWebhook(s, "wrong-secret", `{"update_id":1}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	w = postWebhook(s, "", `{"update_id":1}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing secret, got %d", w.Code)
	}
}

func TestTelegramWebhookRejectsInvalidJSON(t *testing.T) {
	s, _, _ := newTestServer()

	w := postWebhook(s, testSecret, `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestTelegramWebhookRejectsWrongMethod(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	w := httptest.NewRecorder()
	s.telegramWebhookHandler(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestTelegramWebhookFeedsUpdate(t *testing.T) {
	s, tg, _ := newTestServer()

	body := `{"update_id":7,"message":{"message_id":1,"date":1700000000,"text":"/ping","chat":{"id":42},"from":{"id":42,"username":"anna"}}}`
	w := postWebhook(s, testSecret, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	select {
	case resp := <-tg.Responses():
		if resp.From.ChatID != 42 || resp.Body != "/ping" {
			t.Errorf("unexpected response %+v", resp)
		}
	default:
		t.Fatal("expected update to reach the messaging service")
	}
}

func TestTelegramWebhookWithoutService(t *testing.T) {
	s := NewServer(nil, nil, WithWebhookSecret(testSecret))

	w := postWebhook(s, testSecret, `{"update_id":1}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestTwilioWebhookFeedsInbound(t *testing.T) {
	s, _, sms := newTestServer()

	form := url.Values{"From": {"+15551234567"}, "Body": {"blue"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.twilioWebhookHandler(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	select {
	case resp := <-sms.Responses():
		if resp.From.ChatID != 15551234567 || resp.Body != "blue" {
			t.Errorf("unexpected response %+v", resp)
		}
	default:
		t.Fatal("expected inbound SMS to reach the messaging service")
	}
}

func TestTwilioWebhookRejectsBadSender(t *testing.T) {
	s, _, _ := newTestServer()

	form := url.Values{"From": {"garbage"}, "Body": {"blue"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.twilioWebhookHandler(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("unexpected body %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	w = httptest.NewRecorder()
	s.healthHandler(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}
