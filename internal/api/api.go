// Package api provides the HTTP surface of FriendQuiz: the Telegram webhook
// endpoint, the Twilio inbound SMS endpoint, and a health check.
//
// The server only adapts HTTP to the messaging services; all conversation
// logic lives in the flow package behind the dispatcher.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/friendmatch/FriendQuiz/internal/messaging"
)

// Default server configuration constants
const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	WebhookSecret string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithWebhookSecret sets the secret token expected on Telegram webhook requests.
func WithWebhookSecret(secret string) Option {
	return func(o *Opts) {
		o.WebhookSecret = secret
	}
}

// Server is the FriendQuiz HTTP server. Either messaging service may be nil;
// the corresponding endpoint then rejects requests.
type Server struct {
	addr            string
	webhookSecret   string
	telegramService *messaging.TelegramService
	twilioService   *messaging.TwilioSMSService
	httpServer      *http.Server
}

// NewServer creates an API server over the given messaging services.
func NewServer(tg *messaging.TelegramService, sms *messaging.TwilioSMSService, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	slog.Debug("Creating API server", "addr", cfg.Addr, "webhook_secret_set", cfg.WebhookSecret != "")
	return &Server{
		addr:            cfg.Addr,
		webhookSecret:   cfg.WebhookSecret,
		telegramService: tg,
		twilioService:   sms,
	}
}

// Start begins serving HTTP in a background goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.telegramWebhookHandler)
	mux.HandleFunc("/twilio/webhook", s.twilioWebhookHandler)
	mux.HandleFunc("/health", s.healthHandler)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		slog.Info("API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	slog.Debug("Shutting down API server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("API server shutdown failed", "error", err)
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	slog.Info("API server stopped")
	return nil
}
