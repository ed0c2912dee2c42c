package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/friendmatch/FriendQuiz/internal/models"
	"github.com/friendmatch/FriendQuiz/internal/twiliosms"
)

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`\D`)

// MinPhoneNumberDigits is the minimum digit count accepted for a phone identity.
const MinPhoneNumberDigits = 6

// TwilioSMSService implements the Service interface over Twilio SMS.
// Incoming messages arrive via the Twilio webhook endpoint through FeedInbound.
type TwilioSMSService struct {
	client    twiliosms.SMSSender
	responses chan models.Response
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewTwilioSMSService creates a TwilioSMSService with the given sender.
func NewTwilioSMSService(client twiliosms.SMSSender) *TwilioSMSService {
	return &TwilioSMSService{
		client:    client,
		responses: make(chan models.Response, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient canonicalizes a phone number to plain
// digits and validates the result.
func (s *TwilioSMSService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneNumberDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneNumberDigits)
	}
	if recipient != canonical {
		slog.Debug("TwilioSMSService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// SendMessage sends an SMS to the given recipient.
func (s *TwilioSMSService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioSMSService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// Start is a no-op for Twilio; inbound messages arrive via webhook.
func (s *TwilioSMSService) Start(ctx context.Context) error {
	return nil
}

// FeedInbound converts an inbound SMS into a Response and emits it.
// The sender's digits become the participant identity.
func (s *TwilioSMSService) FeedInbound(from, body string) error {
	canonicalFrom, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("TwilioSMSService rejecting inbound SMS", "error", err, "from", from)
		return err
	}
	chatID, err := strconv.ParseInt(canonicalFrom, 10, 64)
	if err != nil {
		slog.Warn("TwilioSMSService inbound identity parse failed", "error", err, "from", canonicalFrom)
		return fmt.Errorf("invalid sender identity %q: %w", canonicalFrom, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrServiceStopped
	}
	resp := models.Response{From: models.Participant{ChatID: chatID}, Body: body, Time: time.Now().Unix()}
	select {
	case s.responses <- resp:
		return nil
	default:
		slog.Warn("TwilioSMSService response channel full, dropping message", "from", canonicalFrom)
		return fmt.Errorf("response channel full")
	}
}

// Stop stops the service and closes the response channel.
func (s *TwilioSMSService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.responses)
	}()
	return nil
}

// Responses returns the channel of incoming participant messages.
func (s *TwilioSMSService) Responses() <-chan models.Response {
	return s.responses
}
