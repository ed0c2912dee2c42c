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
	"github.com/friendmatch/FriendQuiz/internal/telegram"
)

// chatIDRegex matches a Telegram chat identity in plain decimal form.
// Group chats have negative identities.
var chatIDRegex = regexp.MustCompile(`^-?[0-9]+$`)

// Polling configuration constants
const (
	// DefaultPollTimeout is the long-poll timeout for getUpdates.
	DefaultPollTimeout = 30 * time.Second
	// DefaultPollRetryDelay is the backoff after a failed getUpdates call.
	DefaultPollRetryDelay = 5 * time.Second
)

// TelegramService implements the Service interface over the Telegram Bot API.
// Incoming updates arrive either from the long-polling loop started by Start,
// or from the webhook endpoint via FeedUpdate; both feed the same channel.
type TelegramService struct {
	client    *telegram.Client
	polling   bool
	responses chan models.Response
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewTelegramService creates a TelegramService. When polling is true, Start
// launches a getUpdates loop; otherwise updates are expected via FeedUpdate.
func NewTelegramService(client *telegram.Client, polling bool) *TelegramService {
	return &TelegramService{
		client:    client,
		polling:   polling,
		responses: make(chan models.Response, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient validates a decimal chat identity.
func (s *TelegramService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	if !chatIDRegex.MatchString(recipient) {
		return "", fmt.Errorf("invalid chat identity %q: must be a decimal integer", recipient)
	}
	return recipient, nil
}

// SendMessage sends a text message to the given chat identity.
func (s *TelegramService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TelegramService SendMessage validation error", "error", err, "to", to)
		return err
	}
	chatID, err := strconv.ParseInt(canonicalTo, 10, 64)
	if err != nil {
		slog.Error("TelegramService SendMessage chat identity parse failed", "error", err, "to", canonicalTo)
		return fmt.Errorf("invalid chat identity %q: %w", canonicalTo, err)
	}
	return s.client.SendMessage(ctx, chatID, body)
}

// Start launches the long-polling loop when polling mode is enabled.
func (s *TelegramService) Start(ctx context.Context) error {
	if !s.polling {
		slog.Debug("TelegramService webhook mode, polling loop not started")
		return nil
	}
	go s.pollLoop(ctx)
	slog.Info("TelegramService polling loop started")
	return nil
}

func (s *TelegramService) pollLoop(ctx context.Context) {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		updates, err := s.client.GetUpdates(ctx, offset, DefaultPollTimeout)
		if err != nil {
			slog.Warn("TelegramService getUpdates failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-time.After(DefaultPollRetryDelay):
			}
			continue
		}
		for _, update := range updates {
			offset = update.UpdateID + 1
			s.FeedUpdate(update)
		}
	}
}

// FeedUpdate converts a Telegram update into a Response and emits it.
// Updates without a text message are ignored.
func (s *TelegramService) FeedUpdate(update telegram.Update) {
	if update.Message == nil || update.Message.Chat == nil {
		slog.Debug("TelegramService ignoring update without message", "updateID", update.UpdateID)
		return
	}
	msg := update.Message
	participant := models.Participant{ChatID: msg.Chat.ID}
	if msg.From != nil {
		participant.Username = msg.From.Username
		participant.FirstName = msg.From.FirstName
	}
	s.safeEmit(models.Response{From: participant, Body: msg.Text, Time: msg.Date})
}

func (s *TelegramService) safeEmit(resp models.Response) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	select {
	case s.responses <- resp:
	default:
		slog.Warn("TelegramService response channel full, dropping update", "chatID", resp.From.ChatID)
	}
}

// Stop stops background processing and closes the response channel.
func (s *TelegramService) Stop() error {
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
func (s *TelegramService) Responses() <-chan models.Response {
	return s.responses
}
