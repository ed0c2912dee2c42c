package messaging

import (
	"context"
	"testing"

	"github.com/friendmatch/FriendQuiz/internal/telegram"
)

func TestTelegramValidateAndCanonicalizeRecipient(t *testing.T) {
	s := NewTelegramService(nil, false)
	cases := []struct {
		recipient string
		want      string
		wantErr   bool
	}{
		{"123456789", "123456789", false},
		{"-100123456", "-100123456", false}, // group chats are negative
		{"", "", true},
		{"12a34", "", true},
		{"+123456", "", true},
	}
	for _, c := range cases {
		got, err := s.ValidateAndCanonicalizeRecipient(c.recipient)
		if c.wantErr {
			if err == nil {
				t.Errorf("expected error for %q, got %q", c.recipient, got)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("ValidateAndCanonicalizeRecipient(%q) = (%q, %v), want %q", c.recipient, got, err, c.want)
		}
	}
}

func TestTelegramFeedUpdateEmitsResponse(t *testing.T) {
	s := NewTelegramService(nil, false)

	s.FeedUpdate(telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			Text: "/start guess_42",
			Date: 1700000000,
			Chat: &telegram.Chat{ID: 42},
			From: &telegram.User{Username: "anna", FirstName: "Anna"},
		},
	})

	select {
	case resp := <-s.Responses():
		if resp.From.ChatID != 42 || resp.From.Username != "anna" {
			t.Errorf("unexpected participant: %+v", resp.From)
		}
		if resp.Body != "/start guess_42" || resp.Time != 1700000000 {
			t.Errorf("unexpected response: %+v", resp)
		}
	default:
		t.Fatal("expected a response to be emitted")
	}
}

func TestTelegramFeedUpdateIgnoresNonMessageUpdates(t *testing.T) {
	s := NewTelegramService(nil, false)

	s.FeedUpdate(telegram.Update{UpdateID: 1})
	s.FeedUpdate(telegram.Update{UpdateID: 2, Message: &telegram.Message{Text: "orphan"}})

	select {
	case resp := <-s.Responses():
		t.Fatalf("expected no response, got %+v", resp)
	default:
	}
}

func TestTelegramServiceStopIsIdempotent(t *testing.T) {
	s := NewTelegramService(nil, false)
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second stop should be a no-op, got %v", err)
	}
	if err := s.SendMessage(context.Background(), "42", "late"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func TestTelegramServiceDropsUpdatesAfterStop(t *testing.T) {
	s := NewTelegramService(nil, false)
	s.Stop()

	s.FeedUpdate(telegram.Update{
		UpdateID: 1,
		Message:  &telegram.Message{Text: "late", Chat: &telegram.Chat{ID: 42}},
	})

	select {
	case resp, ok := <-s.Responses():
		if ok {
			t.Fatalf("expected no response after stop, got %+v", resp)
		}
	default:
	}
}
