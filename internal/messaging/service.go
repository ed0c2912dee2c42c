// Package messaging provides pluggable message transports for FriendQuiz and
// the dispatcher that routes incoming participant messages to the dialogue
// engine.
package messaging

import (
	"context"
	"errors"

	"github.com/friendmatch/FriendQuiz/internal/models"
)

// DefaultChannelBufferSize is the buffer size for incoming response channels.
const DefaultChannelBufferSize = 100

// ErrServiceStopped is returned when operations are attempted on a stopped service.
var ErrServiceStopped = errors.New("messaging service is stopped")

// Service defines a pluggable message delivery abstraction.
// Recipients are participant identities rendered as plain decimal integers.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Each transport implements its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., polling for updates).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming participant messages.
	Responses() <-chan models.Response
}
