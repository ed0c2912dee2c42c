package messaging

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/friendmatch/FriendQuiz/internal/flow"
	"github.com/friendmatch/FriendQuiz/internal/models"
	"github.com/google/uuid"
)

// Recognized commands. Any other text is routed to the engine as a free-text
// answer for whatever phase the participant is in.
const (
	CommandStart = "/start"
	CommandPing  = "/ping"
)

// PongMessage is the fixed reply to the ping command.
const PongMessage = "pong"

// Dispatcher consumes incoming responses from a messaging service and routes
// them to the dialogue engine. Responses are processed strictly one at a
// time, which preserves the per-participant message ordering the state
// machine depends on; different participants never share mutable state.
type Dispatcher struct {
	service Service
	engine  *flow.Engine
}

// NewDispatcher creates a dispatcher over the given service and engine.
func NewDispatcher(service Service, engine *flow.Engine) *Dispatcher {
	return &Dispatcher{service: service, engine: engine}
}

// Run consumes the service's response channel until the context is cancelled
// or the channel closes. It blocks; run it in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Dispatcher running")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher stopping: context cancelled")
			return
		case resp, ok := <-d.service.Responses():
			if !ok {
				slog.Info("Dispatcher stopping: response channel closed")
				return
			}
			d.Handle(ctx, resp)
		}
	}
}

// Handle processes one incoming response. It never panics outward: a fault in
// one participant's message must not affect any other participant.
func (d *Dispatcher) Handle(ctx context.Context, resp models.Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher recovered from panic", "panic", r, "chatID", resp.From.ChatID)
			d.send(ctx, resp.From.ChatID, []string{flow.GenericFailureMessage})
		}
	}()

	command, arg := parseCommand(resp.Body)
	var outgoing []string
	switch command {
	case CommandStart:
		outgoing = d.engine.HandleStart(ctx, resp.From, arg)
	case CommandPing:
		slog.Info("Dispatcher ping", "chatID", resp.From.ChatID)
		outgoing = []string{PongMessage}
	default:
		outgoing = d.engine.HandleText(ctx, resp.From, resp.Body)
	}
	d.send(ctx, resp.From.ChatID, outgoing)
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, messages []string) {
	to := strconv.FormatInt(chatID, 10)
	for _, body := range messages {
		msgID := uuid.New().String()
		if err := d.service.SendMessage(ctx, to, body); err != nil {
			slog.Error("Dispatcher send failed", "error", err, "chatID", chatID, "messageID", msgID)
			continue
		}
		slog.Debug("Dispatcher sent message", "chatID", chatID, "messageID", msgID, "body_length", len(body))
	}
}

// parseCommand splits a message into a command and its argument. Non-command
// text returns an empty command. A "@botname" suffix on the command is
// tolerated and stripped.
func parseCommand(body string) (command, arg string) {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "/") {
		return "", ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	command = parts[0]
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}
	switch command {
	case CommandStart, CommandPing:
		return command, arg
	default:
		// Unknown slash commands fall through to the engine as plain text.
		return "", ""
	}
}
