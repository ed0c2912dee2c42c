package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/friendmatch/FriendQuiz/internal/models"
	"github.com/friendmatch/FriendQuiz/internal/store"
)

// GuessLinkPrefix is the start-command argument prefix that triggers the
// guessing flow. The full argument grammar is "guess_<one-or-more-digits>";
// any other argument (including none) starts a plain profile fill.
const GuessLinkPrefix = "guess_"

var guessLinkDigits = regexp.MustCompile(`^[0-9]+$`)

// Engine is the dialogue state machine driving question-by-question
// progression for both the profile-fill and guessing flows. It is pure logic
// over the state manager and the persistence gateway; it never sends
// messages itself and always returns normally.
type Engine struct {
	catalog  *Catalog
	states   *StateManager
	store    store.Store
	linkBase string
}

// NewEngine creates a dialogue engine. linkBase is the public deploy base URL
// embedded into shareable links, e.g. "https://t.me/friendquiz_bot".
func NewEngine(catalog *Catalog, states *StateManager, st store.Store, linkBase string) *Engine {
	return &Engine{catalog: catalog, states: states, store: st, linkBase: linkBase}
}

// ShareLink renders the shareable guessing link for a participant identity.
func (e *Engine) ShareLink(chatID int64) string {
	return fmt.Sprintf("%s?start=%s%d", e.linkBase, GuessLinkPrefix, chatID)
}

// HandleStart processes a start command with an optional deep-link argument
// and returns the outgoing message texts. A "guess_<digits>" argument begins
// the guessing flow against the parsed target; anything else begins a fresh
// profile fill. Internal failures never escape: they degrade to fixed texts.
func (e *Engine) HandleStart(ctx context.Context, p models.Participant, arg string) []string {
	arg = strings.TrimSpace(arg)
	slog.Info("Engine HandleStart", "chatID", p.ChatID, "arg", arg)

	// Create the participant record up front so scoring can resolve the
	// guesser later. Storage failure here only degrades durability.
	if _, err := e.store.EnsureParticipant(p); err != nil {
		slog.Warn("Engine HandleStart continuing without participant record", "error", err, "chatID", p.ChatID)
	}

	if strings.HasPrefix(arg, GuessLinkPrefix) {
		return e.startGuessing(ctx, p, strings.TrimPrefix(arg, GuessLinkPrefix))
	}
	return e.startProfile(ctx, p)
}

// HandleText processes a free-text message and returns the outgoing message
// texts. Idle chats produce no reply; the observation is diagnostic only.
func (e *Engine) HandleText(ctx context.Context, p models.Participant, text string) []string {
	state := e.states.Get(p.ChatID)
	slog.Debug("Engine HandleText", "chatID", p.ChatID, "phase", state.Phase, "index", state.Index)

	switch state.Phase {
	case models.PhaseFillingProfile:
		return e.recordAnswer(ctx, p, state, text)
	case models.PhaseGuessing:
		return e.recordGuess(ctx, p, state, text)
	default:
		slog.Info("Engine HandleText unmatched message", "chatID", p.ChatID, "phase", state.Phase)
		return nil
	}
}

func (e *Engine) startProfile(ctx context.Context, p models.Participant) []string {
	if err := e.states.Clear(p.ChatID); err != nil {
		slog.Warn("Engine startProfile clear failed, continuing", "error", err, "chatID", p.ChatID)
	}
	state := models.ConversationState{
		ChatID:  p.ChatID,
		Phase:   models.PhaseFillingProfile,
		Index:   0,
		Answers: make(map[string]string),
	}
	msgs := []string{msgFillIntro}
	return append(msgs, e.continueProfile(ctx, p, state)...)
}

func (e *Engine) startGuessing(ctx context.Context, p models.Participant, digits string) []string {
	if !guessLinkDigits.MatchString(digits) {
		slog.Info("Engine startGuessing malformed link", "chatID", p.ChatID, "arg_suffix", digits)
		return []string{msgBadLink}
	}
	targetID, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		slog.Info("Engine startGuessing target parse failed", "error", err, "chatID", p.ChatID)
		return []string{msgBadLink}
	}

	if err := e.states.Clear(p.ChatID); err != nil {
		slog.Warn("Engine startGuessing clear failed, continuing", "error", err, "chatID", p.ChatID)
	}
	state := models.ConversationState{
		ChatID:   p.ChatID,
		Phase:    models.PhaseGuessing,
		Index:    0,
		Guesses:  make(map[string]string),
		TargetID: targetID,
	}
	msgs := []string{msgGuessIntro}
	return append(msgs, e.continueGuessing(ctx, p, state)...)
}

// continueProfile prompts for the question at the current index, or finalizes
// the flow when the index has reached the catalog length.
func (e *Engine) continueProfile(ctx context.Context, p models.Participant, state models.ConversationState) []string {
	if state.Index >= e.catalog.Len() {
		return e.finishProfile(ctx, p, state)
	}
	if err := e.states.Set(state); err != nil {
		slog.Warn("Engine continueProfile state save failed, continuing", "error", err, "chatID", p.ChatID)
	}
	text, err := e.catalog.Text(state.Index)
	if err != nil {
		slog.Error("Engine continueProfile catalog out of range", "error", err, "chatID", p.ChatID, "index", state.Index)
		e.abort(p.ChatID)
		return []string{GenericFailureMessage}
	}
	return []string{fmt.Sprintf(msgFillPromptFormat, state.Index+1, text)}
}

func (e *Engine) recordAnswer(ctx context.Context, p models.Participant, state models.ConversationState, text string) []string {
	key, err := e.catalog.Key(state.Index)
	if err != nil {
		slog.Error("Engine recordAnswer catalog out of range", "error", err, "chatID", p.ChatID, "index", state.Index)
		e.abort(p.ChatID)
		return []string{GenericFailureMessage}
	}
	if state.Answers == nil {
		state.Answers = make(map[string]string)
	}
	state.Answers[key] = strings.TrimSpace(text)
	state.Index++
	return e.continueProfile(ctx, p, state)
}

// finishProfile persists the accumulated answers (best-effort) and emits the
// shareable link. The conversation returns to idle either way.
func (e *Engine) finishProfile(ctx context.Context, p models.Participant, state models.ConversationState) []string {
	rec, err := e.store.EnsureParticipant(p)
	if err != nil {
		slog.Warn("Engine finishProfile proceeding without persist", "error", err, "chatID", p.ChatID)
	} else if err := e.store.ReplaceProfileAnswers(rec.ID, state.Answers); err != nil {
		slog.Warn("Engine finishProfile answers persist failed, proceeding", "error", err, "chatID", p.ChatID)
	}

	if err := e.states.Clear(p.ChatID); err != nil {
		slog.Warn("Engine finishProfile clear failed", "error", err, "chatID", p.ChatID)
	}
	slog.Info("Engine finishProfile completed", "chatID", p.ChatID, "answers", len(state.Answers))
	return []string{msgFillDonePrefix + e.ShareLink(p.ChatID)}
}

// continueGuessing prompts for the question at the current index, or finalizes
// and scores when the index has reached the catalog length.
func (e *Engine) continueGuessing(ctx context.Context, p models.Participant, state models.ConversationState) []string {
	if state.Index >= e.catalog.Len() {
		return e.finishGuessing(ctx, p, state)
	}
	if err := e.states.Set(state); err != nil {
		slog.Warn("Engine continueGuessing state save failed, continuing", "error", err, "chatID", p.ChatID)
	}
	text, err := e.catalog.Text(state.Index)
	if err != nil {
		slog.Error("Engine continueGuessing catalog out of range", "error", err, "chatID", p.ChatID, "index", state.Index)
		e.abort(p.ChatID)
		return []string{GenericFailureMessage}
	}
	return []string{fmt.Sprintf(msgGuessPromptFormat, text)}
}

func (e *Engine) recordGuess(ctx context.Context, p models.Participant, state models.ConversationState, text string) []string {
	key, err := e.catalog.Key(state.Index)
	if err != nil {
		slog.Error("Engine recordGuess catalog out of range", "error", err, "chatID", p.ChatID, "index", state.Index)
		e.abort(p.ChatID)
		return []string{GenericFailureMessage}
	}
	if state.Guesses == nil {
		state.Guesses = make(map[string]string)
	}
	state.Guesses[key] = strings.TrimSpace(text)
	state.Index++
	return e.continueGuessing(ctx, p, state)
}

// finishGuessing resolves the target and guesser, records the guesses, and
// scores the session. Persistence failure here is fatal to the attempt: the
// result would be meaningless without storage, so the flow aborts with a
// user-visible message. State is cleared on every outcome.
func (e *Engine) finishGuessing(ctx context.Context, p models.Participant, state models.ConversationState) []string {
	defer e.abort(p.ChatID)

	owner, err := e.store.FindParticipant(state.TargetID)
	if err == models.ErrParticipantNotFound {
		slog.Info("Engine finishGuessing target profile missing", "chatID", p.ChatID, "targetID", state.TargetID)
		return []string{msgProfileMissing}
	}
	if err != nil {
		slog.Warn("Engine finishGuessing target lookup failed", "error", err, "chatID", p.ChatID, "targetID", state.TargetID)
		return []string{msgScoringUnavailable}
	}

	guesser, err := e.store.FindParticipant(p.ChatID)
	if err == models.ErrParticipantNotFound {
		slog.Info("Engine finishGuessing guesser unresolved", "chatID", p.ChatID)
		return []string{msgGuesserUnresolved}
	}
	if err != nil {
		slog.Warn("Engine finishGuessing guesser lookup failed", "error", err, "chatID", p.ChatID)
		return []string{msgScoringUnavailable}
	}

	ownerAnswers, err := e.store.GetProfileAnswers(owner.ID)
	if err != nil {
		slog.Warn("Engine finishGuessing answers lookup failed", "error", err, "chatID", p.ChatID, "ownerID", owner.ID)
		return []string{msgScoringUnavailable}
	}

	if err := e.store.AddGuessRecords(owner.ID, guesser.ID, state.Guesses); err != nil {
		slog.Warn("Engine finishGuessing guess persist failed", "error", err, "chatID", p.ChatID, "ownerID", owner.ID)
		return []string{msgScoringUnavailable}
	}

	result := Score(e.catalog.Len(), ownerAnswers, state.Guesses)
	slog.Info("Engine finishGuessing scored", "chatID", p.ChatID, "targetID", state.TargetID,
		"matches", result.Matches, "total", result.Total, "percent", result.Percent)
	return []string{fmt.Sprintf(msgScoreFormat, result.Matches, result.Total, result.Percent, FunComment(result.Percent))}
}

// abort clears conversation state so a failed flow never leaves a stuck session.
func (e *Engine) abort(chatID int64) {
	if err := e.states.Clear(chatID); err != nil {
		slog.Warn("Engine abort clear failed", "error", err, "chatID", chatID)
	}
}
