package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/friendmatch/FriendQuiz/internal/models"
	"github.com/friendmatch/FriendQuiz/internal/store"
)

const testLinkBase = "https://t.me/friendquiz_bot"

func newTestEngine(st store.Store, catalog *Catalog) *Engine {
	return NewEngine(catalog, NewStateManager(st), st, testLinkBase)
}

func smallCatalog() *Catalog {
	return NewCatalog([]Question{
		{Key: "fav_color", Text: "Любимый цвет?"},
		{Key: "season", Text: "Любимое время года?"},
	})
}

// failingStore wraps an in-memory store with injectable failures.
type failingStore struct {
	store.Store
	failEnsure  bool
	failGuesses bool
}

func (f *failingStore) EnsureParticipant(p models.Participant) (*models.ParticipantRecord, error) {
	if f.failEnsure {
		return nil, models.ErrStorageUnavailable
	}
	return f.Store.EnsureParticipant(p)
}

func (f *failingStore) AddGuessRecords(ownerID, guesserID int64, guesses map[string]string) error {
	if f.failGuesses {
		return models.ErrStorageUnavailable
	}
	return f.Store.AddGuessRecords(ownerID, guesserID, guesses)
}

func fillProfile(t *testing.T, e *Engine, catalog *Catalog, p models.Participant, answer func(i int) string) []string {
	t.Helper()
	ctx := context.Background()
	msgs := e.HandleStart(ctx, p, "")
	if len(msgs) != 2 {
		t.Fatalf("expected intro and first prompt, got %d messages: %v", len(msgs), msgs)
	}
	var last []string
	for i := 0; i < catalog.Len(); i++ {
		last = e.HandleText(ctx, p, answer(i))
	}
	return last
}

func guessProfile(t *testing.T, e *Engine, catalog *Catalog, p models.Participant, targetID int64, guess func(i int) string) []string {
	t.Helper()
	ctx := context.Background()
	msgs := e.HandleStart(ctx, p, fmt.Sprintf("guess_%d", targetID))
	if len(msgs) != 2 {
		t.Fatalf("expected confirmation and first prompt, got %d messages: %v", len(msgs), msgs)
	}
	if msgs[0] != msgGuessIntro {
		t.Fatalf("expected guess intro, got %q", msgs[0])
	}
	var last []string
	for i := 0; i < catalog.Len(); i++ {
		last = e.HandleText(ctx, p, guess(i))
	}
	return last
}

func TestStartProfileFlow(t *testing.T) {
	st := store.NewInMemoryStore()
	catalog := smallCatalog()
	e := newTestEngine(st, catalog)

	msgs := e.HandleStart(context.Background(), models.Participant{ChatID: 42}, "")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d: %v", len(msgs), msgs)
	}
	if msgs[0] != msgFillIntro {
		t.Errorf("expected fill intro, got %q", msgs[0])
	}
	if msgs[1] != "Вопрос 1. Любимый цвет?" {
		t.Errorf("unexpected first prompt: %q", msgs[1])
	}

	state, err := st.GetConversationState(42)
	if err != nil || state == nil {
		t.Fatalf("expected stored state, got %v, %v", state, err)
	}
	if state.Phase != models.PhaseFillingProfile || state.Index != 0 {
		t.Errorf("expected FillingProfile at index 0, got %s at %d", state.Phase, state.Index)
	}
}

func TestFillProfileCompletion(t *testing.T) {
	st := store.NewInMemoryStore()
	catalog := smallCatalog()
	e := newTestEngine(st, catalog)
	p := models.Participant{ChatID: 42, Username: "anna"}

	last := fillProfile(t, e, catalog, p, func(i int) string { return fmt.Sprintf(" Answer %d ", i) })
	if len(last) != 1 {
		t.Fatalf("expected a single completion message, got %v", last)
	}
	wantLink := testLinkBase + "?start=guess_42"
	if !strings.Contains(last[0], wantLink) {
		t.Errorf("completion message %q does not contain link %q", last[0], wantLink)
	}

	rec, err := st.FindParticipant(42)
	if err != nil {
		t.Fatalf("participant not persisted: %v", err)
	}
	answers, err := st.GetProfileAnswers(rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answers) != catalog.Len() {
		t.Fatalf("expected %d answers, got %d", catalog.Len(), len(answers))
	}
	// Answers are trimmed before storage.
	if answers["fav_color"] != "Answer 0" {
		t.Errorf("expected trimmed answer, got %q", answers["fav_color"])
	}

	state, _ := st.GetConversationState(42)
	if state != nil {
		t.Errorf("expected state cleared after completion, got %+v", state)
	}
}

func TestFillProfileTwiceReplacesAnswers(t *testing.T) {
	st := store.NewInMemoryStore()
	catalog := smallCatalog()
	e := newTestEngine(st, catalog)
	p := models.Participant{ChatID: 42}

	fillProfile(t, e, catalog, p, func(i int) string { return "first" })
	fillProfile(t, e, catalog, p, func(i int) string { return "second" })

	rec, err := st.FindParticipant(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	answers, err := st.GetProfileAnswers(rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answers) != catalog.Len() {
		t.Fatalf("expected exactly %d answers after re-completion, got %d", catalog.Len(), len(answers))
	}
	for key, value := range answers {
		if value != "second" {
			t.Errorf("answer %q not replaced: %q", key, value)
		}
	}
}

func TestStartResetsMidFlowState(t *testing.T) {
	st := store.NewInMemoryStore()
	catalog := smallCatalog()
	e := newTestEngine(st, catalog)
	ctx := context.Background()
	p := models.Participant{ChatID: 42}

	e.HandleStart(ctx, p, "")
	e.HandleText(ctx, p, "midway")

	state, _ := st.GetConversationState(42)
	if state == nil || state.Index != 1 {
		t.Fatalf("expected index 1 mid-flow, got %+v", state)
	}

	e.HandleStart(ctx, p, "")
	state, _ = st.GetConversationState(42)
	if state == nil || state.Index != 0 {
		t.Fatalf("expected index reset to 0 on restart, got %+v", state)
	}
	if len(state.Answers) != 0 {
		t.Errorf("expected stale answers dropped on restart, got %v", state.Answers)
	}
}

func TestMalformedGuessLink(t *testing.T) {
	st := store.NewInMemoryStore()
	catalog := smallCatalog()
	e := newTestEngine(st, catalog)
	ctx := context.Background()
	p := models.Participant{ChatID: 42}

	msgs := e.HandleStart(ctx, p, "guess_abc")
	if len(msgs) != 1 || msgs[0] != msgBadLink {
		t.Fatalf("expected invalid-link message, got %v", msgs)
	}
	if state, _ := st.GetConversationState(42); state != nil {
		t.Errorf("expected no state change on malformed link, got %+v", state)
	}

	// Empty digits are malformed too.
	msgs = e.HandleStart(ctx, p, "guess_")
	if len(msgs) != 1 || msgs[0] != msgBadLink {
		t.Fatalf("expected invalid-link message for empty digits, got %v", msgs)
	}

	// The participant can still start a normal profile fill afterward.
	msgs = e.HandleStart(ctx, p, "")
	if len(msgs) != 2 || msgs[0] != msgFillIntro {
		t.Fatalf("expected normal profile start after malformed link, got %v", msgs)
	}
}

func TestNonGuessArgumentStartsProfileFill(t *testing.T) {
	st := store.NewInMemoryStore()
	catalog := smallCatalog()
	e := newTestEngine(st, catalog)

	msgs := e.HandleStart(context.Background(), models.Participant{ChatID: 42}, "hello")
	if len(msgs) != 2 || msgs[0] != msgFillIntro {
		t.Fatalf("expected plain start for non-guess argument, got %v", msgs)
	}
}

func TestGuessFlowEndToEnd(t *testing.T) {
	st := store.NewInMemoryStore()
	catalog := DefaultCatalog()
	e := newTestEngine(st, catalog)

	owner := models.Participant{ChatID: 100, Username: "anna"}
	guesser := models.Participant{ChatID: 200, Username: "bella"}

	last := fillProfile(t, e, catalog, owner, func(i int) string { return fmt.Sprintf("Answer %d", i) })
	if !strings.Contains(last[0], "guess_100") {
		t.Fatalf("expected link with owner identity, got %q", last[0])
	}

	// The guesser answers identically apart from case.
	result := guessProfile(t, e, catalog, guesser, 100, func(i int) string { return fmt.Sprintf("ANSWER %d", i) })
	if len(result) != 1 {
		t.Fatalf("expected a single score message, got %v", result)
	}
	want := fmt.Sprintf("Совпадений: %d/%d — 100%%", catalog.Len(), catalog.Len())
	if !strings.HasPrefix(result[0], want) {
		t.Errorf("expected score prefix %q, got %q", want, result[0])
	}
	if !strings.Contains(result[0], commentTier90) {
		t.Errorf("expected top commentary tier in %q", result[0])
	}

	if state, _ := st.GetConversationState(200); state != nil {
		t.Errorf("expected guesser state cleared, got %+v", state)
	}
}

func TestGuessRecordsAppendAcrossSessions(t *testing.T) {
	st := store.NewInMemoryStore()
	catalog := smallCatalog()
	e := newTestEngine(st, catalog)

	owner := models.Participant{ChatID: 100}
	fillProfile(t, e, catalog, owner, func(i int) string { return "x" })

	guessProfile(t, e, catalog, models.Participant{ChatID: 200}, 100, func(i int) string { return "a" })
	guessProfile(t, e, catalog, models.Participant{ChatID: 300}, 100, func(i int) string { return "b" })

	records := st.GuessRecords()
	if len(records) != 2*catalog.Len() {
		t.Fatalf("expected %d retained guess records, got %d", 2*catalog.Len(), len(records))
	}
	guessers := make(map[int64]int)
	for _, r := range records {
		guessers[r.GuesserID]++
	}
	if len(guessers) != 2 {
		t.Errorf("expected records from two distinct guessers, got %v", guessers)
	}
}

func TestGuessTargetProfileMissing(t *testing.T) {
	st := store.NewInMemoryStore()
	catalog := smallCatalog()
	e := newTestEngine(st, catalog)

	result := guessProfile(t, e, catalog, models.Participant{ChatID: 200}, 999, func(i int) string { return "a" })
	if len(result) != 1 || result[0] != msgProfileMissing {
		t.Fatalf("expected profile-missing message, got %v", result)
	}
	if state, _ := st.GetConversationState(200); state != nil {
		t.Errorf("expected state cleared after abort, got %+v", state)
	}
}

func TestGuessGuesserUnresolved(t *testing.T) {
	base := store.NewInMemoryStore()
	catalog := smallCatalog()

	// The owner fills a profile while storage works.
	fillProfile(t, newTestEngine(base, catalog), catalog, models.Participant{ChatID: 100}, func(i int) string { return "x" })

	// The guesser's participant record never gets created.
	flaky := &failingStore{Store: base, failEnsure: true}
	e := NewEngine(catalog, NewStateManager(base), flaky, testLinkBase)

	result := guessProfile(t, e, catalog, models.Participant{ChatID: 200}, 100, func(i int) string { return "a" })
	if len(result) != 1 || result[0] != msgGuesserUnresolved {
		t.Fatalf("expected guesser-unresolved message, got %v", result)
	}
}

func TestGuessScoringUnavailableOnPersistFailure(t *testing.T) {
	base := store.NewInMemoryStore()
	catalog := smallCatalog()
	fillProfile(t, newTestEngine(base, catalog), catalog, models.Participant{ChatID: 100}, func(i int) string { return "x" })

	flaky := &failingStore{Store: base, failGuesses: true}
	e := NewEngine(catalog, NewStateManager(base), flaky, testLinkBase)

	result := guessProfile(t, e, catalog, models.Participant{ChatID: 200}, 100, func(i int) string { return "x" })
	if len(result) != 1 || result[0] != msgScoringUnavailable {
		t.Fatalf("expected scoring-unavailable message, got %v", result)
	}
	if state, _ := base.GetConversationState(200); state != nil {
		t.Errorf("expected state cleared after failed finalization, got %+v", state)
	}
}

func TestProfilePersistFailureDegradesGracefully(t *testing.T) {
	base := store.NewInMemoryStore()
	catalog := smallCatalog()
	flaky := &failingStore{Store: base, failEnsure: true}
	e := NewEngine(catalog, NewStateManager(base), flaky, testLinkBase)

	// Completion still emits the link even though nothing was persisted.
	last := fillProfile(t, e, catalog, models.Participant{ChatID: 42}, func(i int) string { return "x" })
	if len(last) != 1 || !strings.Contains(last[0], "guess_42") {
		t.Fatalf("expected completion with link despite storage failure, got %v", last)
	}
	if _, err := base.FindParticipant(42); err != models.ErrParticipantNotFound {
		t.Errorf("expected no participant persisted, got %v", err)
	}
}

func TestIdleTextProducesNoReply(t *testing.T) {
	st := store.NewInMemoryStore()
	e := newTestEngine(st, smallCatalog())

	msgs := e.HandleText(context.Background(), models.Participant{ChatID: 42}, "hello?")
	if len(msgs) != 0 {
		t.Fatalf("expected no reply for idle text, got %v", msgs)
	}
}

func TestShareLink(t *testing.T) {
	e := newTestEngine(store.NewInMemoryStore(), smallCatalog())
	if got := e.ShareLink(12345); got != testLinkBase+"?start=guess_12345" {
		t.Errorf("unexpected share link %q", got)
	}
}
