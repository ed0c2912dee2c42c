// Package store provides storage backends for FriendQuiz.
//
// It includes an in-memory store for tests and DSN-less runs, plus
// persistent SQLite, PostgreSQL, and Redis backends.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/friendmatch/FriendQuiz/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string // database connection string (SQLite file path or Postgres URL)
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (file paths are assumed to be SQLite databases).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// StateStore persists per-participant conversation state.
//
// GetConversationState returns nil (not an error) when no state exists for
// the chat; callers substitute the default idle state.
type StateStore interface {
	GetConversationState(chatID int64) (*models.ConversationState, error)
	SaveConversationState(state models.ConversationState) error
	DeleteConversationState(chatID int64) error
}

// Store is the durable persistence gateway: participant records, finalized
// profile answers, append-only guess records, and conversation state. All
// operations may fail with a storage error; callers must treat failures as
// recoverable and never crash the conversation.
type Store interface {
	StateStore

	// EnsureParticipant returns the record for the participant, creating it
	// on first contact. Display attributes are stored as-is and never updated.
	EnsureParticipant(p models.Participant) (*models.ParticipantRecord, error)

	// FindParticipant looks up a participant by external chat identity.
	// Returns models.ErrParticipantNotFound when no record exists.
	FindParticipant(chatID int64) (*models.ParticipantRecord, error)

	// ReplaceProfileAnswers deletes all prior answers for the owner and
	// inserts the given mapping in one transaction (full replace).
	ReplaceProfileAnswers(ownerID int64, answers map[string]string) error

	// GetProfileAnswers returns the owner's finalized answers keyed by question key.
	GetProfileAnswers(ownerID int64) (map[string]string, error)

	// AddGuessRecords appends one guess row per answered key. Prior sessions
	// are retained.
	AddGuessRecords(ownerID, guesserID int64, guesses map[string]string) error

	Close() error
}

// InMemoryStore is a map-backed Store for tests and DSN-less runs.
type InMemoryStore struct {
	mu           sync.RWMutex
	nextID       int64
	participants map[int64]*models.ParticipantRecord // keyed by chat ID
	answers      map[int64]map[string]string         // keyed by participant record ID
	guesses      []models.GuessRecord
	states       map[int64]models.ConversationState // keyed by chat ID
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:       1,
		participants: make(map[int64]*models.ParticipantRecord),
		answers:      make(map[int64]map[string]string),
		states:       make(map[int64]models.ConversationState),
	}
}

func (s *InMemoryStore) EnsureParticipant(p models.Participant) (*models.ParticipantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.participants[p.ChatID]; ok {
		return copyRecord(rec), nil
	}
	rec := &models.ParticipantRecord{
		ID:        s.nextID,
		ChatID:    p.ChatID,
		Username:  p.Username,
		FirstName: p.FirstName,
		CreatedAt: time.Now(),
	}
	s.nextID++
	s.participants[p.ChatID] = rec
	return copyRecord(rec), nil
}

func (s *InMemoryStore) FindParticipant(chatID int64) (*models.ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.participants[chatID]
	if !ok {
		return nil, models.ErrParticipantNotFound
	}
	return copyRecord(rec), nil
}

func (s *InMemoryStore) ReplaceProfileAnswers(ownerID int64, answers map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := make(map[string]string, len(answers))
	for k, v := range answers {
		replaced[k] = v
	}
	s.answers[ownerID] = replaced
	return nil
}

func (s *InMemoryStore) GetProfileAnswers(ownerID int64) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.answers[ownerID]))
	for k, v := range s.answers[ownerID] {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryStore) AddGuessRecords(ownerID, guesserID int64, guesses map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	// Stable insertion order keeps the record log deterministic.
	keys := make([]string, 0, len(guesses))
	for k := range guesses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.guesses = append(s.guesses, models.GuessRecord{
			ID:          int64(len(s.guesses) + 1),
			OwnerID:     ownerID,
			GuesserID:   guesserID,
			QuestionKey: k,
			GuessedText: guesses[k],
			CreatedAt:   now,
		})
	}
	return nil
}

// GuessRecords returns all stored guess records (for tests).
func (s *InMemoryStore) GuessRecords() []models.GuessRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.GuessRecord, len(s.guesses))
	copy(out, s.guesses)
	return out
}

func (s *InMemoryStore) GetConversationState(chatID int64) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[chatID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *InMemoryStore) SaveConversationState(state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ChatID] = state
	return nil
}

func (s *InMemoryStore) DeleteConversationState(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

func copyRecord(rec *models.ParticipantRecord) *models.ParticipantRecord {
	cp := *rec
	return &cp
}
