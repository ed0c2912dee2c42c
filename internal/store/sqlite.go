// Package store provides storage backends for FriendQuiz.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/friendmatch/FriendQuiz/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// EnsureParticipant returns the record for the given chat identity, creating
// it on first contact.
func (s *SQLiteStore) EnsureParticipant(p models.Participant) (*models.ParticipantRecord, error) {
	rec, err := s.FindParticipant(p.ChatID)
	if err == nil {
		return rec, nil
	}
	if err != models.ErrParticipantNotFound {
		return nil, err
	}

	now := time.Now()
	res, err := s.db.Exec(`INSERT INTO participants (chat_id, username, first_name, created_at) VALUES (?, ?, ?, ?)`,
		p.ChatID, nilIfEmpty(p.Username), nilIfEmpty(p.FirstName), now)
	if err != nil {
		slog.Error("SQLiteStore EnsureParticipant insert failed", "error", err, "chatID", p.ChatID)
		return nil, fmt.Errorf("failed to insert participant %d: %w", p.ChatID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		slog.Error("SQLiteStore EnsureParticipant LastInsertId failed", "error", err, "chatID", p.ChatID)
		return nil, err
	}
	slog.Debug("SQLiteStore EnsureParticipant created", "chatID", p.ChatID, "id", id)
	return &models.ParticipantRecord{ID: id, ChatID: p.ChatID, Username: p.Username, FirstName: p.FirstName, CreatedAt: now}, nil
}

// FindParticipant looks up a participant by chat identity.
func (s *SQLiteStore) FindParticipant(chatID int64) (*models.ParticipantRecord, error) {
	row := s.db.QueryRow(`SELECT id, chat_id, username, first_name, created_at FROM participants WHERE chat_id = ?`, chatID)
	rec, err := scanParticipantRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore FindParticipant not found", "chatID", chatID)
		return nil, models.ErrParticipantNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore FindParticipant failed", "error", err, "chatID", chatID)
		return nil, fmt.Errorf("failed to find participant %d: %w", chatID, err)
	}
	return rec, nil
}

// ReplaceProfileAnswers deletes all prior answers for the owner and inserts
// the given mapping in a single transaction.
func (s *SQLiteStore) ReplaceProfileAnswers(ownerID int64, answers map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("SQLiteStore ReplaceProfileAnswers begin failed", "error", err, "ownerID", ownerID)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM profile_answers WHERE owner_id = ?`, ownerID); err != nil {
		slog.Error("SQLiteStore ReplaceProfileAnswers delete failed", "error", err, "ownerID", ownerID)
		return fmt.Errorf("failed to delete prior answers for owner %d: %w", ownerID, err)
	}
	now := time.Now()
	for key, text := range answers {
		if _, err := tx.Exec(`INSERT INTO profile_answers (owner_id, question_key, answer_text, created_at) VALUES (?, ?, ?, ?)`,
			ownerID, key, text, now); err != nil {
			slog.Error("SQLiteStore ReplaceProfileAnswers insert failed", "error", err, "ownerID", ownerID, "key", key)
			return fmt.Errorf("failed to insert answer %q for owner %d: %w", key, ownerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("SQLiteStore ReplaceProfileAnswers commit failed", "error", err, "ownerID", ownerID)
		return fmt.Errorf("failed to commit answers for owner %d: %w", ownerID, err)
	}
	slog.Debug("SQLiteStore ReplaceProfileAnswers succeeded", "ownerID", ownerID, "count", len(answers))
	return nil
}

// GetProfileAnswers returns the owner's finalized answers keyed by question key.
func (s *SQLiteStore) GetProfileAnswers(ownerID int64) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT question_key, answer_text FROM profile_answers WHERE owner_id = ?`, ownerID)
	if err != nil {
		slog.Error("SQLiteStore GetProfileAnswers query failed", "error", err, "ownerID", ownerID)
		return nil, fmt.Errorf("failed to query answers for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	answers := make(map[string]string)
	for rows.Next() {
		var key, text string
		if err := rows.Scan(&key, &text); err != nil {
			slog.Error("SQLiteStore GetProfileAnswers scan failed", "error", err, "ownerID", ownerID)
			return nil, fmt.Errorf("failed to scan answer row: %w", err)
		}
		answers[key] = text
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetProfileAnswers rows iteration failed", "error", err, "ownerID", ownerID)
		return nil, fmt.Errorf("failed to iterate answer rows: %w", err)
	}
	slog.Debug("SQLiteStore GetProfileAnswers succeeded", "ownerID", ownerID, "count", len(answers))
	return answers, nil
}

// AddGuessRecords appends one guess row per answered key.
func (s *SQLiteStore) AddGuessRecords(ownerID, guesserID int64, guesses map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("SQLiteStore AddGuessRecords begin failed", "error", err, "ownerID", ownerID, "guesserID", guesserID)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for key, text := range guesses {
		if _, err := tx.Exec(`INSERT INTO guess_answers (owner_id, guesser_id, question_key, guessed_text, created_at) VALUES (?, ?, ?, ?, ?)`,
			ownerID, guesserID, key, text, now); err != nil {
			slog.Error("SQLiteStore AddGuessRecords insert failed", "error", err, "ownerID", ownerID, "guesserID", guesserID, "key", key)
			return fmt.Errorf("failed to insert guess %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("SQLiteStore AddGuessRecords commit failed", "error", err, "ownerID", ownerID, "guesserID", guesserID)
		return fmt.Errorf("failed to commit guesses: %w", err)
	}
	slog.Debug("SQLiteStore AddGuessRecords succeeded", "ownerID", ownerID, "guesserID", guesserID, "count", len(guesses))
	return nil
}

// GetConversationState retrieves conversation state for a chat.
func (s *SQLiteStore) GetConversationState(chatID int64) (*models.ConversationState, error) {
	row := s.db.QueryRow(`SELECT chat_id, phase, question_index, answers, guesses, target_id, created_at, updated_at
		FROM conversation_states WHERE chat_id = ?`, chatID)

	var state models.ConversationState
	var answersJSON, guessesJSON sql.NullString
	err := row.Scan(&state.ChatID, &state.Phase, &state.Index, &answersJSON, &guessesJSON,
		&state.TargetID, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversationState not found", "chatID", chatID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "chatID", chatID)
		return nil, fmt.Errorf("failed to get conversation state for %d: %w", chatID, err)
	}
	state.Answers = unmarshalStateMap(answersJSON.String, chatID)
	state.Guesses = unmarshalStateMap(guessesJSON.String, chatID)
	slog.Debug("SQLiteStore GetConversationState found", "chatID", chatID, "phase", state.Phase, "index", state.Index)
	return &state, nil
}

// SaveConversationState stores or overwrites conversation state for a chat.
func (s *SQLiteStore) SaveConversationState(state models.ConversationState) error {
	answersJSON, err := marshalStateMap(state.Answers)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState marshal answers failed", "error", err, "chatID", state.ChatID)
		return err
	}
	guessesJSON, err := marshalStateMap(state.Guesses)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState marshal guesses failed", "error", err, "chatID", state.ChatID)
		return err
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO conversation_states
		(chat_id, phase, question_index, answers, guesses, target_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		state.ChatID, state.Phase, state.Index, answersJSON, guessesJSON, state.TargetID,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "chatID", state.ChatID, "phase", state.Phase)
		return fmt.Errorf("failed to save conversation state for %d: %w", state.ChatID, err)
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "chatID", state.ChatID, "phase", state.Phase, "index", state.Index)
	return nil
}

// DeleteConversationState removes conversation state for a chat.
func (s *SQLiteStore) DeleteConversationState(chatID int64) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE chat_id = ?`, chatID)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to delete conversation state for %d: %w", chatID, err)
	}
	slog.Debug("SQLiteStore DeleteConversationState succeeded", "chatID", chatID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

func marshalStateMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

func unmarshalStateMap(raw string, chatID int64) map[string]string {
	if raw == "" {
		return nil
	}
	m := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		slog.Error("Conversation state map unmarshal failed", "error", err, "chatID", chatID)
		// Continue with an empty map rather than failing
		return make(map[string]string)
	}
	return m
}
