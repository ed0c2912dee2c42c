// Package store provides storage backends for FriendQuiz.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/friendmatch/FriendQuiz/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// EnsureParticipant returns the record for the given chat identity, creating
// it on first contact. Concurrent first contacts resolve via ON CONFLICT.
func (s *PostgresStore) EnsureParticipant(p models.Participant) (*models.ParticipantRecord, error) {
	_, err := s.db.Exec(`INSERT INTO participants (chat_id, username, first_name) VALUES ($1, $2, $3)
		ON CONFLICT (chat_id) DO NOTHING`,
		p.ChatID, nilIfEmpty(p.Username), nilIfEmpty(p.FirstName))
	if err != nil {
		slog.Error("PostgresStore EnsureParticipant insert failed", "error", err, "chatID", p.ChatID)
		return nil, fmt.Errorf("failed to insert participant %d: %w", p.ChatID, err)
	}
	return s.FindParticipant(p.ChatID)
}

// FindParticipant looks up a participant by chat identity.
func (s *PostgresStore) FindParticipant(chatID int64) (*models.ParticipantRecord, error) {
	row := s.db.QueryRow(`SELECT id, chat_id, username, first_name, created_at FROM participants WHERE chat_id = $1`, chatID)
	rec, err := scanParticipantRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore FindParticipant not found", "chatID", chatID)
		return nil, models.ErrParticipantNotFound
	}
	if err != nil {
		slog.Error("PostgresStore FindParticipant failed", "error", err, "chatID", chatID)
		return nil, fmt.Errorf("failed to find participant %d: %w", chatID, err)
	}
	return rec, nil
}

// ReplaceProfileAnswers deletes all prior answers for the owner and inserts
// the given mapping in a single transaction.
func (s *PostgresStore) ReplaceProfileAnswers(ownerID int64, answers map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("PostgresStore ReplaceProfileAnswers begin failed", "error", err, "ownerID", ownerID)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM profile_answers WHERE owner_id = $1`, ownerID); err != nil {
		slog.Error("PostgresStore ReplaceProfileAnswers delete failed", "error", err, "ownerID", ownerID)
		return fmt.Errorf("failed to delete prior answers for owner %d: %w", ownerID, err)
	}
	for key, text := range answers {
		if _, err := tx.Exec(`INSERT INTO profile_answers (owner_id, question_key, answer_text) VALUES ($1, $2, $3)`,
			ownerID, key, text); err != nil {
			slog.Error("PostgresStore ReplaceProfileAnswers insert failed", "error", err, "ownerID", ownerID, "key", key)
			return fmt.Errorf("failed to insert answer %q for owner %d: %w", key, ownerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("PostgresStore ReplaceProfileAnswers commit failed", "error", err, "ownerID", ownerID)
		return fmt.Errorf("failed to commit answers for owner %d: %w", ownerID, err)
	}
	slog.Debug("PostgresStore ReplaceProfileAnswers succeeded", "ownerID", ownerID, "count", len(answers))
	return nil
}

// GetProfileAnswers returns the owner's finalized answers keyed by question key.
func (s *PostgresStore) GetProfileAnswers(ownerID int64) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT question_key, answer_text FROM profile_answers WHERE owner_id = $1`, ownerID)
	if err != nil {
		slog.Error("PostgresStore GetProfileAnswers query failed", "error", err, "ownerID", ownerID)
		return nil, fmt.Errorf("failed to query answers for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	answers := make(map[string]string)
	for rows.Next() {
		var key, text string
		if err := rows.Scan(&key, &text); err != nil {
			slog.Error("PostgresStore GetProfileAnswers scan failed", "error", err, "ownerID", ownerID)
			return nil, fmt.Errorf("failed to scan answer row: %w", err)
		}
		answers[key] = text
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetProfileAnswers rows iteration failed", "error", err, "ownerID", ownerID)
		return nil, fmt.Errorf("failed to iterate answer rows: %w", err)
	}
	slog.Debug("PostgresStore GetProfileAnswers succeeded", "ownerID", ownerID, "count", len(answers))
	return answers, nil
}

// AddGuessRecords appends one guess row per answered key.
func (s *PostgresStore) AddGuessRecords(ownerID, guesserID int64, guesses map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("PostgresStore AddGuessRecords begin failed", "error", err, "ownerID", ownerID, "guesserID", guesserID)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, text := range guesses {
		if _, err := tx.Exec(`INSERT INTO guess_answers (owner_id, guesser_id, question_key, guessed_text) VALUES ($1, $2, $3, $4)`,
			ownerID, guesserID, key, text); err != nil {
			slog.Error("PostgresStore AddGuessRecords insert failed", "error", err, "ownerID", ownerID, "guesserID", guesserID, "key", key)
			return fmt.Errorf("failed to insert guess %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		slog.Error("PostgresStore AddGuessRecords commit failed", "error", err, "ownerID", ownerID, "guesserID", guesserID)
		return fmt.Errorf("failed to commit guesses: %w", err)
	}
	slog.Debug("PostgresStore AddGuessRecords succeeded", "ownerID", ownerID, "guesserID", guesserID, "count", len(guesses))
	return nil
}

// GetConversationState retrieves conversation state for a chat.
func (s *PostgresStore) GetConversationState(chatID int64) (*models.ConversationState, error) {
	row := s.db.QueryRow(`SELECT chat_id, phase, question_index, answers, guesses, target_id, created_at, updated_at
		FROM conversation_states WHERE chat_id = $1`, chatID)

	var state models.ConversationState
	var answersJSON, guessesJSON sql.NullString
	err := row.Scan(&state.ChatID, &state.Phase, &state.Index, &answersJSON, &guessesJSON,
		&state.TargetID, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversationState not found", "chatID", chatID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "chatID", chatID)
		return nil, fmt.Errorf("failed to get conversation state for %d: %w", chatID, err)
	}
	state.Answers = unmarshalStateMap(answersJSON.String, chatID)
	state.Guesses = unmarshalStateMap(guessesJSON.String, chatID)
	slog.Debug("PostgresStore GetConversationState found", "chatID", chatID, "phase", state.Phase, "index", state.Index)
	return &state, nil
}

// SaveConversationState stores or overwrites conversation state for a chat.
func (s *PostgresStore) SaveConversationState(state models.ConversationState) error {
	answersJSON, err := marshalStateMap(state.Answers)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState marshal answers failed", "error", err, "chatID", state.ChatID)
		return err
	}
	guessesJSON, err := marshalStateMap(state.Guesses)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState marshal guesses failed", "error", err, "chatID", state.ChatID)
		return err
	}

	_, err = s.db.Exec(`INSERT INTO conversation_states
		(chat_id, phase, question_index, answers, guesses, target_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (chat_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			question_index = EXCLUDED.question_index,
			answers = EXCLUDED.answers,
			guesses = EXCLUDED.guesses,
			target_id = EXCLUDED.target_id,
			updated_at = EXCLUDED.updated_at`,
		state.ChatID, state.Phase, state.Index, answersJSON, guessesJSON, state.TargetID,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "chatID", state.ChatID, "phase", state.Phase)
		return fmt.Errorf("failed to save conversation state for %d: %w", state.ChatID, err)
	}
	slog.Debug("PostgresStore SaveConversationState succeeded", "chatID", state.ChatID, "phase", state.Phase, "index", state.Index)
	return nil
}

// DeleteConversationState removes conversation state for a chat.
func (s *PostgresStore) DeleteConversationState(chatID int64) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE chat_id = $1`, chatID)
	if err != nil {
		slog.Error("PostgresStore DeleteConversationState failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to delete conversation state for %d: %w", chatID, err)
	}
	slog.Debug("PostgresStore DeleteConversationState succeeded", "chatID", chatID)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
