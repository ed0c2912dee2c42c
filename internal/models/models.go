// Package models defines the core data structures for FriendQuiz.
//
// It includes participant identity, stored answers, guesses, and the
// shared API response envelope used by the HTTP layer.
package models

import (
	"errors"
	"time"
)

// Error variables for better error handling and testability
var (
	// ErrIndexOutOfRange is returned by the question catalog for positions outside [0, len).
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrStorageUnavailable wraps persistence failures that callers must treat as recoverable.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrParticipantNotFound is returned when a participant lookup yields no record.
	ErrParticipantNotFound = errors.New("participant not found")
)

// Participant identifies a person interacting via the chat transport.
// ChatID is the stable external identity; the display attributes are
// informational only and never drive logic.
type Participant struct {
	ChatID    int64  `json:"chat_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// ParticipantRecord is a persisted participant row.
type ParticipantRecord struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileAnswer is one finalized answer for a (owner, question key) pair.
// Re-completing the profile flow fully replaces all rows for the owner.
type ProfileAnswer struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	QuestionKey string    `json:"question_key"`
	AnswerText  string    `json:"answer_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// GuessRecord is one recorded guess by a guesser against a target owner.
// Guess records are append-only; historical sessions are retained.
type GuessRecord struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	GuesserID   int64     `json:"guesser_id"`
	QuestionKey string    `json:"question_key"`
	GuessedText string    `json:"guessed_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Response represents an incoming participant message delivered by a transport.
type Response struct {
	From Participant `json:"from"`
	Body string      `json:"body"`
	Time int64       `json:"time"`
}

// ScoreResult is the outcome of comparing a guesser's answers against the owner's.
type ScoreResult struct {
	Matches int `json:"matches"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// APIResponse provides a consistent response structure for all HTTP endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: "ok", Message: message, Result: result}
}

// Error creates an error API response with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: "error", Message: message}
}
