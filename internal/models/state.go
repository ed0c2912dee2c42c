// Package models defines conversation state structures for FriendQuiz flows.
package models

import "time"

// Phase represents the sub-flow a participant's conversation is in.
type Phase string

const (
	// PhaseIdle means no flow is active for the participant.
	PhaseIdle Phase = "IDLE"
	// PhaseFillingProfile means the participant is answering their own questions.
	PhaseFillingProfile Phase = "FILLING_PROFILE"
	// PhaseGuessing means the participant is guessing someone else's answers.
	PhaseGuessing Phase = "GUESSING"
)

// ConversationState is the per-participant record driving question-by-question
// progression. It is ephemeral: cleared at the start of any new flow and again
// at flow completion.
type ConversationState struct {
	ChatID    int64             `json:"chat_id"`
	Phase     Phase             `json:"phase"`
	Index     int               `json:"index"`
	Answers   map[string]string `json:"answers,omitempty"`
	Guesses   map[string]string `json:"guesses,omitempty"`
	TargetID  int64             `json:"target_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewIdleState returns the default state handed out when none is stored.
func NewIdleState(chatID int64) ConversationState {
	return ConversationState{ChatID: chatID, Phase: PhaseIdle}
}

// IsIdle reports whether no flow is currently active.
func (s ConversationState) IsIdle() bool {
	return s.Phase == PhaseIdle || s.Phase == ""
}
