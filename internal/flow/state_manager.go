// Package flow provides conversation state management for the dialogue engine.
package flow

import (
	"log/slog"
	"time"

	"github.com/friendmatch/FriendQuiz/internal/models"
	"github.com/friendmatch/FriendQuiz/internal/store"
)

// StateManager wraps a store.StateStore with the lifecycle semantics the
// dialogue engine relies on: Get never fails (absent or unreadable state
// degrades to the default idle state), Set overwrites the whole record, and
// Clear resets to idle.
type StateManager struct {
	store store.StateStore
}

// NewStateManager creates a StateManager backed by the given state store.
func NewStateManager(st store.StateStore) *StateManager {
	slog.Debug("Creating StateManager")
	return &StateManager{store: st}
}

// Get retrieves the conversation state for a chat. When no state exists, or
// the backend is unavailable, the default idle state is returned.
func (sm *StateManager) Get(chatID int64) models.ConversationState {
	state, err := sm.store.GetConversationState(chatID)
	if err != nil {
		slog.Warn("StateManager Get degraded to idle state", "error", err, "chatID", chatID)
		return models.NewIdleState(chatID)
	}
	if state == nil {
		slog.Debug("StateManager Get not found, returning idle state", "chatID", chatID)
		return models.NewIdleState(chatID)
	}
	slog.Debug("StateManager Get found", "chatID", chatID, "phase", state.Phase, "index", state.Index)
	return *state
}

// Set overwrites the conversation state for a chat. Timestamps are stamped
// here so callers only fill the flow fields.
func (sm *StateManager) Set(state models.ConversationState) error {
	now := time.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now

	if err := sm.store.SaveConversationState(state); err != nil {
		slog.Error("StateManager Set failed", "error", err, "chatID", state.ChatID, "phase", state.Phase)
		return err
	}
	slog.Debug("StateManager Set succeeded", "chatID", state.ChatID, "phase", state.Phase, "index", state.Index)
	return nil
}

// Clear resets the chat to the idle state by removing any stored record.
func (sm *StateManager) Clear(chatID int64) error {
	if err := sm.store.DeleteConversationState(chatID); err != nil {
		slog.Error("StateManager Clear failed", "error", err, "chatID", chatID)
		return err
	}
	slog.Debug("StateManager Clear succeeded", "chatID", chatID)
	return nil
}
