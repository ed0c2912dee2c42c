// Package store provides storage backends for FriendQuiz.
//
// This file implements a Redis-backed conversation state store. The durable
// gateway data (participants, answers, guesses) stays in SQL; Redis only
// holds the ephemeral per-chat conversation state, optionally with a TTL so
// abandoned sessions expire on their own.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/friendmatch/FriendQuiz/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultStateKeyPrefix namespaces conversation state keys in Redis.
const DefaultStateKeyPrefix = "friendquiz:state"

// RedisStateStore implements StateStore on top of a Redis client.
type RedisStateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisStateStoreConfig configures the Redis state store.
type RedisStateStoreConfig struct {
	Prefix string        // key prefix, default "friendquiz:state"
	TTL    time.Duration // expiry for state entries, 0 = no expiry
}

// NewRedisStateStore creates a conversation state store backed by Redis.
// The URL is parsed with redis.ParseURL (e.g. "redis://localhost:6379/0").
func NewRedisStateStore(url string, config ...RedisStateStoreConfig) (*RedisStateStore, error) {
	cfg := RedisStateStoreConfig{Prefix: DefaultStateKeyPrefix}
	if len(config) > 0 {
		if config[0].Prefix != "" {
			cfg.Prefix = config[0].Prefix
		}
		cfg.TTL = config[0].TTL
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		slog.Error("RedisStateStore invalid URL", "error", err)
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("RedisStateStore ping failed", "error", err)
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	slog.Debug("RedisStateStore connected", "prefix", cfg.Prefix, "ttl", cfg.TTL)
	return &RedisStateStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

// NewRedisStateStoreWithClient wraps an existing Redis client (for tests).
func NewRedisStateStoreWithClient(client *redis.Client, config ...RedisStateStoreConfig) *RedisStateStore {
	cfg := RedisStateStoreConfig{Prefix: DefaultStateKeyPrefix}
	if len(config) > 0 {
		if config[0].Prefix != "" {
			cfg.Prefix = config[0].Prefix
		}
		cfg.TTL = config[0].TTL
	}
	return &RedisStateStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisStateStore) stateKey(chatID int64) string {
	return fmt.Sprintf("%s:%d", s.prefix, chatID)
}

// GetConversationState retrieves conversation state for a chat, or nil when absent.
func (s *RedisStateStore) GetConversationState(chatID int64) (*models.ConversationState, error) {
	raw, err := s.client.Get(context.Background(), s.stateKey(chatID)).Result()
	if err == redis.Nil {
		slog.Debug("RedisStateStore GetConversationState not found", "chatID", chatID)
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStateStore GetConversationState failed", "error", err, "chatID", chatID)
		return nil, fmt.Errorf("failed to get conversation state for %d: %w", chatID, err)
	}

	var state models.ConversationState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		slog.Error("RedisStateStore GetConversationState unmarshal failed", "error", err, "chatID", chatID)
		return nil, fmt.Errorf("failed to decode conversation state for %d: %w", chatID, err)
	}
	slog.Debug("RedisStateStore GetConversationState found", "chatID", chatID, "phase", state.Phase, "index", state.Index)
	return &state, nil
}

// SaveConversationState stores or overwrites conversation state for a chat.
func (s *RedisStateStore) SaveConversationState(state models.ConversationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		slog.Error("RedisStateStore SaveConversationState marshal failed", "error", err, "chatID", state.ChatID)
		return err
	}
	if err := s.client.Set(context.Background(), s.stateKey(state.ChatID), raw, s.ttl).Err(); err != nil {
		slog.Error("RedisStateStore SaveConversationState failed", "error", err, "chatID", state.ChatID)
		return fmt.Errorf("failed to save conversation state for %d: %w", state.ChatID, err)
	}
	slog.Debug("RedisStateStore SaveConversationState succeeded", "chatID", state.ChatID, "phase", state.Phase, "index", state.Index)
	return nil
}

// DeleteConversationState removes conversation state for a chat.
func (s *RedisStateStore) DeleteConversationState(chatID int64) error {
	if err := s.client.Del(context.Background(), s.stateKey(chatID)).Err(); err != nil {
		slog.Error("RedisStateStore DeleteConversationState failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to delete conversation state for %d: %w", chatID, err)
	}
	slog.Debug("RedisStateStore DeleteConversationState succeeded", "chatID", chatID)
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStateStore) Close() error {
	slog.Debug("Closing Redis connection")
	return s.client.Close()
}
