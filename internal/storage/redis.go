package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"broadwaybot/pkg"
)

// RedisRegistry persists session state in redis so sessions survive a
// process restart and can be shared across instances. TTL handling is
// delegated to redis itself.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistry connects to the given redis URL and verifies the
// connection before returning.
func NewRedisRegistry(ctx context.Context, redisURL string, ttl time.Duration) (*RedisRegistry, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &RedisRegistry{client: client, ttl: ttl}, nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// Get loads and decodes the session state.
func (r *RedisRegistry) Get(ctx context.Context, sessionID string) (*pkg.ConversationState, bool, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get session data: %w", err)
	}

	var state pkg.ConversationState
	if err := sonic.Unmarshal([]byte(data), &state); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return &state, true, nil
}

// Save stores the state and refreshes the TTL.
func (r *RedisRegistry) Save(ctx context.Context, sessionID string, state *pkg.ConversationState) error {
	data, err := sonic.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session data: %w", err)
	}
	return nil
}

// Delete removes the session from redis.
func (r *RedisRegistry) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
