package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/intentflow/intentflow/internal/models"
)

// RedisSessionCache implements SessionCache using Redis. Sessions are stored
// as JSON snapshots under a TTL, so a cold cache simply falls through to the
// session store.
type RedisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionCache connects to Redis and verifies the connection.
func NewRedisSessionCache(config *Config) (*RedisSessionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisURL,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &RedisSessionCache{client: client, ttl: ttl}, nil
}

func sessionKey(id string) string {
	return "session:" + id
}

// Get returns the cached session snapshot, if any. Cache errors are treated
// as misses.
func (c *RedisSessionCache) Get(ctx context.Context, id string) (*models.ConversationState, bool) {
	data, err := c.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		return nil, false
	}

	var session models.ConversationState
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, false
	}
	return &session, true
}

// Set stores a session snapshot under the cache TTL.
func (c *RedisSessionCache) Set(ctx context.Context, session *models.ConversationState) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := c.client.Set(ctx, sessionKey(session.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}
	return nil
}

// Invalidate drops a session from the cache.
func (c *RedisSessionCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, sessionKey(id)).Err()
}

// Close closes the Redis connection.
func (c *RedisSessionCache) Close() error {
	return c.client.Close()
}
