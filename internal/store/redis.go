package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/newschat/internal/domain"
	"github.com/redis/go-redis/v9"
)

// maxAppendRetries bounds optimistic-lock retries in AppendMessage.
const maxAppendRetries = 5

// RedisStore implements Repository on Redis. Each session is one key holding
// the JSON-encoded history; Redis key expiry enforces the TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to the Redis instance at url.
func NewRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func historyKey(token string) string {
	return "session:" + token + ":history"
}

// Ping verifies Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

// CreateSession stores an empty history with the given expiry.
func (s *RedisStore) CreateSession(ctx context.Context, token string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, historyKey(token), "[]", ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("create session: token already exists")
	}
	return nil
}

// SessionExists reports whether the history key is present.
func (s *RedisStore) SessionExists(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, historyKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return n > 0, nil
}

// GetHistory decodes the stored history.
func (s *RedisStore) GetHistory(ctx context.Context, token string) ([]domain.Message, error) {
	raw, err := s.client.Get(ctx, historyKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return decodeHistory(raw)
}

// AppendMessage appends under WATCH so concurrent appends do not drop messages.
func (s *RedisStore) AppendMessage(ctx context.Context, token string, msg domain.Message, ttl time.Duration) error {
	key := historyKey(token)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get history: %w", err)
		}
		history, err := decodeHistory(raw)
		if err != nil {
			return err
		}
		data, err := json.Marshal(append(history, msg))
		if err != nil {
			return fmt.Errorf("encode history: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxAppendRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return err
			}
			return fmt.Errorf("append message: %w", err)
		}
		return nil
	}
	return fmt.Errorf("append message: too much contention after %d attempts", maxAppendRetries)
}

// DeleteSession removes the history key.
func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	n, err := s.client.Del(ctx, historyKey(token)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteExpired is a no-op; Redis expires keys itself.
func (s *RedisStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

func decodeHistory(raw string) ([]domain.Message, error) {
	history := []domain.Message{}
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}
