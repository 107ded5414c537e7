package store

import (
	"context"
	"fmt"

	"github.com/tensorplex-labs/novelty/internal/utils/redis"
)

// RedisStore keeps artifacts as Redis strings under a key prefix.
type RedisStore struct {
	client redis.RedisInterface
	prefix string
}

func NewRedisStore(client redis.RedisInterface, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key Key) string {
	return s.prefix + key.String()
}

func (s *RedisStore) Get(ctx context.Context, key Key) ([]byte, error) {
	value, found, err := s.client.Get(ctx, s.key(key))
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return value, nil
}

func (s *RedisStore) Put(ctx context.Context, key Key, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key Key) (bool, error) {
	ok, err := s.client.Exists(ctx, s.key(key))
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.key(key)); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
