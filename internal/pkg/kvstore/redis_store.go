// internal/pkg/kvstore/redis_store.go
package kvstore

import (
	"context"
	"errors"
	"time"

	"bazaar/internal/pkg/redis"
)

// RedisStore 是 Store 的 Redis 实现。
// 所有键带统一 TTL，会话状态在长期不活跃后自然过期。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 创建一个 Redis 存储。ttl 为 0 表示不过期。
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, s.ttl)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key)
}
