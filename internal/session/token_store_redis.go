package session

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type RedisTokenStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = "ticketsync"
	}
	return &RedisTokenStore{client: client, key: prefix + ":session:token"}
}

func (s *RedisTokenStore) Load(ctx context.Context) (string, error) {
	if s.client == nil {
		return "", nil
	}
	raw, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, token string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Set(ctx, s.key, token, 0).Err()
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.key).Err()
}
