package inbox

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/supportdesk/ticketsync/internal/domain"
)

// RedisStore keeps the whole inbox as one JSON snapshot under a single key,
// written atomically on every mutation. The inbox is capped, so snapshot
// size is bounded.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ticketsync"
	}
	return &RedisStore{client: client, key: prefix + ":inbox:entries"}
}

func (s *RedisStore) Load(ctx context.Context) ([]domain.Notification, error) {
	if s.client == nil {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []domain.Notification
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *RedisStore) Save(ctx context.Context, entries []domain.Notification) error {
	if s.client == nil {
		return nil
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, payload, 0).Err()
}
