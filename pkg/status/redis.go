package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/thumbatlas/pkg/buildinfo"
)

// DefaultRedisKey is the key used when none is configured.
const DefaultRedisKey = "thumbatlas:status"

// RedisStore keeps the record under a single Redis key, so several server
// replicas can answer status polls for one writer.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	owned  bool
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, ClientName: buildinfo.UserAgent()})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	s := NewRedisStoreFromClient(client, key)
	s.owned = true
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client. Close does not close a
// client passed in this way.
func NewRedisStoreFromClient(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Get(ctx context.Context) (Status, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Status{}, false, nil
	}
	if err != nil {
		return Status{}, false, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, false, fmt.Errorf("parse status: %w", err)
	}
	return st, true, nil
}

func (s *RedisStore) Put(ctx context.Context, st Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
