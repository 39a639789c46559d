package relay

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/google/uuid"
	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
)

const DefaultRedisKeyPrefix = "floodgate:relay:"

type RedisConfig struct {
	URI       string        `mapstructure:"uri"`
	KeyPrefix string        `mapstructure:"keyPrefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// RedisStore is a Store that is shared by every hop connected to the same redis.
type RedisStore struct {
	cli    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URI)
	if err != nil {
		return nil, err
	}

	return NewRedisStoreWithClient(redis.NewClient(opts), cfg), nil
}

func NewRedisStoreWithClient(cli *redis.Client, cfg RedisConfig) *RedisStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}

	return &RedisStore{
		cli:    cli,
		prefix: prefix,
		ttl:    cfg.TTL,
	}
}

func (s *RedisStore) key(id uuid.UUID) string {
	return s.prefix + id.String()
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (envelope.Envelope, bool, error) {
	v, err := s.cli.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}

	return envelope.Envelope(v), true, nil
}

func (s *RedisStore) Put(ctx context.Context, id uuid.UUID, env envelope.Envelope) error {
	return s.cli.Set(ctx, s.key(id), env.String(), s.ttl).Err()
}

func (s *RedisStore) Replace(ctx context.Context, id uuid.UUID, env envelope.Envelope) error {
	return s.Put(ctx, id, env)
}

func (s *RedisStore) Remove(ctx context.Context, id uuid.UUID) error {
	return s.cli.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) Close() error {
	return s.cli.Close()
}
