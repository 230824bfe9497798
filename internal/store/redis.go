package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"idscan/internal/logger"
)

// RedisStore keeps each record in a hash at users:<id>:aadharData.
// HSET only touches the given fields, which gives merge semantics for free.
type RedisStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisStore connects to url (redis://[:password@]host:port/db) and pings it.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	const op = "NewRedisStore"

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse redis URL: %w", op, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to connect to redis at %s: %w", op, opts.Addr, err)
	}

	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client. Close closes the client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		log:    logger.WithComponent("store").With().Str("driver", DriverRedis).Logger(),
	}
}

func redisKey(id string) string {
	return "users:" + id + ":" + RecordKey
}

// Merge implements Store.
func (s *RedisStore) Merge(ctx context.Context, id string, record map[string]string) error {
	const op = "Merge"

	if id == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyID)
	}
	if len(record) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(record))
	for k, v := range record {
		fields[k] = v
	}
	if err := s.client.HSet(ctx, redisKey(id), fields).Err(); err != nil {
		return fmt.Errorf("%s: failed to write %s: %w", op, redisKey(id), err)
	}

	s.log.Debug().Str("user_id", id).Int("fields", len(record)).Msg("Record merged")
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (map[string]string, error) {
	const op = "Get"

	values, err := s.client.HGetAll(ctx, redisKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s: %w", op, redisKey(id), err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return values, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
