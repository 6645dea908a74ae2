package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "minerdash:"

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps values in Redis, so several client processes can share one storage.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Address == "" {
		return nil, errors.New("storage: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if ctx == nil {
		ctx = context.Background()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: redis ping: %w", errPing)
	}
	return NewRedisStoreFromClient(client, opts.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	if s == nil || s.client == nil {
		return false, errors.New("storage: redis not initialized")
	}
	key, errKey := normalizeKey(key)
	if errKey != nil {
		return false, errKey
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, errGet := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(errGet, redis.Nil) {
		return false, nil
	}
	if errGet != nil {
		return false, fmt.Errorf("storage: redis get %s: %w", key, errGet)
	}
	return true, decode(key, payload, dst)
}

// Set implements Store. Values never expire.
func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	if s == nil || s.client == nil {
		return errors.New("storage: redis not initialized")
	}
	key, errKey := normalizeKey(key)
	if errKey != nil {
		return errKey
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, errEncode := encode(key, value)
	if errEncode != nil {
		return errEncode
	}
	if errSet := s.client.Set(ctx, s.redisKey(key), payload, 0).Err(); errSet != nil {
		return fmt.Errorf("storage: redis set %s: %w", key, errSet)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return errors.New("storage: redis not initialized")
	}
	key, errKey := normalizeKey(key)
	if errKey != nil {
		return errKey
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if errDel := s.client.Del(ctx, s.redisKey(key)).Err(); errDel != nil {
		return fmt.Errorf("storage: redis del %s: %w", key, errDel)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
