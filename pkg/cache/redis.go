package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss is returned by GetJSON when the key does not exist.
var ErrMiss = errors.New("cache miss")

// RedisStore is a small JSON key/value layer over Redis with a key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// Config describes the Redis connection.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects lazily; call Ping to verify the server.
func NewRedisStore(config *Config) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisStoreWithClient(client, config.Prefix)
}

// NewRedisStoreWithClient wraps an existing client. An empty prefix
// defaults to "tenantdb".
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "tenantdb"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

// SetJSON stores value as JSON. A zero ttl keeps the key forever.
func (s *RedisStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.client.Set(ctx, s.key(key), data, ttl).Err()
}

// GetJSON decodes key into dest, or returns ErrMiss.
func (s *RedisStore) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.client.Del(ctx, full...).Err()
}

// SetFlag stores a marker key, used for denylists.
func (s *RedisStore) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), "1", ttl).Err()
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
