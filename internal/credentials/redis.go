package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	backendRedis = "redis"
	probeTTL     = 30 * time.Second
)

// RedisClient is the subset of *redis.Client the store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps one JSON document per shop under prefix+shop.
type RedisStore struct {
	client RedisClient
	prefix string
}

func NewRedisStore(client RedisClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(shop string) string {
	return s.prefix + shop
}

func (s *RedisStore) Get(ctx context.Context, shop string) (Credential, error) {
	val, err := s.client.Get(ctx, s.key(shop)).Result()
	if errors.Is(err, redis.Nil) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, unavailable(backendRedis, "get", shop, err)
	}

	cred, ok := decodeRedisValue(val)
	if !ok {
		return Credential{}, ErrNotFound
	}
	cred.Shop = shop
	return cred, nil
}

// decodeRedisValue accepts the JSON document written by Set and, for keys
// written by older deployments, a bare token string.
func decodeRedisValue(val string) (Credential, bool) {
	val = strings.TrimSpace(val)
	if val == "" {
		return Credential{}, false
	}

	var cred Credential
	if strings.HasPrefix(val, "{") {
		if err := json.Unmarshal([]byte(val), &cred); err == nil {
			return cred, cred.AccessToken != ""
		}
	}
	return Credential{AccessToken: val}, true
}

func (s *RedisStore) Set(ctx context.Context, cred Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = now()
	}

	b, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := s.client.Set(ctx, s.key(cred.Shop), b, 0).Err(); err != nil {
		return unavailable(backendRedis, "set", cred.Shop, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, shop string) error {
	if err := s.client.Del(ctx, s.key(shop)).Err(); err != nil {
		return unavailable(backendRedis, "delete", shop, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	key := s.prefix + "__probe__:" + uuid.NewString()
	want := uuid.NewString()

	if err := s.client.Set(ctx, key, want, probeTTL).Err(); err != nil {
		return unavailable(backendRedis, "ping", "", err)
	}
	got, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return unavailable(backendRedis, "ping", "", err)
	}
	if got != want {
		return unavailable(backendRedis, "ping", "", errors.New("probe value mismatch"))
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable(backendRedis, "ping", "", err)
	}
	return nil
}
