package db

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the key-value service. rawURL is a redis:// or
// rediss:// URL; a non-empty token overrides any password embedded in it.
func NewRedisClient(rawURL, token string) (*redis.Client, error) {
	opts, err := RedisOptions(rawURL, token)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func RedisOptions(rawURL, token string) (*redis.Options, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		rawURL = "redis://" + rawURL
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse KV_URL: %w", err)
	}
	if token != "" {
		opts.Password = token
	}
	return opts, nil
}
