package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
	dels int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	f.dels++
	return redis.NewIntResult(n, nil)
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	fr := newFakeRedis()
	s := NewRedisStore(fr, "shopify:token:")

	_, err := s.Get(ctx, "acme.example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, Credential{Shop: "acme.example.com", AccessToken: "shpat_1", Scope: "read_metaobjects"}))

	raw, ok := fr.data["shopify:token:acme.example.com"]
	require.True(t, ok)
	var stored Credential
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "shpat_1", stored.AccessToken)
	assert.False(t, stored.UpdatedAt.IsZero())
	assert.Zero(t, fr.ttls["shopify:token:acme.example.com"])

	got, err := s.Get(ctx, "acme.example.com")
	require.NoError(t, err)
	assert.Equal(t, "acme.example.com", got.Shop)
	assert.Equal(t, "shpat_1", got.AccessToken)
	assert.Equal(t, "read_metaobjects", got.Scope)

	// overwrite
	require.NoError(t, s.Set(ctx, Credential{Shop: "acme.example.com", AccessToken: "shpat_2"}))
	got, err = s.Get(ctx, "acme.example.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_2", got.AccessToken)

	require.NoError(t, s.Delete(ctx, "acme.example.com"))
	require.NoError(t, s.Delete(ctx, "acme.example.com"))
	_, err = s.Get(ctx, "acme.example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_LegacyBareToken(t *testing.T) {
	fr := newFakeRedis()
	fr.data["acme.example.com"] = "shpat_legacy\n"
	s := NewRedisStore(fr, "")

	got, err := s.Get(context.Background(), "acme.example.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_legacy", got.AccessToken)
	assert.Equal(t, "acme.example.com", got.Shop)
}

func TestRedisStore_EmptyValueIsNotFound(t *testing.T) {
	fr := newFakeRedis()
	fr.data["acme.example.com"] = "  "
	s := NewRedisStore(fr, "")

	_, err := s.Get(context.Background(), "acme.example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_TransportErrorIsUnavailable(t *testing.T) {
	fr := newFakeRedis()
	fr.err = errors.New("dial tcp: connection refused")
	s := NewRedisStore(fr, "")
	ctx := context.Background()

	_, err := s.Get(ctx, "acme.example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "redis", se.Backend)
	assert.Equal(t, "get", se.Op)

	assert.ErrorIs(t, s.Set(ctx, Credential{Shop: "acme.example.com", AccessToken: "x"}), ErrUnavailable)
	assert.ErrorIs(t, s.Delete(ctx, "acme.example.com"), ErrUnavailable)
	assert.ErrorIs(t, s.Ping(ctx), ErrUnavailable)
}

func TestRedisStore_SetRejectsEmptyToken(t *testing.T) {
	s := NewRedisStore(newFakeRedis(), "")
	err := s.Set(context.Background(), Credential{Shop: "acme.example.com"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRedisStore_Ping(t *testing.T) {
	fr := newFakeRedis()
	s := NewRedisStore(fr, "p:")

	require.NoError(t, s.Ping(context.Background()))
	assert.Empty(t, fr.data, "probe key must be removed")
	assert.Equal(t, 1, fr.dels)
	for k, ttl := range fr.ttls {
		assert.True(t, strings.HasPrefix(k, "p:__probe__:"))
		assert.Equal(t, probeTTL, ttl)
	}
}
