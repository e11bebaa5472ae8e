// Package redis stores authclient entries in Redis under a key prefix, so
// several CLI hosts can share one session.
package redis

import (
	"context"
	"time"

	"github.com/goliatone/go-auth-client"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key
const DefaultPrefix = "authclient:"

var _ authclient.Storage = (*Storage)(nil)

// Storage is a Redis backed authclient.Storage
type Storage struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option configures Storage
type Option func(*Storage)

// WithPrefix overrides DefaultPrefix
func WithPrefix(prefix string) Option {
	return func(s *Storage) {
		s.prefix = prefix
	}
}

// WithTTL sets an expiration on every write
func WithTTL(d time.Duration) Option {
	return func(s *Storage) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// New wraps an existing client
func New(client goredis.UniversalClient, opts ...Option) (*Storage, error) {
	if client == nil {
		return nil, errors.New("redis storage requires a client")
	}

	s := &Storage{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open parses a redis:// URL and pings the server
func Open(ctx context.Context, url string, opts ...Option) (*Storage, error) {
	options, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	client := goredis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	return New(client, opts...)
}

func (s *Storage) key(k string) string {
	return s.prefix + k
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "get %s", key)
	}
	return v, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	return nil
}

// Delete removes keys in one round trip
func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}

	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, "delete keys")
	}
	return nil
}

// Close closes the underlying client
func (s *Storage) Close() error {
	return s.client.Close()
}
