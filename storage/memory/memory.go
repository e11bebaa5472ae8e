// Package memory is a process local authclient.Storage backed by go-cache.
package memory

import (
	"context"
	"time"

	"github.com/goliatone/go-auth-client"
	"github.com/patrickmn/go-cache"
)

var _ authclient.Storage = (*Storage)(nil)

// Storage keeps values until deleted, or until ttl when one is set.
type Storage struct {
	cache *cache.Cache
	ttl   time.Duration
}

// Option configures Storage
type Option func(*Storage)

// WithTTL expires entries after d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(s *Storage) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// New returns an empty storage
func New(opts ...Option) *Storage {
	s := &Storage{ttl: cache.NoExpiration}
	for _, opt := range opts {
		opt(s)
	}

	cleanup := time.Duration(0)
	if s.ttl > 0 {
		cleanup = 2 * s.ttl
	}
	s.cache = cache.New(s.ttl, cleanup)
	return s
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	str, ok := v.(string)
	return str, ok, nil
}

func (s *Storage) Set(_ context.Context, key, value string) error {
	s.cache.Set(key, value, cache.DefaultExpiration)
	return nil
}

func (s *Storage) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.cache.Delete(key)
	}
	return nil
}

// Len returns the number of live entries
func (s *Storage) Len() int {
	return s.cache.ItemCount()
}
