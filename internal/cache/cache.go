// Package cache holds the independently keyed, bounded-TTL caches of the service: the
// manifest cache keyed by token and the metadata cache keyed by provider id. Values are
// stored as JSON so every backend returns independent copies.
package cache

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/glefebvre/listcatalog/internal/logger"
)

// Store is a keyed cache with last-writer-wins semantics
type Store interface {
	// Get decodes the cached value into dest and reports whether it was present
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// Options selects and tunes a backend
type Options struct {
	TTL        time.Duration
	MaxEntries int
	// RedisURL selects the shared redis backend when set
	RedisURL string
	// Prefix namespaces redis keys
	Prefix string
	// NATS, when set, is used to broadcast and receive invalidations of memory stores
	NATS    *nats.Conn
	Subject string
}

// New returns a redis store when RedisURL is set, an in-memory store otherwise
func New(opts Options) (Store, error) {
	if opts.RedisURL != "" {
		store, err := NewRedisStore(opts.RedisURL, opts.Prefix, opts.TTL)
		if err != nil {
			return nil, err
		}
		logger.AppLogger().WithFields(map[string]interface{}{
			"prefix": opts.Prefix,
			"ttl":    opts.TTL.String(),
		}).Info("Using redis cache backend")
		return store, nil
	}
	return NewMemoryStore(opts.TTL, opts.MaxEntries, opts.NATS, opts.Subject), nil
}
