package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/glefebvre/listcatalog/internal/logger"
)

// InvalidateAll is the invalidation payload that clears a whole memory store
const InvalidateAll = "ALL"

type entry struct {
	val       []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store with per-entry expiry, a size bound and optional
// NATS key invalidation.
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	nc      *nats.Conn
	subject string
	sub     *nats.Subscription
}

// NewMemoryStore creates a MemoryStore. When nc is non-nil, deletes are broadcast on
// subject and invalidations received on it are applied locally.
func NewMemoryStore(ttl time.Duration, maxEntries int, nc *nats.Conn, subject string) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	s := &MemoryStore{
		items:      make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}

	if nc != nil && subject != "" {
		sub, err := nc.Subscribe(subject, func(m *nats.Msg) {
			s.invalidate(string(m.Data))
		})
		if err != nil {
			logger.AppLogger().WithFields(map[string]interface{}{
				"subject": subject,
				"error":   err,
			}).Warn("Cache invalidation subscription failed")
		} else {
			s.nc = nc
			s.subject = subject
			s.sub = sub
		}
	}

	return s
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if s.now().After(it.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return false, nil
	}

	if err := json.Unmarshal(it.val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Store
func (s *MemoryStore) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists && len(s.items) >= s.maxEntries {
		s.evictLocked()
	}
	s.items[key] = entry{val: b, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Delete implements Store and broadcasts the invalidation to other instances
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.invalidate(key)
	if s.nc != nil {
		return s.nc.Publish(s.subject, []byte(key))
	}
	return nil
}

// Len returns the number of entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close drops the invalidation subscription
func (s *MemoryStore) Close() error {
	if s.sub != nil {
		return s.sub.Unsubscribe()
	}
	return nil
}

func (s *MemoryStore) invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" || strings.EqualFold(key, InvalidateAll) {
		s.items = make(map[string]entry)
		return
	}
	delete(s.items, key)
}

// evictLocked drops expired entries, or the entry closest to expiry when none are
func (s *MemoryStore) evictLocked() {
	now := s.now()
	var oldestKey string
	var oldest time.Time

	for k, it := range s.items {
		if now.After(it.expiresAt) {
			delete(s.items, k)
			continue
		}
		if oldestKey == "" || it.expiresAt.Before(oldest) {
			oldestKey, oldest = k, it.expiresAt
		}
	}

	if len(s.items) >= s.maxEntries && oldestKey != "" {
		delete(s.items, oldestKey)
	}
}
