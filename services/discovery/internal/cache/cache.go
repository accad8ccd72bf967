// Package cache stores raw TMDB responses for the discovery service.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/metrics"
)

// InvalidateSubject carries cache invalidations between replicas. The payload
// is a single key, or "ALL" to drop everything.
const InvalidateSubject = "discovery.cache.invalidate"

// Cache is safe for concurrent use. Lookups never fail; a backend error is
// reported as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	Delete(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}

type cacheItem struct {
	val       []byte
	expiresAt time.Time
}

// TTLCache is an in-memory Cache with per-entry expiry.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	ttl   time.Duration
	now   func() time.Time
}

func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TTLCache{
		items: make(map[string]cacheItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *TTLCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	if c.now().After(it.expiresAt) {
		c.mu.Lock()
		if cur, ok2 := c.items[key]; ok2 && c.now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
	return it.val, true
}

func (c *TTLCache) Set(_ context.Context, key string, val []byte) {
	c.mu.Lock()
	c.items[key] = cacheItem{val: val, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *TTLCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *TTLCache) Purge(context.Context) error {
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.mu.Unlock()
	return nil
}

func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// SubscribeInvalidations applies invalidations published on
// InvalidateSubject to c. The caller owns the returned subscription.
func SubscribeInvalidations(nc *nats.Conn, c Cache, log *zap.Logger) (*nats.Subscription, error) {
	if log == nil {
		log = zap.NewNop()
	}
	return nc.Subscribe(InvalidateSubject, func(m *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		key := string(m.Data)
		var err error
		if key == "" || strings.EqualFold(key, "ALL") {
			err = c.Purge(ctx)
		} else {
			err = c.Delete(ctx, key)
		}
		if err != nil {
			log.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	})
}

// PublishInvalidation asks every replica to drop key ("ALL" for everything).
func PublishInvalidation(nc *nats.Conn, key string) error {
	if nc == nil {
		return nil
	}
	if key == "" {
		key = "ALL"
	}
	return nc.Publish(InvalidateSubject, []byte(key))
}
