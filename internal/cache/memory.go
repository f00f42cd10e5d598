package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache with per-entry TTLs, used when
// no redis.addr is configured. Get checks an entry's expiry itself;
// a background goroutine also sweeps expired entries once a minute so
// keys nobody reads again do not stay in memory.
type MemoryCache struct {
	data   sync.Map
	config Config
	cancel context.CancelFunc
}

type memoryEntry struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a MemoryCache and starts its cleanup loop.
func NewMemoryCache(config Config) *MemoryCache {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MemoryCache{config: config, cancel: cancel}
	go m.sweep(ctx)
	return m
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := m.config.Prefix + key
	raw, ok := m.data.Load(fullKey)
	if !ok {
		return nil, ErrMiss{Key: key}
	}
	entry := raw.(memoryEntry)
	if !entry.expiration.IsZero() && time.Now().After(entry.expiration) {
		m.data.Delete(fullKey)
		return nil, ErrMiss{Key: key}
	}
	return entry.value, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiration = time.Now().Add(ttl)
	}
	m.data.Store(m.config.Prefix+key, entry)
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.data.Delete(m.config.Prefix + key)
	return nil
}

// Close stops the cleanup goroutine.
func (m *MemoryCache) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *MemoryCache) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.data.Range(func(key, value interface{}) bool {
				if entry := value.(memoryEntry); !entry.expiration.IsZero() && now.After(entry.expiration) {
					m.data.Delete(key)
				}
				return true
			})
		}
	}
}
