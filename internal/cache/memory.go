package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-memory LRU cache with TTL support
type MemoryCache struct {
	lru  *lru.Cache[string, *entry]
	ttl  time.Duration
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemoryCache creates a cache holding at most size entries for ttl each
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	c, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, err
	}

	mc := &MemoryCache{
		lru:  c,
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go mc.cleanupLoop()

	return mc, nil
}

// Get retrieves a value from the cache
func (mc *MemoryCache) Get(key string) ([]byte, bool) {
	e, ok := mc.lru.Get(key)
	if !ok {
		return nil, false
	}
	if mc.now().After(e.expiresAt) {
		mc.lru.Remove(key)
		return nil, false
	}
	return e.data, true
}

// Set stores a value in the cache
func (mc *MemoryCache) Set(key string, value []byte) {
	mc.lru.Add(key, &entry{
		data:      value,
		expiresAt: mc.now().Add(mc.ttl),
	})
}

// Len returns the number of entries, expired ones included
func (mc *MemoryCache) Len() int {
	return mc.lru.Len()
}

// Close stops the cleanup goroutine
func (mc *MemoryCache) Close() {
	mc.once.Do(func() {
		close(mc.stop)
	})
}

func (mc *MemoryCache) cleanupLoop() {
	interval := mc.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.C:
			mc.removeExpired()
		}
	}
}

func (mc *MemoryCache) removeExpired() {
	now := mc.now()
	for _, key := range mc.lru.Keys() {
		if e, ok := mc.lru.Peek(key); ok && now.After(e.expiresAt) {
			mc.lru.Remove(key)
		}
	}
}

// NoopCache never stores anything
type NoopCache struct{}

// NewNoopCache creates a new no-op cache
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

// Get always returns not found
func (NoopCache) Get(string) ([]byte, bool) { return nil, false }

// Set does nothing
func (NoopCache) Set(string, []byte) {}

// Close does nothing
func (NoopCache) Close() {}
