package backtest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCacheTTL is how long a finished run stays retrievable.
const DefaultCacheTTL = time.Hour

type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

// ResultCache keeps finished runs in memory under a generated run id so
// clients can page or stream their rows after the run request returned.
type ResultCache struct {
	mu    sync.RWMutex
	store map[string]*cacheEntry
	ttl   time.Duration
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

// NewResultCache returns an empty cache. A ttl <= 0 selects DefaultCacheTTL.
// Expired entries are swept in the background until Close is called.
func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &ResultCache{
		store: make(map[string]*cacheEntry),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	go c.cleanup(sweepInterval(ttl))
	return c
}

// Put stores res and returns its run id.
func (c *ResultCache) Put(res *Result) string {
	id := uuid.NewString()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[id] = &cacheEntry{result: res, expiresAt: c.now().Add(c.ttl)}
	return id
}

// Get returns the run stored under id if it has not expired.
func (c *ResultCache) Get(id string) (*Result, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.store[id]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

// Len returns the number of stored runs, expired ones included until swept.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Clear removes every run.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*cacheEntry)
}

// Close stops the background sweep.
func (c *ResultCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *ResultCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, entry := range c.store {
		if now.After(entry.expiresAt) {
			delete(c.store, id)
		}
	}
}

func (c *ResultCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl < 5*time.Minute {
		return ttl
	}
	return 5 * time.Minute
}
