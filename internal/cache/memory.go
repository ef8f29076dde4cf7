package cache

import (
	"sync"
	"time"

	"tunedeck/pkg/models"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Value      interface{}
	Expiration time.Time
}

// IsExpired checks if the cache entry has expired
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expiration)
}

// MemoryCache implements a simple in-memory TTL cache
type MemoryCache struct {
	items map[string]*CacheEntry
	mutex sync.RWMutex
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a new memory cache. A ttl of zero disables caching:
// Set becomes a no-op.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]*CacheEntry),
		ttl:   ttl,
		done:  make(chan struct{}),
	}

	if ttl > 0 {
		go cache.cleanupExpired(cleanupInterval(ttl))
	}

	return cache
}

// Set stores a value in the cache
func (c *MemoryCache) Set(key string, value interface{}) {
	if c.ttl <= 0 {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheEntry{
		Value:      value,
		Expiration: time.Now().Add(c.ttl),
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists || entry.IsExpired() {
		return nil, false
	}

	return entry.Value, true
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*CacheEntry)
}

// Size returns the number of items in the cache
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.items)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.done) })
}

// cleanupExpired removes expired entries periodically
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mutex.Lock()
			for key, entry := range c.items {
				if entry.IsExpired() {
					delete(c.items, key)
				}
			}
			c.mutex.Unlock()
		}
	}
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Minute {
		return time.Minute
	}
	if ttl > 5*time.Minute {
		return 5 * time.Minute
	}
	return ttl
}

const allSongsKey = "songs:all"

// SongCache provides convenience methods for caching the catalog listing.
// A generation counter guards against storing a listing that was read before
// the latest invalidation.
type SongCache struct {
	*MemoryCache
	mu         sync.Mutex
	generation uint64
}

// NewSongCache creates a new song cache
func NewSongCache(ttl time.Duration) *SongCache {
	return &SongCache{
		MemoryCache: NewMemoryCache(ttl),
	}
}

// SetSongs caches the full song listing. The slice is copied so callers may
// keep mutating their own.
func (sc *SongCache) SetSongs(songs []models.Song) {
	sc.Set(allSongsKey, append([]models.Song(nil), songs...))
}

// Generation returns the invalidation counter. Read it before loading the
// listing and pass it to SetSongsIfCurrent.
func (sc *SongCache) Generation() uint64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.generation
}

// SetSongsIfCurrent caches songs only when no invalidation happened since
// generation was read. It reports whether the listing was stored.
func (sc *SongCache) SetSongsIfCurrent(songs []models.Song, generation uint64) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.generation != generation {
		return false
	}
	sc.SetSongs(songs)
	return true
}

// GetSongs retrieves the cached song listing
func (sc *SongCache) GetSongs() ([]models.Song, bool) {
	value, exists := sc.Get(allSongsKey)
	if !exists {
		return nil, false
	}

	songs, ok := value.([]models.Song)
	if !ok {
		return nil, false
	}
	return append([]models.Song(nil), songs...), true
}

// InvalidateSongs drops the cached listing after a catalog mutation
func (sc *SongCache) InvalidateSongs() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.generation++
	sc.Delete(allSongsKey)
}
