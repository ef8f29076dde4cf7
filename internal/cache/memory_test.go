package cache

import (
	"testing"
	"time"

	"tunedeck/pkg/models"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v.(int) != 1 {
		t.Errorf("Expected cached value 1, got %v (%v)", v, ok)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Expected value to be deleted")
	}

	c.Set("b", 2)
	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", c.Size())
	}

	// Close twice must not panic
	c.Close()
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()

	c.mutex.Lock()
	c.items["stale"] = &CacheEntry{Value: "x", Expiration: time.Now().Add(-time.Second)}
	c.mutex.Unlock()

	if _, ok := c.Get("stale"); ok {
		t.Error("Expected expired entry to be a miss")
	}
}

func TestZeroTTLDisablesCaching(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()

	c.Set("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Error("Expected zero ttl cache to never hit")
	}
}

func TestSongCache(t *testing.T) {
	sc := NewSongCache(time.Minute)
	defer sc.Close()

	if _, ok := sc.GetSongs(); ok {
		t.Fatal("Expected empty song cache")
	}

	songs := []models.Song{{ID: "s1", Title: "One"}, {ID: "s2", Title: "Two"}}
	sc.SetSongs(songs)

	// Mutating the caller's slice must not leak into the cache
	songs[0].Title = "Changed"

	cached, ok := sc.GetSongs()
	if !ok {
		t.Fatal("Expected cached songs")
	}
	if len(cached) != 2 || cached[0].Title != "One" {
		t.Errorf("Unexpected cached songs: %+v", cached)
	}

	sc.InvalidateSongs()
	if _, ok := sc.GetSongs(); ok {
		t.Error("Expected miss after invalidation")
	}
}

func TestSongCacheSkipsStaleListing(t *testing.T) {
	sc := NewSongCache(time.Minute)
	defer sc.Close()

	generation := sc.Generation()

	// A mutation lands between reading the listing and caching it
	sc.InvalidateSongs()

	if sc.SetSongsIfCurrent([]models.Song{{ID: "old"}}, generation) {
		t.Error("Expected listing read before invalidation to be dropped")
	}
	if _, ok := sc.GetSongs(); ok {
		t.Error("Expected cache to stay empty")
	}

	if !sc.SetSongsIfCurrent([]models.Song{{ID: "new"}}, sc.Generation()) {
		t.Error("Expected current listing to be cached")
	}
	if cached, ok := sc.GetSongs(); !ok || cached[0].ID != "new" {
		t.Errorf("Unexpected cached songs: %+v", cached)
	}
}
