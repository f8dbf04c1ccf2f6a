// internal/cache/cache.go - Disk tile store with an in-memory read cache
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/internal/tile"
)

// Status classifies the outcome of a tile request.
type Status int

const (
	// StatusHitFresh means a usable tile is on disk and not stale.
	StatusHitFresh Status = iota
	// StatusHitStale means a usable tile is on disk but past its
	// source's max age; a background refresh has been scheduled.
	StatusHitStale
	// StatusMissFetching means nothing usable is on disk and a fetch is
	// in flight; the caller will hear back through the scheduler.
	StatusMissFetching
	// StatusMissPermanent means the source can never produce this tile.
	StatusMissPermanent
)

func (s Status) String() string {
	switch s {
	case StatusHitFresh:
		return "hit"
	case StatusHitStale:
		return "stale"
	case StatusMissFetching:
		return "fetching"
	case StatusMissPermanent:
		return "permanent-miss"
	default:
		return "unknown"
	}
}

// Lookup is the answer to one tile request. Path is set for both hit
// statuses; Err carries the reason for a permanent miss.
type Lookup struct {
	Status Status
	Path   string
	Err    error
}

// Cache is the on-disk tile store, keyed by Source.CacheKey under a
// single root directory, with a small LRU of recently read tile bytes
// in front of it. Staleness combines the per-source refresh policy with
// a global forced-refresh mark; a write always postdates the mark, so a
// fetch completing after a forced refresh lands fresh.
type Cache struct {
	root string
	mem  *lru.Cache[string, []byte]

	mu       sync.Mutex
	markedAt time.Time

	// now is replaceable for tests.
	now func() time.Time
}

// NewCache opens (creating if needed) the cache rooted at root, keeping
// up to memTiles recently read tiles in memory.
func NewCache(root string, memTiles int) (*Cache, error) {
	if root == "" {
		return nil, internal.NewError(internal.ErrorCodeConfig, "cache root is required", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("cannot create cache root %s", root), err)
	}
	if memTiles <= 0 {
		memTiles = 128
	}
	mem, err := lru.New[string, []byte](memTiles)
	if err != nil {
		return nil, err
	}
	return &Cache{
		root: root,
		mem:  mem,
		now:  time.Now,
	}, nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// Path returns the on-disk location for a cache key, whether or not a
// tile is present there.
func (c *Cache) Path(key string) string {
	return filepath.Join(c.root, filepath.FromSlash(key))
}

// Read returns the tile bytes for key, from memory if recently read.
func (c *Cache) Read(key string) ([]byte, error) {
	if data, ok := c.mem.Get(key); ok {
		return data, nil
	}
	data, err := os.ReadFile(c.Path(key))
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("cannot read cached tile %s", key), err)
	}
	c.mem.Add(key, data)
	return data, nil
}

// Write stores tile bytes under key atomically: the data lands in a
// temp file in the destination directory and is renamed into place, so
// a concurrent reader never sees a partial tile.
func (c *Cache) Write(key string, data []byte) error {
	dst := c.Path(key)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("cannot create cache directory %s", dir), err)
	}

	tmp, err := os.CreateTemp(dir, ".tile-*")
	if err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("cannot create temp file in %s", dir), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("cannot write tile %s", key), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("cannot finish writing tile %s", key), err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("cannot move tile %s into place", key), err)
	}

	c.mem.Add(key, data)
	return nil
}

// FetchedAt reports when the tile under key was last written, and
// whether it exists at all.
func (c *Cache) FetchedAt(key string) (time.Time, bool) {
	fi, err := os.Stat(c.Path(key))
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}

// MarkAllStale records a forced-refresh mark: every tile written before
// this moment is treated as stale regardless of its source's policy.
// Tiles written afterward, including fetches already in flight, count
// as fresh; the newest write wins.
func (c *Cache) MarkAllStale() {
	c.mu.Lock()
	c.markedAt = c.now()
	c.mu.Unlock()
}

// Stale reports whether a tile fetched at the given time should be
// refreshed under the given policy.
func (c *Cache) Stale(fetchedAt time.Time, policy tile.RefreshPolicy) bool {
	c.mu.Lock()
	marked := c.markedAt
	c.mu.Unlock()

	if !marked.IsZero() && fetchedAt.Before(marked) {
		return true
	}
	return policy.Stale(fetchedAt, c.now())
}
