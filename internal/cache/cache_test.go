// internal/cache/cache_test.go - Unit tests for the disk tile store
package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akkana/pytopo/internal/tile"
)

func TestCacheWriteRead(t *testing.T) {
	c, err := NewCache(t.TempDir(), 4)
	if err != nil {
		t.Fatal(err)
	}

	data := []byte("not really a png")
	if err := c.Write("osm/12/687/1583.png", data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := c.Read("osm/12/687/1583.png")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Read returned different bytes than written")
	}

	// The key maps to nested directories under the root.
	p := c.Path("osm/12/687/1583.png")
	if _, err := os.Stat(p); err != nil {
		t.Errorf("Tile file missing at %s: %v", p, err)
	}
	if filepath.Dir(filepath.Dir(p)) == c.Root() {
		t.Errorf("Key did not map to a nested path: %s", p)
	}
}

func TestCacheReadMissing(t *testing.T) {
	c, err := NewCache(t.TempDir(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Read("osm/1/0/0.png"); err == nil {
		t.Error("Expected error reading a tile that was never written")
	}
}

func TestCacheWriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	c, err := NewCache(root, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Write("osm/5/10/12.png", []byte("x")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "osm", "5", "10"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "12.png" {
		t.Errorf("Expected exactly the tile file, got %v", entries)
	}
}

func TestCacheStaleness(t *testing.T) {
	c, err := NewCache(t.TempDir(), 4)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	daily := tile.RefreshPolicy{MaxAge: 24 * time.Hour}

	if c.Stale(now.Add(-time.Hour), daily) {
		t.Error("Hour-old tile should be fresh under a one-day policy")
	}
	if !c.Stale(now.Add(-48*time.Hour), daily) {
		t.Error("Two-day-old tile should be stale under a one-day policy")
	}
	if c.Stale(now.Add(-1000*time.Hour), tile.RefreshPolicy{}) {
		t.Error("Zero policy must never mark tiles stale")
	}
}

func TestForcedRefreshNewestWriteWins(t *testing.T) {
	c, err := NewCache(t.TempDir(), 4)
	if err != nil {
		t.Fatal(err)
	}
	key := "osm/3/4/5.png"
	if err := c.Write(key, []byte("old")); err != nil {
		t.Fatal(err)
	}
	fetchedAt, ok := c.FetchedAt(key)
	if !ok {
		t.Fatal("Tile vanished after write")
	}

	// Ensure the mark strictly postdates the first write.
	c.now = func() time.Time { return fetchedAt.Add(time.Second) }
	c.MarkAllStale()

	if !c.Stale(fetchedAt, tile.RefreshPolicy{}) {
		t.Error("Tile written before the mark should be stale")
	}

	// A write completing after the mark counts as fresh, even if the
	// fetch it came from started before the mark.
	later := fetchedAt.Add(2 * time.Second)
	if c.Stale(later, tile.RefreshPolicy{}) {
		t.Error("Tile written after the mark should be fresh")
	}
}
