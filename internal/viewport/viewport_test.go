// internal/viewport/viewport_test.go - Unit tests for tile composition
package viewport

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akkana/pytopo/internal/cache"
	"github.com/akkana/pytopo/internal/tile"
	"github.com/akkana/pytopo/pkg/geo"
)

func localSource(t *testing.T, dir string) tile.Source {
	t.Helper()
	src, err := tile.NewSource(tile.Spec{
		Name:        "scans",
		Type:        tile.TypeGeneric,
		Path:        dir,
		Prefix:      "map",
		OriginLat:   36.0,
		OriginLon:   -107.0,
		TileDegrees: 0.25,
		Rows:        8,
		Cols:        8,
	})
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func slippySource(t *testing.T) tile.Source {
	t.Helper()
	src, err := tile.NewSource(tile.Spec{
		Name:    "osm",
		Type:    tile.TypeOnline,
		URL:     "https://tile.example.org/{z}/{x}/{y}.png",
		MaxZoom: 19,
	})
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func testScheduler(t *testing.T) *cache.Scheduler {
	t.Helper()
	c, err := cache.NewCache(t.TempDir(), 8)
	if err != nil {
		t.Fatal(err)
	}
	s := cache.NewScheduler(c, cache.NewFetcher(cache.FetchConfig{Timeout: time.Second}), 1, nil, nil)
	t.Cleanup(s.Close)
	return s
}

func TestLayoutCoversViewport(t *testing.T) {
	src := localSource(t, t.TempDir())
	center := geo.Coordinate{Lat: 35.0, Lon: -106.0}
	v, err := New(testScheduler(t), src, nil, center, 0, 800, 600, nil)
	if err != nil {
		t.Fatal(err)
	}

	placements, err := v.TilesNeeded()
	if err != nil {
		t.Fatal(err)
	}
	if len(placements) == 0 {
		t.Fatal("Empty layout for an in-range center")
	}

	window := image.Rect(0, 0, 800, 600)
	var union image.Rectangle
	seen := make(map[tile.Address]bool)
	for _, p := range placements {
		if p.Rect.Dx() != 300 || p.Rect.Dy() != 300 {
			t.Errorf("Placement %s has rect %v, want 300x300", p.Address, p.Rect)
		}
		if !p.Rect.Overlaps(window) {
			t.Errorf("Placement %s at %v does not intersect the window", p.Address, p.Rect)
		}
		if seen[p.Address] {
			t.Errorf("Address %s placed twice", p.Address)
		}
		seen[p.Address] = true
		union = union.Union(p.Rect)
	}
	if !window.In(union) {
		t.Errorf("Placements union %v does not cover window %v", union, window)
	}
}

func TestTilesNeededReportsCacheStatus(t *testing.T) {
	dir := t.TempDir()
	src := localSource(t, dir)
	center := geo.Coordinate{Lat: 35.0, Lon: -106.0}
	v, err := New(testScheduler(t), src, nil, center, 0, 400, 300, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Materialize exactly one of the covering tiles.
	addr, _, err := src.Project(center, 0)
	if err != nil {
		t.Fatal(err)
	}
	path, ok := src.LocalPath(addr)
	if !ok {
		t.Fatal("Center tile has no local path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("scan"), 0o644); err != nil {
		t.Fatal(err)
	}

	placements, err := v.TilesNeeded()
	if err != nil {
		t.Fatal(err)
	}

	var fresh, permanent int
	for _, p := range placements {
		switch p.Status {
		case cache.StatusHitFresh:
			fresh++
			if p.Path != path {
				t.Errorf("Fresh placement path %q, want %q", p.Path, path)
			}
		case cache.StatusMissPermanent:
			permanent++
		default:
			t.Errorf("Local source yielded status %v", p.Status)
		}
	}
	if fresh != 1 {
		t.Errorf("Expected exactly 1 fresh hit, got %d", fresh)
	}
	if permanent != len(placements)-1 {
		t.Errorf("Expected %d permanent misses, got %d", len(placements)-1, permanent)
	}
}

func TestTileReadyIgnoresDepartedTiles(t *testing.T) {
	src := localSource(t, t.TempDir())
	v, err := New(testScheduler(t), src, nil, geo.Coordinate{Lat: 35.0, Lon: -106.0}, 0, 400, 300, nil)
	if err != nil {
		t.Fatal(err)
	}
	placements, err := v.TilesNeeded()
	if err != nil {
		t.Fatal(err)
	}

	inLayout := cache.Result{
		Source:  src.Name(),
		Address: placements[0].Address,
		Key:     src.CacheKey(placements[0].Address),
		Lookup:  cache.Lookup{Status: cache.StatusHitFresh, Path: "/somewhere/tile"},
	}
	p, ok := v.TileReady(inLayout)
	if !ok {
		t.Fatal("Completion for a current tile was dropped")
	}
	if p.Status != cache.StatusHitFresh || p.Path != "/somewhere/tile" {
		t.Errorf("Placement not updated: %+v", p)
	}

	departed := cache.Result{
		Source:  src.Name(),
		Address: tile.Address{Z: 0, X: 7, Y: 7},
		Key:     src.CacheKey(tile.Address{Z: 0, X: 7, Y: 7}),
		Lookup:  cache.Lookup{Status: cache.StatusHitFresh},
	}
	if _, ok := v.TileReady(departed); ok {
		t.Error("Completion for a tile outside the layout was accepted")
	}
}

func TestPanByWholeTiles(t *testing.T) {
	src := slippySource(t)
	start := geo.Coordinate{Lat: 35.0, Lon: -106.0}
	v, err := New(testScheduler(t), src, nil, start, 12, 800, 600, nil)
	if err != nil {
		t.Fatal(err)
	}

	startAddr, startOff, err := src.Project(start, 12)
	if err != nil {
		t.Fatal(err)
	}

	// One full tile east: same offset, next column.
	if err := v.Pan(256, 0); err != nil {
		t.Fatalf("Pan() error = %v", err)
	}
	addr, off, err := src.Project(v.Center(), 12)
	if err != nil {
		t.Fatal(err)
	}
	if addr.X != startAddr.X+1 || addr.Y != startAddr.Y {
		t.Errorf("After pan east: tile %s, want column %d", addr, startAddr.X+1)
	}
	if abs(off.X-startOff.X) > 1 || abs(off.Y-startOff.Y) > 1 {
		t.Errorf("After pan east: offset %v, want near %v", off, startOff)
	}

	// Panning back returns close to the start.
	if err := v.Pan(-256, 0); err != nil {
		t.Fatal(err)
	}
	back := v.Center()
	if math.Abs(back.Lat-start.Lat) > 1e-3 || math.Abs(back.Lon-start.Lon) > 1e-3 {
		t.Errorf("Round-trip pan drifted from %v to %v", start, back)
	}
}

func TestPanStopsAtGridEdge(t *testing.T) {
	src := localSource(t, t.TempDir())
	// One tile from the north-west corner of the grid.
	start := geo.Coordinate{Lat: 35.9, Lon: -106.9}
	v, err := New(testScheduler(t), src, nil, start, 0, 400, 300, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := v.Pan(-10*300, 0); err == nil {
		t.Error("Pan far past the west edge should fail")
	}
	if got := v.Center(); got != start {
		t.Errorf("Failed pan moved the center from %v to %v", start, got)
	}
}

func TestZoomAndResizeValidation(t *testing.T) {
	src := slippySource(t)
	v, err := New(testScheduler(t), src, nil, geo.Coordinate{Lat: 35, Lon: -106}, 12, 800, 600, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := v.ZoomTo(25); err == nil {
		t.Error("Zoom past the source maximum should fail")
	}
	if err := v.ZoomTo(15); err != nil {
		t.Errorf("ZoomTo(15) error = %v", err)
	}
	if v.Zoom() != 15 {
		t.Errorf("Zoom() = %d, want 15", v.Zoom())
	}

	if err := v.Resize(0, 600); err == nil {
		t.Error("Zero width should fail")
	}
	if err := v.Resize(1024, 768); err != nil {
		t.Errorf("Resize() error = %v", err)
	}
	if w, h := v.Size(); w != 1024 || h != 768 {
		t.Errorf("Size() = %dx%d, want 1024x768", w, h)
	}
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
