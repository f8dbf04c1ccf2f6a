// internal/tile/source_test.go - Unit tests for map source variants
package tile

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/akkana/pytopo/pkg/geo"
)

func onlineSpec() Spec {
	return Spec{
		Name:        "osm",
		Type:        TypeOnline,
		URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		MaxZoom:     19,
		RefreshDays: 90,
		Attribution: "© OpenStreetMap contributors",
	}
}

func regionSpec() Spec {
	return Spec{
		Name:        "sangre-topo",
		Type:        TypeRegion,
		Path:        "/maps/sangre",
		OriginLat:   36.0,
		OriginLon:   -106.0,
		TileDegrees: 0.125, // 7.5 minutes
		Rows:        16,
		Cols:        16,
	}
}

func parkSetSpec() Spec {
	return Spec{
		Name:        "parks",
		Type:        TypeParkSet,
		Path:        "/maps/parks",
		TileDegrees: 0.125,
		Regions: []RegionSpec{
			{Name: "bandelier", OriginLat: 35.9, OriginLon: -106.4, Rows: 2, Cols: 3},
			{Name: "pecos", OriginLat: 35.7, OriginLon: -105.8, Rows: 2, Cols: 2},
		},
	}
}

func genericSpec() Spec {
	return Spec{
		Name:        "geologic",
		Type:        TypeGeneric,
		Path:        "/maps/geologic",
		Prefix:      "geo",
		OriginLat:   36.0,
		OriginLon:   -107.0,
		TileDegrees: 0.25,
		Rows:        4,
		Cols:        6,
		UseDash:     true,
	}
}

func TestNewSourceVariants(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{name: "online", spec: onlineSpec()},
		{name: "region", spec: regionSpec()},
		{name: "parkset", spec: parkSetSpec()},
		{name: "generic", spec: genericSpec()},
		{name: "missing name", spec: Spec{Type: TypeOnline, URL: "https://x"}, wantErr: true},
		{name: "unknown type", spec: Spec{Name: "x", Type: "teleport"}, wantErr: true},
		{name: "online without url", spec: Spec{Name: "x", Type: TypeOnline}, wantErr: true},
		{name: "region without path", spec: Spec{Name: "x", Type: TypeRegion, TileDegrees: 0.125, OriginLat: 36, OriginLon: -106}, wantErr: true},
		{name: "generic without grid", spec: Spec{Name: "x", Type: TypeGeneric, Path: "/m", TileDegrees: 0.25}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSource(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSource() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildSourcesDropsMalformed(t *testing.T) {
	specs := []Spec{
		onlineSpec(),
		{Name: "broken", Type: TypeOnline}, // no URL
		genericSpec(),
	}
	sources, dropped := BuildSources(specs)
	if len(sources) != 2 {
		t.Errorf("Expected 2 sources, got %d", len(sources))
	}
	if len(dropped) != 1 {
		t.Errorf("Expected 1 dropped definition, got %d", len(dropped))
	}
	if _, ok := sources["broken"]; ok {
		t.Error("Malformed source should have been omitted")
	}
}

func TestOnlineFetchTarget(t *testing.T) {
	src, err := NewSource(onlineSpec())
	if err != nil {
		t.Fatal(err)
	}
	addr := Address{Z: 12, X: 687, Y: 1583}

	url, ok := src.FetchTarget(addr)
	if !ok {
		t.Fatal("Online source should have a fetch target")
	}
	if url != "https://tile.openstreetmap.org/12/687/1583.png" {
		t.Errorf("Unexpected URL %s", url)
	}

	// Old-style bare base URL gets /z/x/y.ext appended.
	spec := onlineSpec()
	spec.URL = "http://a.tile.openstreetmap.org"
	src, err = NewSource(spec)
	if err != nil {
		t.Fatal(err)
	}
	url, _ = src.FetchTarget(addr)
	if url != "http://a.tile.openstreetmap.org/12/687/1583.png" {
		t.Errorf("Unexpected old-style URL %s", url)
	}

	if _, ok := src.LocalPath(addr); ok {
		t.Error("Online source should not resolve local paths")
	}
}

func TestOnlineCacheKey(t *testing.T) {
	src, _ := NewSource(onlineSpec())
	key := src.CacheKey(Address{Z: 12, X: 687, Y: 1583})
	if key != "osm/12/687/1583.png" {
		t.Errorf("Unexpected cache key %s", key)
	}
}

func TestLocalRegionResolution(t *testing.T) {
	src, err := NewSource(regionSpec())
	if err != nil {
		t.Fatal(err)
	}

	// No network fetch target, ever.
	if _, ok := src.FetchTarget(Address{Z: 0, X: 0, Y: 0}); ok {
		t.Fatal("Local region source must not have a fetch target")
	}

	c := geo.Coordinate{Lat: 35.85, Lon: -105.6}
	addr, _, err := src.Project(c, 0)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if !src.InRange(addr) {
		t.Fatalf("Projected address %s out of range", addr)
	}

	b, err := src.Bounds(addr)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Contains(c) {
		t.Errorf("Bounds %v does not contain %v", b, c)
	}

	path, ok := src.LocalPath(addr)
	if !ok {
		t.Fatal("Expected a local path inside the grid")
	}
	dir := filepath.Base(filepath.Dir(path))
	if !strings.HasPrefix(dir, "q35105") {
		t.Errorf("Quad directory %q does not encode 35N 105W", dir)
	}
	if !strings.HasPrefix(filepath.Base(path), "012t") {
		t.Errorf("Maplet file %q missing series prefix", filepath.Base(path))
	}

	// Outside the grid: projection fails, addresses resolve to nothing.
	if _, _, err := src.Project(geo.Coordinate{Lat: 40, Lon: -100}, 0); err == nil {
		t.Error("Expected out-of-bounds error for coordinate outside grid")
	}
	if src.InRange(Address{Z: 0, X: 99, Y: 0}) {
		t.Error("Address outside grid reported in range")
	}
}

func TestLocalParkSetResolution(t *testing.T) {
	src, err := NewSource(parkSetSpec())
	if err != nil {
		t.Fatal(err)
	}

	inBandelier := geo.Coordinate{Lat: 35.82, Lon: -106.3}
	addr, _, err := src.Project(inBandelier, 0)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	key := src.CacheKey(addr)
	if !strings.Contains(key, "bandelier") {
		t.Errorf("Cache key %q should include the region name", key)
	}
	path, ok := src.LocalPath(addr)
	if !ok {
		t.Fatal("Expected a local path inside the region")
	}
	if filepath.Base(filepath.Dir(path)) != "bandelier" {
		t.Errorf("Path %q not under the region directory", path)
	}

	// The gap between the two parks projects onto the lattice but
	// belongs to no region.
	gap := geo.Coordinate{Lat: 35.85, Lon: -106.0}
	gapAddr, _, err := src.Project(gap, 0)
	if err != nil {
		t.Skip("gap coordinate fell outside the lattice")
	}
	if src.InRange(gapAddr) {
		t.Error("Address between regions reported in range")
	}
	if _, ok := src.LocalPath(gapAddr); ok {
		t.Error("Address between regions resolved to a path")
	}
}

func TestGenericLocalFilenames(t *testing.T) {
	src, err := NewSource(genericSpec())
	if err != nil {
		t.Fatal(err)
	}

	path, ok := src.LocalPath(Address{Z: 0, X: 3, Y: 1})
	if !ok {
		t.Fatal("Expected a local path inside the grid")
	}
	if filepath.Base(path) != "geo03-01.jpg" {
		t.Errorf("Unexpected filename %q", filepath.Base(path))
	}

	// Latitude-first numbering swaps the two indices.
	spec := genericSpec()
	spec.LatFirst = true
	spec.UseDash = false
	src, _ = NewSource(spec)
	path, _ = src.LocalPath(Address{Z: 0, X: 3, Y: 1})
	if filepath.Base(path) != "geo0103.jpg" {
		t.Errorf("Unexpected lat-first filename %q", filepath.Base(path))
	}

	if _, ok := src.LocalPath(Address{Z: 0, X: 6, Y: 0}); ok {
		t.Error("Column past the grid edge resolved to a path")
	}
}
