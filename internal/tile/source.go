// internal/tile/source.go - Map source abstraction and factory
package tile

import (
	"fmt"
	"strings"
	"time"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/pkg/geo"
)

// RefreshPolicy controls when a cached tile is considered stale.
// The zero value means a cached copy never goes stale; forced
// re-download bypasses the policy entirely.
type RefreshPolicy struct {
	MaxAge time.Duration
}

// Never reports whether tiles from this policy never expire on their own.
func (p RefreshPolicy) Never() bool {
	return p.MaxAge <= 0
}

// Stale reports whether a tile fetched at the given time has expired.
func (p RefreshPolicy) Stale(fetchedAt, now time.Time) bool {
	if p.Never() {
		return false
	}
	return now.Sub(fetchedAt) > p.MaxAge
}

// Source is the capability set shared by every tile origin. The cache
// and viewport are written once against this interface; only address
// resolution and fetch-target resolution differ per variant.
type Source interface {
	// Name is the configured identifier, unique across sources.
	Name() string

	// CacheKey returns the stable key for an address, also used as the
	// tile's relative path under the cache root for fetched sources.
	CacheKey(addr Address) string

	// FetchTarget resolves an address to a download URL. Local sources
	// return ok == false: a missing tile is permanent, never fetched.
	FetchTarget(addr Address) (url string, ok bool)

	// LocalPath resolves an address to an on-disk tile path for sources
	// whose tiles ship on disk. Fetched sources return ok == false.
	LocalPath(addr Address) (path string, ok bool)

	// TileSize returns the pixel dimensions of one tile.
	TileSize() (w, h int)

	// ZoomRange returns the inclusive zoom levels the source supports.
	ZoomRange() (min, max int)

	// InRange is the scheme-specific valid-range predicate.
	InRange(addr Address) bool

	// Project maps a coordinate to the tile containing it at the given
	// zoom, with the pixel offset of the coordinate inside the tile.
	Project(c geo.Coordinate, zoom int) (Address, Offset, error)

	// Unproject is the inverse of Project: the coordinate at a pixel
	// offset within a tile.
	Unproject(addr Address, off Offset) (geo.Coordinate, error)

	// Bounds returns the geographic box a tile covers.
	Bounds(addr Address) (geo.BoundingBox, error)

	// Attribution is the credit line to draw over the map.
	Attribution() string

	// Refresh is the staleness policy for cached tiles.
	Refresh() RefreshPolicy
}

// Spec is a map source definition as it appears in the configuration
// file. One Spec produces one Source variant; a malformed Spec is
// reported at load time and the source omitted, never fatal.
type Spec struct {
	Name        string  `mapstructure:"name"`
	Type        string  `mapstructure:"type"`
	URL         string  `mapstructure:"url"`
	Path        string  `mapstructure:"path"`
	Ext         string  `mapstructure:"ext"`
	Prefix      string  `mapstructure:"prefix"`
	TileWidth   int     `mapstructure:"tile_width"`
	TileHeight  int     `mapstructure:"tile_height"`
	MinZoom     int     `mapstructure:"min_zoom"`
	MaxZoom     int     `mapstructure:"max_zoom"`
	Zoom        int     `mapstructure:"zoom"`
	RefreshDays int     `mapstructure:"refresh_days"`
	Attribution string  `mapstructure:"attribution"`
	OriginLat   float64 `mapstructure:"origin_lat"`
	OriginLon   float64 `mapstructure:"origin_lon"`
	TileDegrees float64 `mapstructure:"tile_degrees"`
	Rows        int     `mapstructure:"rows"`
	Cols        int     `mapstructure:"cols"`
	NumDigits   int     `mapstructure:"num_digits"`
	UseDash     bool    `mapstructure:"use_dash"`
	LatFirst    bool    `mapstructure:"lat_first"`

	Regions []RegionSpec `mapstructure:"regions"`
}

// RegionSpec names one park/region of a LocalParkSet source.
type RegionSpec struct {
	Name      string  `mapstructure:"name"`
	OriginLat float64 `mapstructure:"origin_lat"`
	OriginLon float64 `mapstructure:"origin_lon"`
	Rows      int     `mapstructure:"rows"`
	Cols      int     `mapstructure:"cols"`
}

// Source type names accepted in configuration.
const (
	TypeOnline  = "online"
	TypeRegion  = "region"
	TypeParkSet = "parkset"
	TypeGeneric = "generic"
)

// NewSource builds the Source variant described by spec.
func NewSource(spec Spec) (Source, error) {
	if spec.Name == "" {
		return nil, internal.NewError(internal.ErrorCodeConfig, "source name is required", nil)
	}

	switch strings.ToLower(spec.Type) {
	case TypeOnline:
		return newOnlineTiled(spec)
	case TypeRegion:
		return newLocalRegion(spec)
	case TypeParkSet:
		return newLocalParkSet(spec)
	case TypeGeneric:
		return newGenericLocal(spec)
	default:
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("source %q: unsupported type %q", spec.Name, spec.Type), nil)
	}
}

// BuildSources constructs every well-formed source in specs and reports
// the definitions that had to be dropped. Configuration errors never
// abort loading; a bad source is simply absent from the returned set.
func BuildSources(specs []Spec) (map[string]Source, []error) {
	sources := make(map[string]Source, len(specs))
	var dropped []error

	for _, spec := range specs {
		src, err := NewSource(spec)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		if _, dup := sources[src.Name()]; dup {
			dropped = append(dropped, internal.NewError(internal.ErrorCodeConfig,
				fmt.Sprintf("duplicate source name %q", src.Name()), nil))
			continue
		}
		sources[src.Name()] = src
	}

	return sources, dropped
}

// ohstring returns a zero-prefixed string of the given number of digits.
func ohstring(num, numdigits int) string {
	return fmt.Sprintf("%0*d", numdigits, num)
}
