// internal/tile/online.go - Online slippy-map tile source
package tile

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/pkg/geo"
)

// OnlineTiled is a tile server using the standard slippy-map naming and
// zoom scheme: OpenStreetMap, its renderers, or anything compatible.
type OnlineTiled struct {
	name        string
	urlTemplate string
	ext         string
	tileW       int
	tileH       int
	minZoom     int
	maxZoom     int
	refresh     RefreshPolicy
	attribution string
}

func newOnlineTiled(spec Spec) (*OnlineTiled, error) {
	if spec.URL == "" {
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("source %q: url is required for online sources", spec.Name), nil)
	}
	if _, err := url.Parse(spec.URL); err != nil {
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("source %q: invalid url", spec.Name), err)
	}

	s := &OnlineTiled{
		name:        spec.Name,
		urlTemplate: spec.URL,
		ext:         spec.Ext,
		tileW:       spec.TileWidth,
		tileH:       spec.TileHeight,
		minZoom:     spec.MinZoom,
		maxZoom:     spec.MaxZoom,
		attribution: spec.Attribution,
	}
	if s.ext == "" {
		s.ext = ".png"
	}
	if s.tileW == 0 {
		s.tileW = 256
	}
	if s.tileH == 0 {
		s.tileH = 256
	}
	if s.maxZoom == 0 {
		s.maxZoom = 19
	}
	if s.minZoom < 0 || s.maxZoom > 22 || s.minZoom > s.maxZoom {
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("source %q: bad zoom range %d..%d", spec.Name, s.minZoom, s.maxZoom), nil)
	}
	if spec.RefreshDays > 0 {
		s.refresh = RefreshPolicy{MaxAge: time.Duration(spec.RefreshDays) * 24 * time.Hour}
	}
	return s, nil
}

func (s *OnlineTiled) Name() string { return s.name }

func (s *OnlineTiled) CacheKey(addr Address) string {
	return path.Join(s.name, strconv.Itoa(addr.Z), strconv.Itoa(addr.X),
		strconv.Itoa(addr.Y)+s.ext)
}

// FetchTarget resolves the download URL. Templates may carry {z}/{x}/{y}
// placeholders; a bare base URL gets /z/x/y.ext appended, matching the
// two URL styles pytopo's sites files have always allowed.
func (s *OnlineTiled) FetchTarget(addr Address) (string, bool) {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(addr.Z),
		"{x}", strconv.Itoa(addr.X),
		"{y}", strconv.Itoa(addr.Y),
	)
	u := r.Replace(s.urlTemplate)
	if u == s.urlTemplate {
		u = strings.TrimSuffix(u, "/") + "/" + addr.String() + s.ext
	}
	return u, true
}

func (s *OnlineTiled) LocalPath(Address) (string, bool) { return "", false }

func (s *OnlineTiled) TileSize() (int, int) { return s.tileW, s.tileH }

func (s *OnlineTiled) ZoomRange() (int, int) { return s.minZoom, s.maxZoom }

func (s *OnlineTiled) InRange(addr Address) bool {
	return addr.Z >= s.minZoom && addr.Z <= s.maxZoom && addr.ValidSlippy()
}

func (s *OnlineTiled) Project(c geo.Coordinate, zoom int) (Address, Offset, error) {
	if zoom < s.minZoom || zoom > s.maxZoom {
		return Address{}, Offset{}, internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("source %q: zoom %d outside %d..%d", s.name, zoom, s.minZoom, s.maxZoom), nil)
	}
	return FromCoordinate(c, zoom, s.tileW)
}

func (s *OnlineTiled) Unproject(addr Address, off Offset) (geo.Coordinate, error) {
	if !s.InRange(addr) {
		return geo.Coordinate{}, internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("source %q: address %s out of range", s.name, addr), nil)
	}
	return ToCoordinate(addr, off, s.tileW), nil
}

func (s *OnlineTiled) Bounds(addr Address) (geo.BoundingBox, error) {
	if !s.InRange(addr) {
		return geo.BoundingBox{}, internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("source %q: address %s out of range", s.name, addr), nil)
	}
	return addr.Bounds(), nil
}

func (s *OnlineTiled) Attribution() string { return s.attribution }

func (s *OnlineTiled) Refresh() RefreshPolicy { return s.refresh }
