// internal/tile/local.go - Local pre-tiled map sources
//
// Three variants of maps that ship on disk and are never fetched:
// LocalRegion for Topo-style commercial datasets laid out in per-quad
// directories, LocalParkSet for datasets organized as a small numbered
// set per named park, and GenericLocal for home-made tile sets cut from
// scanned maps. A missing tile from any of them is a permanent miss.
package tile

import (
	"fmt"
	"path/filepath"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/pkg/geo"
)

// grid is a bounded rectangular tile lattice anchored at a north-west
// origin, shared by all local source variants.
type grid struct {
	origin geo.Coordinate // north-west corner of tile (0, 0)
	dLon   float64        // per-tile extent in degrees longitude
	dLat   float64        // per-tile extent in degrees latitude
	cols   int
	rows   int
	zoom   int // the single native zoom level
	tileW  int
	tileH  int
}

func (g grid) inRange(a Address) bool {
	return a.Z == g.zoom && a.X >= 0 && a.X < g.cols && a.Y >= 0 && a.Y < g.rows
}

func (g grid) project(c geo.Coordinate) (Address, Offset, error) {
	fx := (c.Lon - g.origin.Lon) / g.dLon
	fy := (g.origin.Lat - c.Lat) / g.dLat
	if fx < 0 || fy < 0 || int(fx) >= g.cols || int(fy) >= g.rows {
		return Address{}, Offset{}, internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("coordinate %v outside the map grid", c), nil)
	}
	x, y := int(fx), int(fy)
	return Address{Z: g.zoom, X: x, Y: y},
		Offset{
			X: int((fx - float64(x)) * float64(g.tileW)),
			Y: int((fy - float64(y)) * float64(g.tileH)),
		}, nil
}

func (g grid) bounds(a Address) (geo.BoundingBox, error) {
	if !g.inRange(a) {
		return geo.BoundingBox{}, internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("address %s outside the map grid", a), nil)
	}
	west := g.origin.Lon + float64(a.X)*g.dLon
	north := g.origin.Lat - float64(a.Y)*g.dLat
	return geo.BoundingBox{
		MinLat: north - g.dLat,
		MaxLat: north,
		MinLon: west,
		MaxLon: west + g.dLon,
	}, nil
}

func validateGridSpec(spec Spec) error {
	if spec.Path == "" {
		return internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("source %q: path is required for local sources", spec.Name), nil)
	}
	if spec.TileDegrees <= 0 {
		return internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("source %q: tile_degrees must be positive", spec.Name), nil)
	}
	return nil
}

// localBase carries the behavior common to the local variants: no fetch
// target ever, a single native zoom, grid-based projection.
type localBase struct {
	name        string
	location    string
	ext         string
	attribution string
	grid        grid
}

func (s *localBase) Name() string { return s.name }

func (s *localBase) FetchTarget(Address) (string, bool) { return "", false }

func (s *localBase) TileSize() (int, int) { return s.grid.tileW, s.grid.tileH }

func (s *localBase) ZoomRange() (int, int) { return s.grid.zoom, s.grid.zoom }

func (s *localBase) InRange(addr Address) bool { return s.grid.inRange(addr) }

// Project ignores the requested zoom: local datasets exist at exactly
// one scale, so every zoom level resolves to the native lattice.
func (s *localBase) Project(c geo.Coordinate, _ int) (Address, Offset, error) {
	return s.grid.project(c)
}

func (s *localBase) Bounds(addr Address) (geo.BoundingBox, error) {
	return s.grid.bounds(addr)
}

// Unproject interpolates linearly within the tile's degree extent,
// which is how the flat local grids are laid out.
func (s *localBase) Unproject(addr Address, off Offset) (geo.Coordinate, error) {
	b, err := s.grid.bounds(addr)
	if err != nil {
		return geo.Coordinate{}, err
	}
	return geo.Coordinate{
		Lat: b.MaxLat - float64(off.Y)/float64(s.grid.tileH)*s.grid.dLat,
		Lon: b.MinLon + float64(off.X)/float64(s.grid.tileW)*s.grid.dLon,
	}, nil
}

func (s *localBase) Attribution() string { return s.attribution }

// Refresh never marks local tiles stale; there is nowhere to refresh
// them from.
func (s *localBase) Refresh() RefreshPolicy { return RefreshPolicy{} }

func newLocalBase(spec Spec, defaultExt string, tileW, tileH int) localBase {
	ext := spec.Ext
	if ext == "" {
		ext = defaultExt
	}
	return localBase{
		name:        spec.Name,
		location:    spec.Path,
		ext:         ext,
		attribution: spec.Attribution,
		grid: grid{
			origin: geo.Coordinate{Lat: spec.OriginLat, Lon: spec.OriginLon},
			dLon:   spec.TileDegrees,
			dLat:   spec.TileDegrees,
			cols:   spec.Cols,
			rows:   spec.Rows,
			zoom:   spec.Zoom,
			tileW:  tileW,
			tileH:  tileH,
		},
	}
}

// LocalRegion is a Topo-style commercial dataset: a fixed directory of
// quad subdirectories named for the degree square they cover, each
// holding maplets numbered within the quad.
type LocalRegion struct {
	localBase
	prefix string
}

func newLocalRegion(spec Spec) (*LocalRegion, error) {
	if err := validateGridSpec(spec); err != nil {
		return nil, err
	}
	// Topo quad naming encodes north latitude and west longitude as
	// positive integers; the datasets only exist for that quadrant.
	if spec.OriginLat <= 0 || spec.OriginLon >= 0 {
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("source %q: region sources need a NW-quadrant origin", spec.Name), nil)
	}

	tileW, tileH := spec.TileWidth, spec.TileHeight
	if tileW == 0 {
		tileW = 266
	}
	if tileH == 0 {
		tileH = 266
	}
	prefix := spec.Prefix
	if prefix == "" {
		prefix = "012t"
	}
	return &LocalRegion{
		localBase: newLocalBase(spec, ".gif", tileW, tileH),
		prefix:    prefix,
	}, nil
}

func (s *LocalRegion) CacheKey(addr Address) string {
	if p, ok := s.LocalPath(addr); ok {
		if rel, err := filepath.Rel(s.location, p); err == nil {
			return filepath.ToSlash(filepath.Join(s.name, rel))
		}
	}
	return filepath.ToSlash(filepath.Join(s.name, addr.String()+s.ext))
}

// LocalPath maps an address to its quad directory and maplet file, the
// Topo layout: q{lat}{lon}{letter}{digit}/{prefix}{col}{row}{ext} where
// letter/digit index 7.5-minute quads within the degree square.
func (s *LocalRegion) LocalPath(addr Address) (string, bool) {
	b, err := s.grid.bounds(addr)
	if err != nil {
		return "", false
	}
	lat, lon := b.MaxLat, b.MinLon

	latDeg := intTruncGeo(lat)
	lonDeg := intTruncGeo(-lon)
	latMin := (lat - float64(latDeg)) * 60
	lonMin := (-lon - float64(lonDeg)) * 60

	// Quads subdivide the degree square on 7.5-minute boundaries
	// regardless of the maplet series inside them.
	latOrd := intTruncGeo(latMin / 7.5)
	lonOrd := intTruncGeo(lonMin / 7.5)
	dirname := "q" + ohstring(latDeg, 2) + ohstring(lonDeg, 3) +
		string(rune('a'+latOrd)) + fmt.Sprintf("%d", lonOrd+1)

	series := s.grid.dLat * 60
	numcharts := 10
	if series > 13 {
		numcharts = 5
	}
	latOff := intTruncGeo((latMin - float64(latOrd)*7.5) * 10 / series)
	lonOff := intTruncGeo((lonMin - float64(lonOrd)*7.5) * 10 / series)

	filename := s.prefix + ohstring(numcharts-lonOff, 2) +
		ohstring(numcharts-latOff, 2) + s.ext
	return filepath.Join(s.location, dirname, filename), true
}

// LocalParkSet is a Topo-style dataset organized as a small numbered
// tile set per named park or region rather than a global quad grid.
type LocalParkSet struct {
	localBase
	prefix  string
	regions []parkRegion
}

type parkRegion struct {
	name   string
	origin geo.Coordinate // north-west corner
	rows   int
	cols   int
}

func newLocalParkSet(spec Spec) (*LocalParkSet, error) {
	if err := validateGridSpec(spec); err != nil {
		return nil, err
	}
	if len(spec.Regions) == 0 {
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("source %q: parkset sources need at least one region", spec.Name), nil)
	}

	tileW, tileH := spec.TileWidth, spec.TileHeight
	if tileW == 0 {
		tileW = 410
	}
	if tileH == 0 {
		tileH = 256
	}
	prefix := spec.Prefix
	if prefix == "" {
		prefix = "map"
	}

	// The shared lattice anchors at the north-west-most region corner
	// and spans far enough to cover the south-east-most one.
	anchor := geo.Coordinate{Lat: -91, Lon: 361}
	maxLonExtent, minLatExtent := -361.0, 91.0
	regions := make([]parkRegion, 0, len(spec.Regions))
	for _, r := range spec.Regions {
		if r.Name == "" || r.Rows <= 0 || r.Cols <= 0 {
			return nil, internal.NewError(internal.ErrorCodeConfig,
				fmt.Sprintf("source %q: region needs a name and positive rows/cols", spec.Name), nil)
		}
		if r.OriginLat > anchor.Lat {
			anchor.Lat = r.OriginLat
		}
		if r.OriginLon < anchor.Lon {
			anchor.Lon = r.OriginLon
		}
		east := r.OriginLon + float64(r.Cols)*spec.TileDegrees
		south := r.OriginLat - float64(r.Rows)*spec.TileDegrees
		if east > maxLonExtent {
			maxLonExtent = east
		}
		if south < minLatExtent {
			minLatExtent = south
		}
		regions = append(regions, parkRegion{
			name:   r.Name,
			origin: geo.Coordinate{Lat: r.OriginLat, Lon: r.OriginLon},
			rows:   r.Rows,
			cols:   r.Cols,
		})
	}

	spec.OriginLat = anchor.Lat
	spec.OriginLon = anchor.Lon
	spec.Cols = int((maxLonExtent-anchor.Lon)/spec.TileDegrees + 0.5)
	spec.Rows = int((anchor.Lat-minLatExtent)/spec.TileDegrees + 0.5)

	return &LocalParkSet{
		localBase: newLocalBase(spec, ".jpg", tileW, tileH),
		prefix:    prefix,
		regions:   regions,
	}, nil
}

// regionFor finds the region containing the tile's center, plus the
// tile's row/column within that region's own grid.
func (s *LocalParkSet) regionFor(addr Address) (parkRegion, int, int, bool) {
	b, err := s.grid.bounds(addr)
	if err != nil {
		return parkRegion{}, 0, 0, false
	}
	center := b.Center()
	for _, r := range s.regions {
		col := int((center.Lon - r.origin.Lon) / s.grid.dLon)
		row := int((r.origin.Lat - center.Lat) / s.grid.dLat)
		if center.Lon >= r.origin.Lon && center.Lat <= r.origin.Lat &&
			col < r.cols && row < r.rows {
			return r, row, col, true
		}
	}
	return parkRegion{}, 0, 0, false
}

// CacheKey includes the region name, since tile numbers restart in
// every park.
func (s *LocalParkSet) CacheKey(addr Address) string {
	if r, row, col, ok := s.regionFor(addr); ok {
		n := row*r.cols + col + 1
		return filepath.ToSlash(filepath.Join(s.name, r.name, s.prefix+ohstring(n, 3)+s.ext))
	}
	return filepath.ToSlash(filepath.Join(s.name, addr.String()+s.ext))
}

func (s *LocalParkSet) LocalPath(addr Address) (string, bool) {
	r, row, col, ok := s.regionFor(addr)
	if !ok {
		return "", false
	}
	n := row*r.cols + col + 1
	return filepath.Join(s.location, r.name, s.prefix+ohstring(n, 3)+s.ext), true
}

func (s *LocalParkSet) InRange(addr Address) bool {
	if !s.grid.inRange(addr) {
		return false
	}
	_, _, _, ok := s.regionFor(addr)
	return ok
}

// GenericLocal is a user-defined tile set: origin, per-tile extent and
// row/column counts from configuration, filenames prefix-NN-MM.ext with
// or without the dash, latitude index optionally first.
type GenericLocal struct {
	localBase
	prefix    string
	numDigits int
	useDash   bool
	latFirst  bool
}

func newGenericLocal(spec Spec) (*GenericLocal, error) {
	if err := validateGridSpec(spec); err != nil {
		return nil, err
	}
	if spec.Rows <= 0 || spec.Cols <= 0 {
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("source %q: generic sources need positive rows and cols", spec.Name), nil)
	}

	tileW, tileH := spec.TileWidth, spec.TileHeight
	if tileW == 0 {
		tileW = 300
	}
	if tileH == 0 {
		tileH = 300
	}
	numDigits := spec.NumDigits
	if numDigits == 0 {
		numDigits = 2
	}
	return &GenericLocal{
		localBase: newLocalBase(spec, ".jpg", tileW, tileH),
		prefix:    spec.Prefix,
		numDigits: numDigits,
		useDash:   spec.UseDash,
		latFirst:  spec.LatFirst,
	}, nil
}

func (s *GenericLocal) filename(addr Address) string {
	a, b := addr.X, addr.Y
	if s.latFirst {
		a, b = addr.Y, addr.X
	}
	sep := ""
	if s.useDash {
		sep = "-"
	}
	return s.prefix + ohstring(a, s.numDigits) + sep + ohstring(b, s.numDigits) + s.ext
}

func (s *GenericLocal) CacheKey(addr Address) string {
	return filepath.ToSlash(filepath.Join(s.name, s.filename(addr)))
}

func (s *GenericLocal) LocalPath(addr Address) (string, bool) {
	if !s.grid.inRange(addr) {
		return "", false
	}
	return filepath.Join(s.location, s.filename(addr)), true
}

// intTruncGeo truncates to an integer without .999999 artifacts.
func intTruncGeo(num float64) int {
	return int(num + .00001)
}
