// internal/viewport/viewport.go - Viewport tile composition
//
// A Viewport owns a center coordinate, zoom level and pixel size, and
// answers the one question a map window needs: which tiles cover me,
// and where does each one land in pixels. Tiles are requested through
// the fetch scheduler; arrivals come back through TileReady and are
// tolerated in any order, including after the viewport has moved on.
package viewport

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/internal/cache"
	"github.com/akkana/pytopo/internal/tile"
	"github.com/akkana/pytopo/pkg/geo"
)

// Placement is one tile of the current composition: where it draws in
// viewport pixels and what the cache knows about it.
type Placement struct {
	Source  string
	Address tile.Address
	Rect    image.Rectangle
	Status  cache.Status
	Path    string
}

// Viewport composes a base source and zero or more overlay sources
// into a tile layout for one window.
type Viewport struct {
	sched    *cache.Scheduler
	base     tile.Source
	overlays []tile.Source
	log      *slog.Logger

	mu      sync.Mutex
	center  geo.Coordinate
	zoom    int
	width   int
	height  int
	current map[string]Placement
}

// New creates a viewport centered on c. The zoom must be inside the
// base source's range and the pixel size positive.
func New(sched *cache.Scheduler, base tile.Source, overlays []tile.Source,
	c geo.Coordinate, zoom, width, height int, log *slog.Logger) (*Viewport, error) {

	if width <= 0 || height <= 0 {
		return nil, internal.NewError(internal.ErrorCodeDegenerate,
			fmt.Sprintf("viewport size %dx%d must be positive", width, height), nil)
	}
	minZ, maxZ := base.ZoomRange()
	if zoom < minZ || zoom > maxZ {
		return nil, internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("zoom %d outside source %q range %d..%d", zoom, base.Name(), minZ, maxZ), nil)
	}
	if _, _, err := base.Project(c, zoom); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Viewport{
		sched:    sched,
		base:     base,
		overlays: overlays,
		log:      log,
		center:   c,
		zoom:     zoom,
		width:    width,
		height:   height,
		current:  make(map[string]Placement),
	}, nil
}

// Center returns the current center coordinate.
func (v *Viewport) Center() geo.Coordinate {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center
}

// Zoom returns the current zoom level.
func (v *Viewport) Zoom() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

// Size returns the current pixel dimensions.
func (v *Viewport) Size() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

// TilesNeeded computes the covering tile set for the current view,
// requests every tile through the scheduler, and narrows the
// scheduler's interest set to exactly these tiles. The returned
// placements carry the immediate cache answer for each tile; tiles
// still fetching arrive later through TileReady.
func (v *Viewport) TilesNeeded() ([]Placement, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	placements, err := v.layout()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(placements))
	v.current = make(map[string]Placement, len(placements))
	for i := range placements {
		src := v.sourceNamed(placements[i].Source)
		key := src.CacheKey(placements[i].Address)
		lk := v.sched.Request(src, placements[i].Address)
		placements[i].Status = lk.Status
		placements[i].Path = lk.Path
		keys = append(keys, key)
		v.current[key] = placements[i]
	}
	v.sched.SetInterest(keys)

	return placements, nil
}

// TileReady reconciles a fetch completion with the current layout. It
// returns the updated placement, or ok == false when the viewport has
// moved on and the tile no longer belongs to the composition.
func (v *Viewport) TileReady(r cache.Result) (Placement, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	p, ok := v.current[r.Key]
	if !ok {
		return Placement{}, false
	}
	p.Status = r.Lookup.Status
	p.Path = r.Lookup.Path
	v.current[r.Key] = p
	return p, true
}

// Pan shifts the view by a pixel delta, east and south positive. The
// center stays put when the shift would leave the base source's range.
func (v *Viewport) Pan(dx, dy int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	addr, off, err := v.base.Project(v.center, v.zoom)
	if err != nil {
		return err
	}
	tw, th := v.base.TileSize()

	px, py := off.X+dx, off.Y+dy
	addr.X += floorDiv(px, tw)
	addr.Y += floorDiv(py, th)
	px, py = floorMod(px, tw), floorMod(py, th)

	c, err := v.base.Unproject(addr, tile.Offset{X: px, Y: py})
	if err != nil {
		return err
	}
	v.center = c
	return nil
}

// ZoomTo changes the zoom level, keeping the center fixed.
func (v *Viewport) ZoomTo(zoom int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	minZ, maxZ := v.base.ZoomRange()
	if zoom < minZ || zoom > maxZ {
		return internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("zoom %d outside source %q range %d..%d", zoom, v.base.Name(), minZ, maxZ), nil)
	}
	v.zoom = zoom
	return nil
}

// Resize changes the pixel dimensions, keeping the center fixed.
func (v *Viewport) Resize(width, height int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if width <= 0 || height <= 0 {
		return internal.NewError(internal.ErrorCodeDegenerate,
			fmt.Sprintf("viewport size %dx%d must be positive", width, height), nil)
	}
	v.width, v.height = width, height
	return nil
}

// layout computes the geometric tile placements for the base source
// and every overlay, in draw order with the base first. Overlays that
// cannot project the center, typically because the view has left their
// coverage, are skipped rather than failing the whole composition.
func (v *Viewport) layout() ([]Placement, error) {
	placements, err := v.layoutSource(v.base)
	if err != nil {
		return nil, err
	}
	for _, ov := range v.overlays {
		more, err := v.layoutSource(ov)
		if err != nil {
			v.log.Debug("overlay skipped", "source", ov.Name(), "error", err)
			continue
		}
		placements = append(placements, more...)
	}
	return placements, nil
}

func (v *Viewport) layoutSource(src tile.Source) ([]Placement, error) {
	addr, off, err := src.Project(v.center, v.zoom)
	if err != nil {
		return nil, err
	}
	tw, th := src.TileSize()

	// Pixel position of the center tile's top-left corner.
	cx := v.width/2 - off.X
	cy := v.height/2 - off.Y

	var placements []Placement
	for j := floorDiv(-cy, th); cy+j*th < v.height; j++ {
		for i := floorDiv(-cx, tw); cx+i*tw < v.width; i++ {
			a := tile.Address{Z: addr.Z, X: addr.X + i, Y: addr.Y + j}
			x0, y0 := cx+i*tw, cy+j*th
			placements = append(placements, Placement{
				Source:  src.Name(),
				Address: a,
				Rect:    image.Rect(x0, y0, x0+tw, y0+th),
			})
		}
	}
	return placements, nil
}

func (v *Viewport) sourceNamed(name string) tile.Source {
	if name == v.base.Name() {
		return v.base
	}
	for _, ov := range v.overlays {
		if ov.Name() == name {
			return ov
		}
	}
	return v.base
}

// floorDiv rounds toward negative infinity, unlike Go's / operator.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
