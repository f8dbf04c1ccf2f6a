// internal/tile/address.go - Tile addressing and slippy-map projection
package tile

import (
	"fmt"
	"math"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/pkg/geo"
)

// Address identifies a tile within a source's own tiling scheme.
// For slippy-map schemes 0 <= X, Y < 2^Z; local grid schemes use a
// bounded rectangle instead and validate through their Source.
type Address struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// Offset is a pixel position within a tile, measured from its top-left
// corner.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Placement pairs an address with the fractional pixel offset of the
// coordinate it was projected from.
type Placement struct {
	Address Address
	Offset  Offset
}

// String returns the z/x/y form used in cache keys and URLs.
func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Z, a.X, a.Y)
}

// FromCoordinate maps a coordinate to the slippy-map tile containing it
// at the given zoom, plus the pixel offset of the coordinate within that
// tile. This is the standard Web-Mercator-style tiling used by online
// sources; grid-based local sources project through their own Source.
func FromCoordinate(c geo.Coordinate, zoom, tileSize int) (Address, Offset, error) {
	if zoom < 0 {
		return Address{}, Offset{}, internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("negative zoom level %d", zoom), nil)
	}
	// Web Mercator is undefined at the poles; the projection cutoff
	// is atan(sinh(pi)) = 85.0511 degrees.
	if math.Abs(c.Lat) > 85.0511 {
		return Address{}, Offset{}, internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("latitude %g outside Web Mercator range", c.Lat), nil)
	}

	powZoom := math.Pow(2, float64(zoom))
	latRad := c.Lat * math.Pi / 180
	xf := (c.Lon + 180.0) / 360.0 * powZoom
	yf := (1.0 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2.0 * powZoom

	x := int(xf)
	y := int(yf)
	// Longitude 180 projects exactly onto the east edge.
	n := int(powZoom)
	if x >= n {
		x = n - 1
	}
	if y >= n {
		y = n - 1
	}

	return Address{Z: zoom, X: x, Y: y},
		Offset{
			X: int((xf - float64(x)) * float64(tileSize)),
			Y: int((yf - float64(y)) * float64(tileSize)),
		}, nil
}

// ToCoordinate is the inverse of FromCoordinate: the coordinate at a
// pixel offset within a slippy-map tile.
func ToCoordinate(a Address, off Offset, tileSize int) geo.Coordinate {
	powZoom := math.Pow(2, float64(a.Z))
	xf := float64(a.X) + float64(off.X)/float64(tileSize)
	yf := float64(a.Y) + float64(off.Y)/float64(tileSize)
	lon := xf/powZoom*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*yf/powZoom)))
	return geo.Coordinate{Lat: latRad * 180 / math.Pi, Lon: lon}
}

// NorthWest returns the coordinate of the tile's north-west corner under
// the slippy-map scheme.
func (a Address) NorthWest() geo.Coordinate {
	powZoom := math.Pow(2, float64(a.Z))
	lon := float64(a.X)/powZoom*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(a.Y)/powZoom)))
	return geo.Coordinate{Lat: latRad * 180 / math.Pi, Lon: lon}
}

// Bounds returns the geographic bounding box the tile covers under the
// slippy-map scheme, used to decide which tiles intersect a viewport.
func (a Address) Bounds() geo.BoundingBox {
	nw := a.NorthWest()
	se := Address{Z: a.Z, X: a.X + 1, Y: a.Y + 1}.NorthWest()
	return geo.BoundingBox{
		MinLat: se.Lat,
		MaxLat: nw.Lat,
		MinLon: nw.Lon,
		MaxLon: se.Lon,
	}
}

// ValidSlippy reports whether the address is inside the square grid of
// its zoom level.
func (a Address) ValidSlippy() bool {
	if a.Z < 0 || a.Z > 30 {
		return false
	}
	n := 1 << uint(a.Z)
	return a.X >= 0 && a.X < n && a.Y >= 0 && a.Y < n
}

// Range is a rectangular set of tiles across one or more zoom levels.
type Range struct {
	MinZ int `json:"min_z"`
	MaxZ int `json:"max_z"`
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// Count returns the total number of tiles in the range.
func (r Range) Count() int64 {
	var total int64
	for z := r.MinZ; z <= r.MaxZ; z++ {
		total += int64(r.MaxX-r.MinX+1) * int64(r.MaxY-r.MinY+1)
	}
	return total
}

// Validate checks the range against the slippy-map grid at each zoom.
func (r Range) Validate() error {
	if r.MinZ < 0 || r.MaxZ > 22 {
		return internal.NewError(internal.ErrorCodeOutOfBounds,
			"zoom levels must be between 0 and 22", nil)
	}
	if r.MinZ > r.MaxZ {
		return internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("min zoom (%d) cannot be greater than max zoom (%d)", r.MinZ, r.MaxZ), nil)
	}
	if r.MinX > r.MaxX || r.MinY > r.MaxY {
		return internal.NewError(internal.ErrorCodeOutOfBounds,
			"range minimum exceeds maximum", nil)
	}
	for z := r.MinZ; z <= r.MaxZ; z++ {
		maxTile := 1 << uint(z)
		if r.MinX < 0 || r.MaxX >= maxTile || r.MinY < 0 || r.MaxY >= maxTile {
			return internal.NewError(internal.ErrorCodeOutOfBounds,
				fmt.Sprintf("coordinates for zoom %d must be between 0 and %d", z, maxTile-1), nil)
		}
	}
	return nil
}

// RangeForBox returns the tile range covering a bounding box at a single
// zoom level under the slippy-map scheme.
func RangeForBox(box geo.BoundingBox, zoom, tileSize int) (Range, error) {
	nw, _, err := FromCoordinate(geo.Coordinate{Lat: box.MaxLat, Lon: box.MinLon}, zoom, tileSize)
	if err != nil {
		return Range{}, err
	}
	se, _, err := FromCoordinate(geo.Coordinate{Lat: box.MinLat, Lon: box.MaxLon}, zoom, tileSize)
	if err != nil {
		return Range{}, err
	}
	return Range{
		MinZ: zoom, MaxZ: zoom,
		MinX: nw.X, MaxX: se.X,
		MinY: nw.Y, MaxY: se.Y,
	}, nil
}
