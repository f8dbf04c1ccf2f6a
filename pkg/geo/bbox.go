// pkg/geo/bbox.go - Geographic bounding box
package geo

import "fmt"

// Sentinel values that no real coordinate can take, so an empty box is
// distinguishable from one covering the whole world.
const (
	tooBigLon   = 361
	tooSmallLon = -361
	tooBigLat   = 91
	tooSmallLat = -91
)

// BoundingBox is an axis-aligned geographic rectangle. The zero value
// from NewBoundingBox is empty; extend it with Add or Union.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// NewBoundingBox returns an empty bounding box.
func NewBoundingBox() BoundingBox {
	return BoundingBox{
		MinLat: tooBigLat,
		MinLon: tooBigLon,
		MaxLat: tooSmallLat,
		MaxLon: tooSmallLon,
	}
}

// Empty reports whether the box has never been extended.
func (b BoundingBox) Empty() bool {
	return b.MinLon == tooBigLon || b.MaxLon == tooSmallLon ||
		b.MinLat == tooBigLat || b.MaxLat == tooSmallLat
}

// Add extends the box to include c.
func (b BoundingBox) Add(c Coordinate) BoundingBox {
	if c.Lon < b.MinLon {
		b.MinLon = c.Lon
	}
	if c.Lon > b.MaxLon {
		b.MaxLon = c.Lon
	}
	if c.Lat < b.MinLat {
		b.MinLat = c.Lat
	}
	if c.Lat > b.MaxLat {
		b.MaxLat = c.Lat
	}
	return b
}

// Union returns the smallest box containing both b and other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	if other.Empty() {
		return b
	}
	if b.Empty() {
		return other
	}
	return b.Add(Coordinate{Lat: other.MinLat, Lon: other.MinLon}).
		Add(Coordinate{Lat: other.MaxLat, Lon: other.MaxLon})
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat &&
		c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// Intersects reports whether the two boxes share any area or edge.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	if b.Empty() || other.Empty() {
		return false
	}
	return b.MinLon <= other.MaxLon && b.MaxLon >= other.MinLon &&
		b.MinLat <= other.MaxLat && b.MaxLat >= other.MinLat
}

// Center returns the midpoint of the box. Does not compensate for
// boxes crossing the antimeridian.
func (b BoundingBox) Center() Coordinate {
	return Coordinate{
		Lat: (b.MaxLat + b.MinLat) / 2,
		Lon: (b.MaxLon + b.MinLon) / 2,
	}
}

// String implements fmt.Stringer.
func (b BoundingBox) String() string {
	return fmt.Sprintf("<BoundingBox lat %.3f to %.3f, lon %.3f to %.3f>",
		b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
}
