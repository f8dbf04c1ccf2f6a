// pkg/track/track.go - Track, waypoint and overlay model
package track

import (
	"fmt"
	"time"

	"github.com/akkana/pytopo/internal"
	"github.com/akkana/pytopo/pkg/geo"
)

// Point is one track point. Elevation and Time are optional; a nil
// pointer means the source file did not carry the value, which is
// preserved through serialization round trips.
type Point struct {
	Coord     geo.Coordinate
	Elevation *float64
	Time      *time.Time
	Name      string
}

// Track is an ordered sequence of points with display metadata.
type Track struct {
	Name   string
	Color  string
	Source string // file the track was loaded from, if any
	Points []Point
}

// Waypoint is a single named location.
type Waypoint struct {
	Coord     geo.Coordinate
	Elevation *float64
	Time      *time.Time
	Name      string
}

// Overlay is a polygon ring drawn over the map, classified by one of
// its properties (land-use class, fire perimeter year, and so on).
type Overlay struct {
	Name       string
	Ring       []geo.Coordinate
	Properties map[string]string
}

// Class returns the overlay's value for the configured class key.
func (o Overlay) Class(key string) string {
	return o.Properties[key]
}

// Document is everything loaded from one or more track files.
type Document struct {
	Tracks    []*Track
	Waypoints []Waypoint
	Overlays  []Overlay
}

// Bounds returns the geographic extent of the track's points.
func (t *Track) Bounds() geo.BoundingBox {
	b := geo.NewBoundingBox()
	for _, p := range t.Points {
		b = b.Add(p.Coord)
	}
	return b
}

// Bounds returns the extent of every track, waypoint and overlay.
func (d *Document) Bounds() geo.BoundingBox {
	b := geo.NewBoundingBox()
	for _, t := range d.Tracks {
		b = b.Union(t.Bounds())
	}
	for _, w := range d.Waypoints {
		b = b.Add(w.Coord)
	}
	for _, o := range d.Overlays {
		for _, c := range o.Ring {
			b = b.Add(c)
		}
	}
	return b
}

// clone copies the track with its own points slice. Elevation and Time
// pointees are copied too, so edits to one copy never reach another.
func (t *Track) clone(points []Point) *Track {
	c := &Track{
		Name:   t.Name,
		Color:  t.Color,
		Source: t.Source,
		Points: make([]Point, len(points)),
	}
	for i, p := range points {
		if p.Elevation != nil {
			e := *p.Elevation
			p.Elevation = &e
		}
		if p.Time != nil {
			ts := *p.Time
			p.Time = &ts
		}
		c.Points[i] = p
	}
	return c
}

// Split divides the track at a strictly interior point index. The
// point at index appears at the end of the first track and again at
// the start of the second, so neither half loses the segment touching
// the cut. The original track is left untouched.
func (t *Track) Split(index int) (*Track, *Track, error) {
	if index <= 0 || index >= len(t.Points)-1 {
		return nil, nil, internal.NewError(internal.ErrorCodeIndexRange,
			fmt.Sprintf("split index %d must be interior to 0..%d", index, len(t.Points)-1), nil)
	}
	first := t.clone(t.Points[:index+1])
	second := t.clone(t.Points[index:])
	if t.Name != "" {
		first.Name = t.Name + " (1)"
		second.Name = t.Name + " (2)"
	}
	return first, second, nil
}

// TrimBefore returns a new track without the points before index.
func (t *Track) TrimBefore(index int) (*Track, error) {
	if index < 0 || index >= len(t.Points) {
		return nil, internal.NewError(internal.ErrorCodeIndexRange,
			fmt.Sprintf("trim index %d outside 0..%d", index, len(t.Points)-1), nil)
	}
	return t.clone(t.Points[index:]), nil
}

// TrimAfter returns a new track without the points after index.
func (t *Track) TrimAfter(index int) (*Track, error) {
	if index < 0 || index >= len(t.Points) {
		return nil, internal.NewError(internal.ErrorCodeIndexRange,
			fmt.Sprintf("trim index %d outside 0..%d", index, len(t.Points)-1), nil)
	}
	return t.clone(t.Points[:index+1]), nil
}

// Older GPS units sometimes emit garbage timestamps, usually at or
// near the Unix epoch, for the first points of a track. Anything
// before 1990 cannot be a real GPS fix.
var bogusTimeCutoff = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// ScrubTimes repairs bogus timestamps in place: a point whose time
// predates the cutoff inherits the nearest earlier valid time, or
// loses its timestamp entirely when no valid time precedes it.
func (t *Track) ScrubTimes() {
	var lastValid *time.Time
	for i := range t.Points {
		pt := t.Points[i].Time
		if pt == nil {
			continue
		}
		if pt.Before(bogusTimeCutoff) {
			if lastValid != nil {
				fixed := *lastValid
				t.Points[i].Time = &fixed
			} else {
				t.Points[i].Time = nil
			}
			continue
		}
		lastValid = pt
	}
}
