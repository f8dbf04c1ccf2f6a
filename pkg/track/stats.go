// pkg/track/stats.go - Track statistics and simplification
package track

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/akkana/pytopo/pkg/geo"
)

// GPS elevation jitters by several meters between fixes; raw deltas
// would count hundreds of phantom meters of climb on a flat walk.
// Elevations are boxcar-smoothed over this many points before
// climb and descent are summed.
const elevationSmoothWindow = 5

// Below this speed the receiver is considered stopped, so lunch breaks
// do not count toward moving time.
const movingSpeedFloor = 0.5 // m/s

// Stats summarizes one track.
type Stats struct {
	Points       int
	Length       float64 // meters
	Climb        float64 // meters of ascent, smoothed
	Descent      float64 // meters of descent, smoothed
	TotalTime    time.Duration
	MovingTime   time.Duration
	MaxSpeed     float64 // m/s
	MinElevation float64
	MaxElevation float64
	HasElevation bool
	HasTime      bool
}

// Stats computes length, climb, timing and speed for the track.
func (t *Track) Stats() Stats {
	s := Stats{Points: len(t.Points)}
	if len(t.Points) == 0 {
		return s
	}

	for i := 1; i < len(t.Points); i++ {
		s.Length += geo.Distance(t.Points[i-1].Coord, t.Points[i].Coord)
	}

	smoothed := t.smoothedElevations()
	var prev *float64
	for i, p := range t.Points {
		if p.Elevation == nil {
			continue
		}
		e := smoothed[i]
		if !s.HasElevation {
			s.MinElevation, s.MaxElevation = e, e
			s.HasElevation = true
		} else {
			if e < s.MinElevation {
				s.MinElevation = e
			}
			if e > s.MaxElevation {
				s.MaxElevation = e
			}
		}
		if prev != nil {
			if d := e - *prev; d > 0 {
				s.Climb += d
			} else {
				s.Descent -= d
			}
		}
		ev := e
		prev = &ev
	}

	var firstTime, lastTime *time.Time
	for i := 1; i < len(t.Points); i++ {
		a, b := t.Points[i-1], t.Points[i]
		if a.Time == nil || b.Time == nil {
			continue
		}
		if firstTime == nil {
			firstTime = a.Time
		}
		lastTime = b.Time

		dt := b.Time.Sub(*a.Time)
		if dt <= 0 {
			continue
		}
		speed := geo.Distance(a.Coord, b.Coord) / dt.Seconds()
		if speed > s.MaxSpeed {
			s.MaxSpeed = speed
		}
		if speed >= movingSpeedFloor {
			s.MovingTime += dt
		}
	}
	if firstTime != nil && lastTime != nil {
		s.HasTime = true
		s.TotalTime = lastTime.Sub(*firstTime)
	}

	return s
}

// smoothedElevations returns per-point boxcar-smoothed elevations,
// indexed like Points. Points without elevation get a zero entry and
// are excluded from their neighbors' windows.
func (t *Track) smoothedElevations() []float64 {
	out := make([]float64, len(t.Points))
	half := elevationSmoothWindow / 2
	for i, p := range t.Points {
		if p.Elevation == nil {
			continue
		}
		sum, n := 0.0, 0
		for j := i - half; j <= i+half; j++ {
			if j < 0 || j >= len(t.Points) || t.Points[j].Elevation == nil {
				continue
			}
			sum += *t.Points[j].Elevation
			n++
		}
		out[i] = sum / float64(n)
	}
	return out
}

// metersPerDegree approximates one degree of latitude.
const metersPerDegree = 111132.0

// Simplify returns a geometrically reduced copy of the track using
// Douglas-Peucker with the given tolerance in meters. Per-point
// elevations and timestamps do not survive: the simplifier drops
// points, and the remaining ones no longer describe the original
// profile honestly.
func (t *Track) Simplify(toleranceMeters float64) *Track {
	if len(t.Points) < 3 || toleranceMeters <= 0 {
		return t.clone(t.Points)
	}

	ls := make(orb.LineString, len(t.Points))
	for i, p := range t.Points {
		ls[i] = orb.Point{p.Coord.Lon, p.Coord.Lat}
	}
	reduced := simplify.DouglasPeucker(toleranceMeters / metersPerDegree).LineString(ls)

	out := &Track{Name: t.Name, Color: t.Color, Source: t.Source}
	out.Points = make([]Point, len(reduced))
	for i, pos := range reduced {
		out.Points[i] = Point{Coord: geo.Coordinate{Lat: pos.Lat(), Lon: pos.Lon()}}
	}
	return out
}
