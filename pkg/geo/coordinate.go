// pkg/geo/coordinate.go - Geographic coordinate value type
package geo

import (
	"fmt"
	"math"

	"github.com/akkana/pytopo/internal"
)

// EarthRadiusKm is the mean earth radius used by the spherical
// approximations in this package.
const EarthRadiusKm = 6371.0

// Coordinate is an immutable latitude/longitude pair in decimal degrees.
// Latitude is in [-90, 90]; longitude is normalized to (-180, 180].
type Coordinate struct {
	Lat float64
	Lon float64
}

// NewCoordinate validates lat and normalizes lon into a Coordinate.
// Latitude outside [-90, 90] is rejected; longitude is wrapped.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return Coordinate{}, internal.NewError(internal.ErrorCodeDegenerate, "coordinate is NaN", nil)
	}
	if lat < -90 || lat > 90 {
		return Coordinate{}, internal.NewError(internal.ErrorCodeDegenerate,
			fmt.Sprintf("latitude %g out of range [-90, 90]", lat), nil)
	}
	return Coordinate{Lat: lat, Lon: NormalizeLon(lon)}, nil
}

// NormalizeLon wraps a longitude into (-180, 180].
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon > 180 {
		lon -= 360
	} else if lon <= -180 {
		lon += 360
	}
	return lon
}

// String formats the coordinate in decimal degrees, 7 places, the way
// pytopo prints positions in its status bar.
func (c Coordinate) String() string {
	s := fmt.Sprintf("%.7f E  ", c.Lon)
	if c.Lat >= 0 {
		s += fmt.Sprintf("%.7f N", c.Lat)
	} else {
		s += fmt.Sprintf("%.7f S", -c.Lat)
	}
	return s
}

// Distance returns the great-circle distance between a and b in meters,
// using the haversine formula on a spherical earth. Symmetric in its
// arguments; Distance(a, a) is 0.
func Distance(a, b Coordinate) float64 {
	return EarthRadiusKm * haversineAngle(a, b) * 1000
}

// haversineAngle returns the central angle between two points in radians.
func haversineAngle(a, b Coordinate) float64 {
	dLat := toRad(a.Lat - b.Lat)
	dLon := toRad(a.Lon - b.Lon)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*
			math.Cos(lat1)*math.Cos(lat2)
	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial bearing from a to b along the great circle,
// in degrees in [0, 360). Fails with a degenerate-input error when the
// two points coincide, since atan2(0, 0) has no meaningful direction.
func Bearing(a, b Coordinate) (float64, error) {
	if a == b {
		return 0, internal.NewError(internal.ErrorCodeDegenerate,
			"bearing of a point to itself is undefined", nil)
	}

	lat1 := toRad(a.Lat)
	lon1 := toRad(a.Lon)
	lat2 := toRad(b.Lat)
	lon2 := toRad(b.Lon)

	// Most bearing code floating around is wrong; this is the
	// movable-type formulation pytopo settled on after testing.
	y := math.Sin(lon2-lon1) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1)

	brng := math.Mod(toDeg(math.Atan2(y, x)), 360)
	if brng < 0 {
		brng += 360
	}
	return brng, nil
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
