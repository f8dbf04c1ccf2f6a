// pkg/geo/degmin.go - Degrees/minutes conversion helpers
//
// Older map datasets and GPS receivers express coordinates as
// degrees.minutes rather than decimal degrees; these helpers convert
// between the two notations.
package geo

import (
	"fmt"
	"math"
)

// DegMinToDecDeg converts a degrees.minutes coordinate to decimal degrees.
func DegMinToDecDeg(coord float64) float64 {
	deg := intTrunc(coord)
	dec := (coord - float64(deg)) / .6
	return float64(deg) + dec
}

// DecDegToDegMin converts decimal degrees to degrees.minutes notation.
func DecDegToDegMin(coord float64) float64 {
	sgn := 1.0
	if coord < 0 {
		sgn = -1
		coord = -coord
	}
	deg := intTrunc(coord)
	minutes := math.Abs(coord-float64(deg)) * .6
	return sgn * (float64(deg) + minutes)
}

// DecDegToDMS converts decimal degrees to (degrees, minutes, seconds).
func DecDegToDMS(dd float64) (int, int, float64) {
	positive := dd >= 0
	dd = math.Abs(dd)
	minutes, seconds := math.Floor(dd*3600/60), math.Mod(dd*3600, 60)
	degrees, minutes := int(minutes/60), math.Mod(minutes, 60)
	if !positive {
		degrees = -degrees
	}
	return degrees, int(minutes), seconds
}

// DegMinString formats decimal degrees as a degrees/minutes string,
// e.g. 35^12.60'.
func DegMinString(coord float64) string {
	sgnstr := ""
	if coord < 0 {
		sgnstr = "-"
		coord = -coord
	}
	deg := intTrunc(coord)
	minutes := Truncate2Frac(math.Abs(coord-float64(deg))*60, .01)
	return fmt.Sprintf("%s%d^%g'", sgnstr, deg, minutes)
}

// Truncate2Frac truncates num to a multiple of the given fraction.
func Truncate2Frac(num, frac float64) float64 {
	t := float64(intTrunc(num/frac)) * frac
	if num < 0 {
		t -= frac
	}
	return t
}

// intTrunc truncates to an integer without .999999 artifacts.
func intTrunc(num float64) int {
	return int(num + .00001)
}
