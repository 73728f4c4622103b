package orientation

import (
	"math"
)

// HeadingFromField returns the planar compass heading in degrees [0, 360)
// for a field measured in the sensor's X/Y plane. No tilt compensation is
// applied, so the result is only meaningful with the board held level.
//
//	heading = atan2(y, x)
func HeadingFromField(x, y float64) float64 {
	if x == 0 && y == 0 {
		return 0
	}
	deg := math.Atan2(y, x) * 180.0 / math.Pi
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

var cardinals = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Cardinal returns the nearest of the eight compass points for heading.
func Cardinal(heading float64) string {
	h := math.Mod(heading, 360)
	if h < 0 {
		h += 360
	}
	return cardinals[int(math.Round(h/45))%len(cardinals)]
}
