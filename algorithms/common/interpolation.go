package common

import (
	"math"
)

// ParabolicPeak fits a parabola through three equally spaced points around a
// local maximum y2 and returns the vertex offset from the centre point (in
// sample units) and the interpolated height. ok is false when the points are
// collinear or the vertex falls outside the centre sample.
func ParabolicPeak(y1, y2, y3 float64) (offset, value float64, ok bool) {
	denom := y1 - 2.0*y2 + y3
	if math.Abs(denom) < 1e-12 {
		return 0, y2, false
	}

	offset = 0.5 * (y1 - y3) / denom
	if offset < -0.5 || offset > 0.5 {
		return 0, y2, false
	}

	return offset, y2 - 0.25*(y1-y3)*offset, true
}
