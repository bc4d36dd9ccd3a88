package geo

import (
	"math"

	"github.com/paulmach/orb"

	"mapmeasure/internal/measure"
)

// HitTest returns the id of the topmost measurement under at. Later
// measurements paint above earlier ones, so the list is scanned backwards.
// Distance lines and endpoints hit within toleranceMeters; circles hit
// anywhere inside their radius plus the tolerance.
func HitTest(ms []measure.Measurement, at orb.Point, toleranceMeters float64) (string, bool) {
	if !ValidPoint(at) {
		return "", false
	}
	for i := len(ms) - 1; i >= 0; i-- {
		m := ms[i]
		switch m.Kind {
		case measure.KindDistance:
			a, b, ok := m.Endpoints()
			if ok && DistanceToSegment(at, a, b) <= toleranceMeters {
				return m.ID, true
			}
		case measure.KindCircle:
			if m.Center != nil && DistanceMeters(*m.Center, at) <= m.Value+toleranceMeters {
				return m.ID, true
			}
		}
	}
	return "", false
}

// DistanceToSegment is the shortest great-circle distance in meters from p to
// the arc a-b.
func DistanceToSegment(p, a, b orb.Point) float64 {
	dAP := DistanceMeters(a, p)
	dAB := DistanceMeters(a, b)
	if dAB == 0 {
		return dAP
	}
	delta13 := dAP / EarthRadiusMeters
	theta := toRadians(Bearing(a, p) - Bearing(a, b))
	if math.Cos(theta) < 0 {
		return dAP
	}
	xt := math.Asin(clamp(math.Sin(delta13) * math.Sin(theta)))
	along := math.Acos(clamp(math.Cos(delta13) / math.Cos(xt)))
	if along*EarthRadiusMeters > dAB {
		return DistanceMeters(b, p)
	}
	return math.Abs(xt) * EarthRadiusMeters
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
