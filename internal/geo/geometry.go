package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"mapmeasure/internal/measure"
)

// EarthRadiusMeters is the mean spherical radius shared by every computation
// in this package.
const EarthRadiusMeters = 6371008.8

// DefaultCircleSteps is the vertex count of a circle ring before closing.
const DefaultCircleSteps = 64

// DistanceMeters returns the great-circle distance between two [lng,lat] points.
func DistanceMeters(a, b orb.Point) float64 {
	lat1 := toRadians(a.Lat())
	lat2 := toRadians(b.Lat())
	dLat := toRadians(b.Lat() - a.Lat())
	dLon := toRadians(b.Lon() - a.Lon())

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	calc := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(math.Min(1, calc)))
}

// Bearing returns the initial bearing from a to b in degrees clockwise from north.
func Bearing(a, b orb.Point) float64 {
	lat1 := toRadians(a.Lat())
	lat2 := toRadians(b.Lat())
	dLon := toRadians(b.Lon() - a.Lon())
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return toDegrees(math.Atan2(y, x))
}

// Destination returns the point reached by travelling meters from origin
// along a great circle with the given initial bearing.
func Destination(origin orb.Point, bearingDeg, meters float64) orb.Point {
	lon1 := toRadians(origin.Lon())
	lat1 := toRadians(origin.Lat())
	brg := toRadians(bearingDeg)
	delta := meters / EarthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(
		math.Sin(brg)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)
	return orb.Point{toDegrees(lon2), toDegrees(lat2)}
}

// CirclePolygon approximates a geodesic circle as a closed ring of steps+1
// vertices; vertex i lies at bearing 360*i/steps. Passing steps == 0 selects
// DefaultCircleSteps.
func CirclePolygon(center orb.Point, radiusMeters float64, steps int) (orb.Ring, error) {
	if !ValidPoint(center) {
		return nil, fmt.Errorf("%w: circle center %v", measure.ErrInvalidArgument, center)
	}
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: circle radius must be positive, got %v", measure.ErrInvalidArgument, radiusMeters)
	}
	if steps == 0 {
		steps = DefaultCircleSteps
	}
	if steps < 3 {
		return nil, fmt.Errorf("%w: circle needs at least 3 steps, got %d", measure.ErrInvalidArgument, steps)
	}

	ring := make(orb.Ring, 0, steps+1)
	for i := 0; i < steps; i++ {
		ring = append(ring, Destination(center, 360*float64(i)/float64(steps), radiusMeters))
	}
	ring = append(ring, ring[0])
	return ring, nil
}

// ValidPoint reports whether p has finite coordinates and a valid latitude.
func ValidPoint(p orb.Point) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(p.Lat()) <= 90
}

// FormatDistance renders meters the way the measurement list shows them.
func FormatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.1f km", meters/1000)
	}
	return fmt.Sprintf("%d m", int64(math.Round(meters)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
