package geo

import (
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapmeasure/internal/measure"
)

var samplePoints = []orb.Point{
	{6.9578, 50.9422},
	{7.0982, 50.7374},
	{-73.9855, 40.758},
	{139.6917, 35.6895},
	{0, 0},
	{179.9, -45},
	{-179.9, -45},
	{12.5, 78.2},
}

func TestDistanceMetersIsSymmetricAndZeroOnSelf(t *testing.T) {
	for _, a := range samplePoints {
		assert.Equal(t, 0.0, DistanceMeters(a, a), "self distance for %v", a)
		for _, b := range samplePoints {
			assert.Equal(t, DistanceMeters(a, b), DistanceMeters(b, a), "symmetry %v %v", a, b)
		}
	}
}

func TestDistanceMetersMatchesReferenceFormula(t *testing.T) {
	for _, a := range samplePoints {
		for _, b := range samplePoints {
			ref := orbgeo.DistanceHaversine(a, b)
			if ref == 0 {
				continue
			}
			got := DistanceMeters(a, b)
			assert.Less(t, math.Abs(got-ref)/ref, 0.005, "%v -> %v got %v ref %v", a, b, got, ref)
		}
	}
}

func TestDistanceMetersOneDegreeOfLatitude(t *testing.T) {
	got := DistanceMeters(orb.Point{0, 0}, orb.Point{0, 1})
	want := EarthRadiusMeters * math.Pi / 180
	assert.InDelta(t, want, got, 1e-6)
}

func TestDestinationRoundTrip(t *testing.T) {
	origin := orb.Point{6.9578, 50.9422}
	for _, brg := range []float64{0, 45, 90, 180, 270, 333} {
		p := Destination(origin, brg, 1234)
		assert.InDelta(t, 1234, DistanceMeters(origin, p), 1e-6)
	}
	north := Destination(origin, 0, 1000)
	assert.Greater(t, north.Lat(), origin.Lat())
	assert.InDelta(t, origin.Lon(), north.Lon(), 1e-9)
}

func TestCirclePolygonClosedRingWithinTolerance(t *testing.T) {
	centers := []orb.Point{{6.9578, 50.9422}, {0, 0}, {-73.9855, 40.758}, {20, 70}}
	for _, c := range centers {
		for _, r := range []float64{50, 500, 5000, 100000} {
			ring, err := CirclePolygon(c, r, DefaultCircleSteps)
			require.NoError(t, err)
			require.Len(t, ring, DefaultCircleSteps+1)
			assert.Equal(t, ring[0], ring[len(ring)-1])
			for _, v := range ring {
				d := DistanceMeters(c, v)
				assert.Less(t, math.Abs(d-r)/r, 0.001, "center %v radius %v vertex %v", c, r, v)
			}
		}
	}
}

func TestCirclePolygonSteps(t *testing.T) {
	c := orb.Point{6.9578, 50.9422}

	ring, err := CirclePolygon(c, 500, 0)
	require.NoError(t, err)
	assert.Len(t, ring, 65)

	ring, err = CirclePolygon(c, 500, 8)
	require.NoError(t, err)
	assert.Len(t, ring, 9)
	// second vertex sits at bearing 45
	assert.InDelta(t, 45, Bearing(c, ring[1]), 1e-6)

	_, err = CirclePolygon(c, 500, 2)
	assert.ErrorIs(t, err, measure.ErrInvalidArgument)
}

func TestCirclePolygonRejectsNonPositiveRadius(t *testing.T) {
	c := orb.Point{6.9578, 50.9422}
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := CirclePolygon(c, r, 64)
		assert.ErrorIs(t, err, measure.ErrInvalidArgument, "radius %v", r)
	}
	_, err := CirclePolygon(orb.Point{0, 95}, 100, 64)
	assert.ErrorIs(t, err, measure.ErrInvalidArgument)
}

func TestSnapRadius(t *testing.T) {
	targets := DefaultSnapTargets
	cases := []struct {
		raw  float64
		want float64
	}{
		{503, 500},
		{530, 530},
		{1490, 1490},
		{1985, 2000},
		{480, 500},
		{520, 500},
		{479.6, 480},
		{5019.9, 5000},
		{51.2, 51},
		// math.Round: halves round away from zero
		{1234.5, 1235},
		{60.5, 61},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SnapRadius(tc.raw, targets, 20), "raw %v", tc.raw)
	}
}

func TestSnapRadiusTieChoosesFirstTarget(t *testing.T) {
	assert.Equal(t, 500.0, SnapRadius(750, []float64{500, 1000}, 300))
	assert.Equal(t, 1000.0, SnapRadius(750, []float64{1000, 500}, 300))
}

func TestSnapRadiusWithoutTargets(t *testing.T) {
	assert.Equal(t, 743.0, SnapRadius(742.7, nil, 20))
}

func TestSnapperHint(t *testing.T) {
	assert.Equal(t, "Snaps near 500 m, 1.0 km, 2.0 km, 5.0 km", DefaultSnapper().Hint())
	assert.Equal(t, "", Snapper{}.Hint())
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "530 m", FormatDistance(530.2))
	assert.Equal(t, "0 m", FormatDistance(0))
	assert.Equal(t, "1.0 km", FormatDistance(1000))
	assert.Equal(t, "1.5 km", FormatDistance(1500))
	assert.Equal(t, "12.3 km", FormatDistance(12345))
}

func TestDistanceToSegment(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{1, 0}
	deg := EarthRadiusMeters * math.Pi / 180

	assert.InDelta(t, 0, DistanceToSegment(orb.Point{0.5, 0}, a, b), 1e-6)
	assert.InDelta(t, 0.001*deg, DistanceToSegment(orb.Point{0.5, 0.001}, a, b), 0.01)
	assert.InDelta(t, deg, DistanceToSegment(orb.Point{2, 0}, a, b), 1e-3)
	assert.InDelta(t, deg, DistanceToSegment(orb.Point{-1, 0}, a, b), 1e-3)
	assert.InDelta(t, 0, DistanceToSegment(a, a, a), 1e-9)
}

func TestHitTest(t *testing.T) {
	at := time.Now()
	center := orb.Point{6.9578, 50.9422}
	ring, err := CirclePolygon(center, 500, 16)
	require.NoError(t, err)

	start := orb.Point{6.90, 50.90}
	end := orb.Point{7.00, 50.90}
	ms := []measure.Measurement{
		measure.NewDistance("line", start, end, DistanceMeters(start, end), at),
		measure.NewCircle("circle", center, 500, ring, at),
	}

	id, ok := HitTest(ms, orb.Point{6.95, 50.9001}, 25)
	require.True(t, ok)
	assert.Equal(t, "line", id)

	id, ok = HitTest(ms, Destination(center, 120, 300), 25)
	require.True(t, ok)
	assert.Equal(t, "circle", id)

	_, ok = HitTest(ms, orb.Point{8, 52}, 25)
	assert.False(t, ok)

	// overlapping: the later measurement is on top
	ms = append(ms, measure.NewCircle("top", center, 800, ring, at))
	id, ok = HitTest(ms, center, 25)
	require.True(t, ok)
	assert.Equal(t, "top", id)
}
