package render

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapmeasure/internal/geo"
	"mapmeasure/internal/measure"
)

var (
	start  = orb.Point{6.95, 50.94}
	end    = orb.Point{7.00, 50.92}
	center = orb.Point{6.97, 50.93}
)

func committed(t *testing.T) []measure.Measurement {
	t.Helper()
	ring, err := geo.CirclePolygon(center, 500, 16)
	require.NoError(t, err)
	at := time.Unix(1700000000, 0).UTC()
	return []measure.Measurement{
		measure.NewDistance("d1", start, end, geo.DistanceMeters(start, end), at),
		measure.NewCircle("c1", center, 500, ring, at),
	}
}

func ptr(f float64) *float64 { return &f }

func TestProjectEmpty(t *testing.T) {
	l := Project(nil, measure.ToolState{ActiveTool: measure.ToolNone}, Options{})
	assert.Empty(t, l.Measurements.Features)
	assert.Empty(t, l.MeasurementPoints.Features)
	assert.Empty(t, l.PendingGeometry.Features)
	assert.Empty(t, l.PendingPoints.Features)

	raw, err := json.Marshal(l)
	require.NoError(t, err)
	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, name := range []string{SourceMeasurements, SourceMeasurementPoints, SourcePendingGeometry, SourcePendingPoints} {
		require.Contains(t, decoded, name)
		assert.Equal(t, "FeatureCollection", decoded[name]["type"])
	}
}

func TestProjectCommitted(t *testing.T) {
	ms := committed(t)
	l := Project(ms, measure.ToolState{ActiveTool: measure.ToolNone}, Options{})

	require.Len(t, l.Measurements.Features, 2)
	line := l.Measurements.Features[0]
	assert.Equal(t, "d1", line.Properties["id"])
	assert.Equal(t, "distance", line.Properties["type"])
	assert.Equal(t, orb.LineString{start, end}, line.Geometry)
	circle := l.Measurements.Features[1]
	assert.Equal(t, "circle", circle.Properties["type"])
	assert.Equal(t, "500 m", circle.Properties["label"])
	assert.IsType(t, orb.Polygon{}, circle.Geometry)

	require.Len(t, l.MeasurementPoints.Features, 3)
	assert.Equal(t, start, l.MeasurementPoints.Features[0].Geometry)
	assert.Equal(t, end, l.MeasurementPoints.Features[1].Geometry)
	assert.Equal(t, ColorDistance, l.MeasurementPoints.Features[0].Properties["color"])
	assert.Equal(t, "d1", l.MeasurementPoints.Features[1].Properties["id"])
	assert.Equal(t, center, l.MeasurementPoints.Features[2].Geometry)
	assert.Equal(t, ColorCircle, l.MeasurementPoints.Features[2].Properties["color"])

	assert.Empty(t, l.PendingGeometry.Features)
	assert.Empty(t, l.PendingPoints.Features)
}

func TestProjectDoesNotMutateCachedGeometry(t *testing.T) {
	ms := committed(t)
	Project(ms, measure.ToolState{}, Options{})
	assert.NotContains(t, ms[0].Geometry.Properties, "id")
}

func TestProjectPendingDistance(t *testing.T) {
	tool := measure.ToolState{
		ActiveTool: measure.ToolDistance,
		Pending:    &measure.PendingGeometry{Kind: measure.KindDistance, Anchor: start},
	}
	l := Project(nil, tool, Options{})
	assert.Empty(t, l.PendingGeometry.Features)
	require.Len(t, l.PendingPoints.Features, 1)
	assert.Equal(t, ColorPendingDistance, l.PendingPoints.Features[0].Properties["color"])

	cur := end
	tool.Pending.Current = &cur
	tool.Pending.ComputedValue = ptr(geo.DistanceMeters(start, end))
	l = Project(nil, tool, Options{})
	require.Len(t, l.PendingGeometry.Features, 1)
	assert.Equal(t, orb.LineString{start, end}, l.PendingGeometry.Features[0].Geometry)
	assert.Len(t, l.PendingPoints.Features, 2)
}

func TestProjectPendingCircle(t *testing.T) {
	tool := measure.ToolState{
		ActiveTool: measure.ToolCircle,
		Pending:    &measure.PendingGeometry{Kind: measure.KindCircle, Anchor: center},
	}
	l := Project(nil, tool, Options{})
	assert.Empty(t, l.PendingGeometry.Features)
	require.Len(t, l.PendingPoints.Features, 1)
	assert.Equal(t, ColorPendingCircle, l.PendingPoints.Features[0].Properties["color"])

	tool.Pending.ComputedValue = ptr(1000)
	l = Project(nil, tool, Options{CircleSteps: 8})
	require.Len(t, l.PendingGeometry.Features, 1)
	poly, ok := l.PendingGeometry.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, poly[0], 9)
}

func TestProjectIsIdempotent(t *testing.T) {
	ms := committed(t)
	tool := measure.ToolState{ActiveTool: measure.ToolCircle}
	a, err := json.Marshal(Project(ms, tool, Options{}))
	require.NoError(t, err)
	b, err := json.Marshal(Project(ms, tool, Options{}))
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestBuildStatusPrompts(t *testing.T) {
	snap := geo.DefaultSnapper()
	loc := measure.Location{Status: measure.LocationWaiting}
	state := measure.DefaultState()

	s := BuildStatus(state, measure.ToolState{ActiveTool: measure.ToolNone}, loc, snap)
	assert.Equal(t, measure.ToolNone, s.ActiveTool)
	assert.Empty(t, s.Prompt)
	assert.Empty(t, s.PendingLabel)

	s = BuildStatus(state, measure.ToolState{ActiveTool: measure.ToolDistance}, loc, snap)
	assert.Equal(t, "Tap start point", s.Prompt)
	assert.Equal(t, "—", s.PendingLabel)
	assert.Nil(t, s.PendingValue)

	s = BuildStatus(state, measure.ToolState{
		ActiveTool: measure.ToolDistance,
		Pending:    &measure.PendingGeometry{Kind: measure.KindDistance, Anchor: start, ComputedValue: ptr(1500)},
	}, loc, snap)
	assert.Equal(t, "Distance", s.Prompt)
	assert.Equal(t, "1.5 km", s.PendingLabel)
	require.NotNil(t, s.PendingValue)
	assert.Equal(t, 1500.0, *s.PendingValue)

	s = BuildStatus(state, measure.ToolState{ActiveTool: measure.ToolCircle}, loc, snap)
	assert.Equal(t, "Tap center, drag to size", s.Prompt)
	assert.Equal(t, "Snaps near 500 m, 1.0 km, 2.0 km, 5.0 km", s.SnapHint)

	s = BuildStatus(state, measure.ToolState{
		ActiveTool: measure.ToolCircle,
		Pending:    &measure.PendingGeometry{Kind: measure.KindCircle, Anchor: center, ComputedValue: ptr(530)},
	}, loc, snap)
	assert.Equal(t, "Radius", s.Prompt)
	assert.Equal(t, "530 m", s.PendingLabel)
	assert.Empty(t, s.SnapHint)
}

func TestBuildStatusListAndLocation(t *testing.T) {
	state := measure.DefaultState()
	state.Measurements = committed(t)

	s := BuildStatus(state, measure.ToolState{}, measure.Location{
		Status: measure.LocationAvailable,
		Fix:    &measure.Fix{Lat: 50.9, Lng: 6.9, Accuracy: 8},
	}, geo.DefaultSnapper())
	require.Len(t, s.Measurements, 2)
	assert.Equal(t, "d1", s.Measurements[0].ID)
	assert.Equal(t, measure.KindCircle, s.Measurements[1].Kind)
	assert.Equal(t, "500 m", s.Measurements[1].Label)
	assert.Equal(t, measure.LocationAvailable, s.Location.Status)
	require.NotNil(t, s.Location.Accuracy)
	assert.Equal(t, 8.0, *s.Location.Accuracy)

	s = BuildStatus(state, measure.ToolState{}, measure.Location{Status: measure.LocationUnavailable, Error: "denied"}, geo.DefaultSnapper())
	assert.Equal(t, "denied", s.Location.Message)
	assert.Nil(t, s.Location.Lat)

	s = BuildStatus(state, measure.ToolState{}, measure.Location{}, geo.DefaultSnapper())
	assert.Equal(t, measure.LocationWaiting, s.Location.Status)
}
