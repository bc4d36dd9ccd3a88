package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"mapmeasure/internal/geo"
	"mapmeasure/internal/measure"
)

// Source names understood by map clients.
const (
	SourceMeasurements      = "measurements"
	SourceMeasurementPoints = "measurement-points"
	SourcePendingGeometry   = "pending-geometry"
	SourcePendingPoints     = "pending-points"
)

// Point colors.
const (
	ColorDistance        = "#FF3B30"
	ColorCircle          = "#007AFF"
	ColorPendingDistance = "#FF9500"
	ColorPendingCircle   = "#34C759"
)

// Layers is the full render surface. Every field is always a collection,
// possibly empty, never nil.
type Layers struct {
	Measurements      *geojson.FeatureCollection `json:"measurements"`
	MeasurementPoints *geojson.FeatureCollection `json:"measurement-points"`
	PendingGeometry   *geojson.FeatureCollection `json:"pending-geometry"`
	PendingPoints     *geojson.FeatureCollection `json:"pending-points"`
}

type Options struct {
	CircleSteps int
}

// Project is a pure function of the committed list and the tool state. The
// output never depends on earlier outputs, so applying it to a map always
// replaces whatever was drawn before.
func Project(ms []measure.Measurement, tool measure.ToolState, opts Options) Layers {
	l := Layers{
		Measurements:      geojson.NewFeatureCollection(),
		MeasurementPoints: geojson.NewFeatureCollection(),
		PendingGeometry:   geojson.NewFeatureCollection(),
		PendingPoints:     geojson.NewFeatureCollection(),
	}
	for _, m := range ms {
		if m.Geometry == nil || m.Geometry.Geometry == nil {
			continue
		}
		f := geojson.NewFeature(m.Geometry.Geometry)
		for k, v := range m.Geometry.Properties {
			f.Properties[k] = v
		}
		f.Properties["id"] = m.ID
		f.Properties["type"] = string(m.Kind)
		f.Properties["value"] = m.Value
		f.Properties["label"] = geo.FormatDistance(m.Value)
		l.Measurements.Append(f)

		switch m.Kind {
		case measure.KindCircle:
			if m.Center != nil {
				l.MeasurementPoints.Append(point(*m.Center, m.ID, ColorCircle))
			}
		case measure.KindDistance:
			if a, b, ok := m.Endpoints(); ok {
				l.MeasurementPoints.Append(point(a, m.ID, ColorDistance))
				l.MeasurementPoints.Append(point(b, m.ID, ColorDistance))
			}
		}
	}

	p := tool.Pending
	if p == nil {
		return l
	}
	switch p.Kind {
	case measure.KindDistance:
		l.PendingPoints.Append(point(p.Anchor, "", ColorPendingDistance))
		if p.Current != nil {
			line := geojson.NewFeature(orb.LineString{p.Anchor, *p.Current})
			line.Properties["kind"] = string(p.Kind)
			if p.ComputedValue != nil {
				line.Properties["value"] = *p.ComputedValue
			}
			l.PendingGeometry.Append(line)
			l.PendingPoints.Append(point(*p.Current, "", ColorPendingDistance))
		}
	case measure.KindCircle:
		l.PendingPoints.Append(point(p.Anchor, "", ColorPendingCircle))
		if p.ComputedValue != nil && *p.ComputedValue > 0 {
			ring, err := geo.CirclePolygon(p.Anchor, *p.ComputedValue, opts.CircleSteps)
			if err == nil {
				poly := geojson.NewFeature(orb.Polygon{ring})
				poly.Properties["kind"] = string(p.Kind)
				poly.Properties["value"] = *p.ComputedValue
				l.PendingGeometry.Append(poly)
			}
		}
	}
	return l
}

func point(p orb.Point, id, color string) *geojson.Feature {
	f := geojson.NewFeature(p)
	if id != "" {
		f.Properties["id"] = id
	}
	f.Properties["color"] = color
	return f
}
