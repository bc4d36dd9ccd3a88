package measure

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Kind identifies what a committed measurement represents.
type Kind string

const (
	KindDistance Kind = "distance"
	KindCircle   Kind = "circle"
)

func (k Kind) Valid() bool {
	return k == KindDistance || k == KindCircle
}

// Tool is the measurement tool currently selected in the menu.
type Tool string

const (
	ToolNone     Tool = "none"
	ToolDistance Tool = "distance"
	ToolCircle   Tool = "circle"
)

func (t Tool) Valid() bool {
	return t == ToolNone || t == ToolDistance || t == ToolCircle
}

// Kind returns the measurement kind produced by the tool.
func (t Tool) Kind() (Kind, bool) {
	switch t {
	case ToolDistance:
		return KindDistance, true
	case ToolCircle:
		return KindCircle, true
	}
	return "", false
}

// Measurement is an immutable committed record. Geometry is a cached GeoJSON
// feature derived from Kind, Value, Center and the distance endpoints.
type Measurement struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"type"`
	Geometry  *geojson.Feature `json:"geometry"`
	Value     float64          `json:"value"`
	Center    *orb.Point       `json:"center,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Endpoints returns the two points of a distance measurement.
func (m Measurement) Endpoints() (orb.Point, orb.Point, bool) {
	if m.Kind != KindDistance || m.Geometry == nil {
		return orb.Point{}, orb.Point{}, false
	}
	line, ok := m.Geometry.Geometry.(orb.LineString)
	if !ok || len(line) != 2 {
		return orb.Point{}, orb.Point{}, false
	}
	return line[0], line[1], true
}

// Ring returns the outer ring of a circle measurement.
func (m Measurement) Ring() (orb.Ring, bool) {
	if m.Kind != KindCircle || m.Geometry == nil {
		return nil, false
	}
	poly, ok := m.Geometry.Geometry.(orb.Polygon)
	if !ok || len(poly) == 0 {
		return nil, false
	}
	return poly[0], true
}

// NewDistance builds a distance measurement between a and b.
func NewDistance(id string, a, b orb.Point, meters float64, at time.Time) Measurement {
	return Measurement{
		ID:        id,
		Kind:      KindDistance,
		Geometry:  geojson.NewFeature(orb.LineString{a, b}),
		Value:     meters,
		CreatedAt: at,
	}
}

// NewCircle builds a circle measurement from an already computed ring.
func NewCircle(id string, center orb.Point, radius float64, ring orb.Ring, at time.Time) Measurement {
	c := center
	return Measurement{
		ID:        id,
		Kind:      KindCircle,
		Geometry:  geojson.NewFeature(orb.Polygon{ring}),
		Value:     radius,
		Center:    &c,
		CreatedAt: at,
	}
}

// ViewState is the last settled map viewport.
type ViewState struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
}

// PersistedState is the unit round-tripped to storage.
type PersistedState struct {
	View         ViewState     `json:"view"`
	Measurements []Measurement `json:"measurements"`
}

// Clone returns a copy whose measurement slice can be mutated independently.
func (s PersistedState) Clone() PersistedState {
	out := PersistedState{View: s.View}
	out.Measurements = make([]Measurement, len(s.Measurements))
	copy(out.Measurements, s.Measurements)
	return out
}

var (
	// DefaultCenter is Cologne, Germany.
	DefaultCenter = orb.Point{6.9578, 50.9422}
	DefaultZoom   = 13.0
)

// DefaultState is used whenever stored state is missing or unreadable.
func DefaultState() PersistedState {
	return PersistedState{
		View:         ViewState{Center: DefaultCenter, Zoom: DefaultZoom},
		Measurements: []Measurement{},
	}
}

// PendingGeometry is the live preview of an in-progress gesture.
type PendingGeometry struct {
	Kind          Kind       `json:"kind"`
	Anchor        orb.Point  `json:"anchor"`
	Current       *orb.Point `json:"current"`
	ComputedValue *float64   `json:"computedValue"`
}

// ToolState is transient and never persisted.
type ToolState struct {
	ActiveTool Tool             `json:"activeTool"`
	Pending    *PendingGeometry `json:"pending"`
}

// Clone deep-copies the pending geometry.
func (t ToolState) Clone() ToolState {
	out := ToolState{ActiveTool: t.ActiveTool}
	if t.Pending != nil {
		p := *t.Pending
		if t.Pending.Current != nil {
			c := *t.Pending.Current
			p.Current = &c
		}
		if t.Pending.ComputedValue != nil {
			v := *t.Pending.ComputedValue
			p.ComputedValue = &v
		}
		out.Pending = &p
	}
	return out
}

// Fix is a single geolocation sample.
type Fix struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

// LocationStatus drives the location indicator.
type LocationStatus string

const (
	LocationWaiting     LocationStatus = "waiting"
	LocationAvailable   LocationStatus = "available"
	LocationUnavailable LocationStatus = "unavailable"
)

// Location is the read-only "current location" value fed by geolocation samples.
type Location struct {
	Fix    *Fix           `json:"fix"`
	Error  string         `json:"error,omitempty"`
	Status LocationStatus `json:"status"`
}
