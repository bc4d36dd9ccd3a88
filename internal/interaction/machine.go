package interaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"mapmeasure/internal/geo"
	"mapmeasure/internal/measure"
)

// State is the finite state derived from the active tool and pending gesture.
type State int

const (
	Idle State = iota
	DistanceArmed
	DistanceTracking
	CircleArmed
	CircleTracking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DistanceArmed:
		return "distance_armed"
	case DistanceTracking:
		return "distance_tracking"
	case CircleArmed:
		return "circle_armed"
	case CircleTracking:
		return "circle_tracking"
	}
	return "unknown"
}

const (
	DefaultMinCircleRadius = 50.0
	DefaultLongPress       = 500 * time.Millisecond
)

// Config holds the tunable constants of the machine.
type Config struct {
	Snapper         geo.Snapper
	MinCircleRadius float64
	CircleSteps     int
	LongPress       time.Duration
	NewID           func() string
	Now             func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Snapper:         geo.DefaultSnapper(),
		MinCircleRadius: DefaultMinCircleRadius,
		CircleSteps:     geo.DefaultCircleSteps,
		LongPress:       DefaultLongPress,
		NewID:           uuid.NewString,
		Now:             time.Now,
	}
}

type longPress struct {
	token     uint64
	featureID string
	armed     bool
}

// Machine is the single authoritative owner of ToolState. Dispatch is
// synchronous and total; it never performs side effects itself.
type Machine struct {
	cfg      Config
	tool     measure.ToolState
	press    longPress
	location measure.Location
}

// New fills unset fields of cfg with defaults.
func New(cfg Config) *Machine {
	def := DefaultConfig()
	if cfg.Snapper.Targets == nil && cfg.Snapper.Threshold == 0 {
		cfg.Snapper = def.Snapper
	}
	if cfg.MinCircleRadius <= 0 {
		cfg.MinCircleRadius = def.MinCircleRadius
	}
	if cfg.CircleSteps == 0 {
		cfg.CircleSteps = def.CircleSteps
	}
	if cfg.LongPress <= 0 {
		cfg.LongPress = def.LongPress
	}
	if cfg.NewID == nil {
		cfg.NewID = def.NewID
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Machine{
		cfg:      cfg,
		tool:     measure.ToolState{ActiveTool: measure.ToolNone},
		location: measure.Location{Status: measure.LocationWaiting},
	}
}

func (m *Machine) Config() Config { return m.cfg }

func (m *Machine) State() State {
	switch m.tool.ActiveTool {
	case measure.ToolDistance:
		if m.tool.Pending == nil {
			return DistanceArmed
		}
		return DistanceTracking
	case measure.ToolCircle:
		if m.tool.Pending == nil {
			return CircleArmed
		}
		return CircleTracking
	}
	return Idle
}

// ToolState returns a copy of the current tool state.
func (m *Machine) ToolState() measure.ToolState {
	return m.tool.Clone()
}

func (m *Machine) Location() measure.Location {
	return m.location
}

// Dispatch applies one event and returns the resulting effects in order.
func (m *Machine) Dispatch(ev Event) []Effect {
	switch e := ev.(type) {
	case Select:
		return m.selectTool(e.Tool)
	case Toggle:
		if e.Tool == m.tool.ActiveTool {
			return m.selectTool(measure.ToolNone)
		}
		return m.selectTool(e.Tool)
	case Tap:
		return m.tap(e.At)
	case PointerDown:
		return append(m.armLongPress(e.FeatureID), m.pressAt(e.At)...)
	case PointerMove:
		return append(m.cancelLongPress(), m.moveTo(e.At)...)
	case PointerUp:
		return append(m.cancelLongPress(), m.releaseAt(e.At)...)
	case PointerLeave:
		return m.cancelLongPress()
	case LongPressElapsed:
		return m.fireLongPress(e.Token)
	case Geolocation:
		return m.locate(e)
	}
	return nil
}

func (m *Machine) selectTool(t measure.Tool) []Effect {
	if !t.Valid() {
		return nil
	}
	from := m.tool.ActiveTool
	hadPending := m.tool.Pending != nil
	m.tool = measure.ToolState{ActiveTool: t}

	var effects []Effect
	if from != t {
		effects = append(effects, ToolChanged{From: from, To: t})
	}
	if from != t || hadPending {
		effects = append(effects, m.pendingChanged())
	}
	return effects
}

func (m *Machine) tap(at orb.Point) []Effect {
	if m.tool.ActiveTool != measure.ToolDistance || !geo.ValidPoint(at) {
		return nil
	}
	if m.tool.Pending == nil {
		m.tool.Pending = &measure.PendingGeometry{Kind: measure.KindDistance, Anchor: at}
		return []Effect{m.pendingChanged()}
	}

	anchor := m.tool.Pending.Anchor
	meters := geo.DistanceMeters(anchor, at)
	committed := measure.NewDistance(m.cfg.NewID(), anchor, at, meters, m.cfg.Now())
	m.tool.Pending = nil
	return []Effect{Commit{Measurement: committed}, m.pendingChanged()}
}

func (m *Machine) pressAt(at orb.Point) []Effect {
	if m.tool.ActiveTool != measure.ToolCircle || !geo.ValidPoint(at) {
		return nil
	}
	m.tool.Pending = &measure.PendingGeometry{Kind: measure.KindCircle, Anchor: at}
	return []Effect{m.pendingChanged()}
}

func (m *Machine) moveTo(at orb.Point) []Effect {
	p := m.tool.Pending
	if p == nil || !geo.ValidPoint(at) {
		return nil
	}
	var value float64
	switch m.State() {
	case DistanceTracking:
		value = geo.DistanceMeters(p.Anchor, at)
	case CircleTracking:
		value = m.cfg.Snapper.Snap(geo.DistanceMeters(p.Anchor, at))
	default:
		return nil
	}
	current := at
	p.Current = &current
	p.ComputedValue = &value
	return []Effect{m.pendingChanged()}
}

func (m *Machine) releaseAt(at orb.Point) []Effect {
	if m.State() != CircleTracking || !geo.ValidPoint(at) {
		return nil
	}
	center := m.tool.Pending.Anchor
	raw := geo.DistanceMeters(center, at)
	m.tool.Pending = nil

	if raw < m.cfg.MinCircleRadius {
		return []Effect{Discarded{RawMeters: raw}, m.pendingChanged()}
	}
	snapped := m.cfg.Snapper.Snap(raw)
	ring, err := geo.CirclePolygon(center, snapped, m.cfg.CircleSteps)
	if err != nil {
		return []Effect{Discarded{RawMeters: raw}, m.pendingChanged()}
	}
	committed := measure.NewCircle(m.cfg.NewID(), center, snapped, ring, m.cfg.Now())
	return []Effect{Commit{Measurement: committed}, m.pendingChanged()}
}

// armLongPress implicitly cancels any earlier timer; at most one is live.
func (m *Machine) armLongPress(featureID string) []Effect {
	effects := m.cancelLongPress()
	m.press.token++
	if featureID == "" {
		return effects
	}
	m.press.armed = true
	m.press.featureID = featureID
	return append(effects, ArmLongPress{Token: m.press.token, FeatureID: featureID, After: m.cfg.LongPress})
}

func (m *Machine) cancelLongPress() []Effect {
	if !m.press.armed {
		return nil
	}
	m.press.armed = false
	m.press.featureID = ""
	return []Effect{CancelLongPress{Token: m.press.token}}
}

func (m *Machine) fireLongPress(token uint64) []Effect {
	if !m.press.armed || token != m.press.token {
		return nil
	}
	id := m.press.featureID
	m.press.armed = false
	m.press.featureID = ""
	return []Effect{Remove{ID: id}}
}

func (m *Machine) locate(e Geolocation) []Effect {
	switch {
	case e.Fix != nil:
		fix := *e.Fix
		m.location = measure.Location{Fix: &fix, Status: measure.LocationAvailable}
	case e.Err != nil:
		m.location.Error = e.Err.Error()
		if m.location.Fix == nil {
			m.location.Status = measure.LocationUnavailable
		}
	default:
		m.location = measure.Location{Status: measure.LocationWaiting}
	}
	return []Effect{LocationChanged{Location: m.location}}
}

func (m *Machine) pendingChanged() PendingChanged {
	return PendingChanged{Tool: m.tool.Clone()}
}
