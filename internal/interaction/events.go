package interaction

import (
	"time"

	"github.com/paulmach/orb"

	"mapmeasure/internal/measure"
)

// Event is an inbound input consumed by Machine.Dispatch.
//
// Gesture mapping: the distance tool reacts to Tap (the primary click); the
// circle tool places its center on PointerDown and commits on PointerUp.
// PointerDown/PointerMove/PointerUp/PointerLeave also drive long-press delete
// independently of the active tool.
type Event interface {
	isEvent()
}

// Select switches the active tool. Selecting the active tool keeps it armed
// but discards any in-progress gesture.
type Select struct {
	Tool measure.Tool
}

// Toggle behaves like the menu buttons: choosing the active tool again turns
// it off, any other tool is selected.
type Toggle struct {
	Tool measure.Tool
}

// Tap is a primary click at a resolved map coordinate.
type Tap struct {
	At orb.Point
}

// PointerDown is a press. FeatureID is set when the press landed on a
// rendered measurement feature.
type PointerDown struct {
	At        orb.Point
	FeatureID string
}

type PointerMove struct {
	At orb.Point
}

type PointerUp struct {
	At orb.Point
}

// PointerLeave fires when the pointer leaves the map surface.
type PointerLeave struct{}

// LongPressElapsed is fed back by the runtime when an armed timer fires.
type LongPressElapsed struct {
	Token uint64
}

// Geolocation carries one sample from the location collaborator. A nil Fix
// with a nil Err means "unknown".
type Geolocation struct {
	Fix *measure.Fix
	Err error
}

func (Select) isEvent()           {}
func (Toggle) isEvent()           {}
func (Tap) isEvent()              {}
func (PointerDown) isEvent()      {}
func (PointerMove) isEvent()      {}
func (PointerUp) isEvent()        {}
func (PointerLeave) isEvent()     {}
func (LongPressElapsed) isEvent() {}
func (Geolocation) isEvent()      {}

// Effect is an output of a transition, returned as data for the runtime to apply.
type Effect interface {
	isEffect()
}

// Commit asks the store to append a new measurement.
type Commit struct {
	Measurement measure.Measurement
}

// PendingChanged carries the new tool state for preview rendering.
type PendingChanged struct {
	Tool measure.ToolState
}

// ToolChanged reports a new active tool.
type ToolChanged struct {
	From measure.Tool
	To   measure.Tool
}

// Discarded reports a circle gesture released below the minimum radius.
type Discarded struct {
	RawMeters float64
}

// ArmLongPress asks the runtime to start a cancellable delay.
type ArmLongPress struct {
	Token     uint64
	FeatureID string
	After     time.Duration
}

// CancelLongPress asks the runtime to stop the timer with Token.
type CancelLongPress struct {
	Token uint64
}

// Remove asks the store to delete a measurement.
type Remove struct {
	ID string
}

// LocationChanged carries the updated current location value.
type LocationChanged struct {
	Location measure.Location
}

func (Commit) isEffect()          {}
func (PendingChanged) isEffect()  {}
func (ToolChanged) isEffect()     {}
func (Discarded) isEffect()       {}
func (ArmLongPress) isEffect()    {}
func (CancelLongPress) isEffect() {}
func (Remove) isEffect()          {}
func (LocationChanged) isEffect() {}
