package render

import (
	"time"

	"mapmeasure/internal/geo"
	"mapmeasure/internal/measure"
)

// Status is the menu chrome that accompanies the map layers.
type Status struct {
	ActiveTool   measure.Tool      `json:"activeTool"`
	Prompt       string            `json:"prompt,omitempty"`
	PendingValue *float64          `json:"pendingValue"`
	PendingLabel string            `json:"pendingLabel,omitempty"`
	SnapHint     string            `json:"snapHint,omitempty"`
	Location     LocationStatus    `json:"location"`
	View         measure.ViewState `json:"view"`
	Measurements []ListItem        `json:"measurements"`
}

type LocationStatus struct {
	Status   measure.LocationStatus `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Lat      *float64               `json:"lat,omitempty"`
	Lng      *float64               `json:"lng,omitempty"`
	Accuracy *float64               `json:"accuracy,omitempty"`
}

// ListItem is one row in the measurement list sheet.
type ListItem struct {
	ID        string       `json:"id"`
	Kind      measure.Kind `json:"type"`
	Value     float64      `json:"value"`
	Label     string       `json:"label"`
	CreatedAt time.Time    `json:"createdAt"`
}

const noValue = "—"

// BuildStatus derives the menu state.
func BuildStatus(state measure.PersistedState, tool measure.ToolState, loc measure.Location, snap geo.Snapper) Status {
	s := Status{
		ActiveTool:   tool.ActiveTool,
		Location:     locationStatus(loc),
		View:         state.View,
		Measurements: make([]ListItem, 0, len(state.Measurements)),
	}
	if s.ActiveTool == "" {
		s.ActiveTool = measure.ToolNone
	}

	var pending *float64
	if tool.Pending != nil && tool.Pending.ComputedValue != nil {
		v := *tool.Pending.ComputedValue
		pending = &v
	}

	switch s.ActiveTool {
	case measure.ToolDistance:
		s.Prompt = "Tap start point"
		if pending != nil {
			s.Prompt = "Distance"
		}
	case measure.ToolCircle:
		s.Prompt = "Tap center, drag to size"
		if pending != nil {
			s.Prompt = "Radius"
		} else {
			s.SnapHint = snap.Hint()
		}
	}
	if s.ActiveTool != measure.ToolNone {
		s.PendingValue = pending
		s.PendingLabel = noValue
		if pending != nil {
			s.PendingLabel = geo.FormatDistance(*pending)
		}
	}

	for _, m := range state.Measurements {
		s.Measurements = append(s.Measurements, ListItem{
			ID:        m.ID,
			Kind:      m.Kind,
			Value:     m.Value,
			Label:     geo.FormatDistance(m.Value),
			CreatedAt: m.CreatedAt,
		})
	}
	return s
}

func locationStatus(loc measure.Location) LocationStatus {
	out := LocationStatus{Status: loc.Status, Message: loc.Error}
	if out.Status == "" {
		out.Status = measure.LocationWaiting
	}
	if loc.Fix != nil {
		lat, lng, acc := loc.Fix.Lat, loc.Fix.Lng, loc.Fix.Accuracy
		out.Lat, out.Lng, out.Accuracy = &lat, &lng, &acc
	}
	switch out.Status {
	case measure.LocationWaiting:
		if out.Message == "" {
			out.Message = "Waiting for location"
		}
	case measure.LocationUnavailable:
		if out.Message == "" {
			out.Message = measure.ErrGeolocationUnavailable.Error()
		}
	}
	return out
}
