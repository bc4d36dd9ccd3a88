package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"mapmeasure/internal/interaction"
	"mapmeasure/internal/measure"
	"mapmeasure/internal/render"
)

// Outbound message types.
const (
	TypeLayers = "layers"
	TypeStatus = "status"
	TypeError  = "error"
)

// Inbound is one client message on the session socket.
type Inbound struct {
	Type      string             `json:"type"`
	Tool      measure.Tool       `json:"tool,omitempty"`
	At        *orb.Point         `json:"at,omitempty"`
	FeatureID string             `json:"featureId,omitempty"`
	Sample    *measure.Fix       `json:"sample,omitempty"`
	Error     string             `json:"error,omitempty"`
	View      *measure.ViewState `json:"view,omitempty"`
	ID        string             `json:"id,omitempty"`
}

// Outbound is pushed to every subscriber of a session.
type Outbound struct {
	Type    string         `json:"type"`
	Session string         `json:"session,omitempty"`
	Layers  *render.Layers `json:"layers,omitempty"`
	Status  *render.Status `json:"status,omitempty"`
	Error   string         `json:"error,omitempty"`
}

var errMissingPoint = errors.New("missing at")

// Event translates a pointer, tool or geolocation message into a machine
// event. ok is false for message types handled outside the machine.
func (in Inbound) Event() (ev interaction.Event, ok bool, err error) {
	at := func() (orb.Point, error) {
		if in.At == nil {
			return orb.Point{}, fmt.Errorf("%s: %w", in.Type, errMissingPoint)
		}
		return *in.At, nil
	}
	switch in.Type {
	case "select":
		return interaction.Select{Tool: in.Tool}, true, nil
	case "toggle":
		return interaction.Toggle{Tool: in.Tool}, true, nil
	case "click":
		p, err := at()
		return interaction.Tap{At: p}, err == nil, err
	case "press", "pointer_down":
		p, err := at()
		return interaction.PointerDown{At: p, FeatureID: in.FeatureID}, err == nil, err
	case "move":
		p, err := at()
		return interaction.PointerMove{At: p}, err == nil, err
	case "release", "pointer_up":
		if in.At == nil {
			return nil, false, nil
		}
		return interaction.PointerUp{At: *in.At}, true, nil
	case "pointer_leave":
		return interaction.PointerLeave{}, true, nil
	case "geolocation":
		g := interaction.Geolocation{Fix: in.Sample}
		if in.Error != "" {
			g.Err = fmt.Errorf("%w: %s", measure.ErrGeolocationUnavailable, in.Error)
		}
		return g, true, nil
	}
	return nil, false, nil
}

// Apply runs an inbound message against s.
func Apply(ctx context.Context, s *Session, in Inbound) error {
	ev, ok, err := in.Event()
	if err != nil {
		return err
	}
	if ok {
		return s.Dispatch(ctx, ev)
	}
	switch in.Type {
	case "release", "pointer_up":
		return s.PointerUp(ctx)
	case "view":
		if in.View == nil {
			return fmt.Errorf("view: %w", measure.ErrInvalidArgument)
		}
		_, err := s.SetView(ctx, *in.View)
		return err
	case "remove":
		_, err := s.Remove(ctx, in.ID)
		return err
	case "clear":
		_, err := s.Clear(ctx)
		return err
	}
	return fmt.Errorf("unknown message type %q", in.Type)
}
