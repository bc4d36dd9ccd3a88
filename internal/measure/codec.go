package measure

import (
	"encoding/json"
	"fmt"
	"math"
)

// Encode serializes state in the stored JSON layout.
func Encode(s PersistedState) ([]byte, error) {
	if s.Measurements == nil {
		s.Measurements = []Measurement{}
	}
	return json.Marshal(s)
}

// Decode parses and validates stored state. Any malformed content is reported
// as ErrPersistence so callers can fall back to DefaultState.
func Decode(data []byte) (PersistedState, error) {
	var s PersistedState
	if err := json.Unmarshal(data, &s); err != nil {
		return PersistedState{}, fmt.Errorf("%w: decode state: %v", ErrPersistence, err)
	}
	if s.Measurements == nil {
		s.Measurements = []Measurement{}
	}
	if err := s.Validate(); err != nil {
		return PersistedState{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s, nil
}

// Validate checks the structural invariants of a persisted state.
func (s PersistedState) Validate() error {
	if !finite(s.View.Center[0]) || !finite(s.View.Center[1]) || math.Abs(s.View.Center[1]) > 90 {
		return fmt.Errorf("view center %v out of range", s.View.Center)
	}
	if !finite(s.View.Zoom) || s.View.Zoom < 0 || s.View.Zoom > 24 {
		return fmt.Errorf("view zoom %v out of range", s.View.Zoom)
	}
	// Empty and duplicate ids are not rejected here; the store re-ids them
	// on load so one bad record does not cost the whole history.
	for _, m := range s.Measurements {
		if !finite(m.Value) || m.Value < 0 {
			return fmt.Errorf("measurement %q has invalid value %v", m.ID, m.Value)
		}
		switch m.Kind {
		case KindDistance:
			if _, _, ok := m.Endpoints(); !ok {
				return fmt.Errorf("distance %q has no line geometry", m.ID)
			}
		case KindCircle:
			if m.Center == nil {
				return fmt.Errorf("circle %q has no center", m.ID)
			}
			if _, ok := m.Ring(); !ok {
				return fmt.Errorf("circle %q has no polygon geometry", m.ID)
			}
		default:
			return fmt.Errorf("measurement %q has unknown type %q", m.ID, m.Kind)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
