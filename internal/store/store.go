package store

import (
	"sync"

	"github.com/google/uuid"

	"mapmeasure/internal/measure"
)

// Listener observes every state change. It runs after the store lock is
// released and receives a private copy.
type Listener func(measure.PersistedState)

// Store keeps the ordered measurement list and the view for one session.
type Store struct {
	mu        sync.RWMutex
	state     measure.PersistedState
	ids       map[string]struct{}
	listeners []Listener
	newID     func() string
}

type Option func(*Store)

// WithIDGenerator replaces uuid.NewString for collision re-ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New seeds the store. Invalid view values fall back to the defaults and
// duplicate ids in initial are renamed.
func New(initial measure.PersistedState, opts ...Option) *Store {
	s := &Store{
		ids:   make(map[string]struct{}),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.View = initial.View
	if !validView(initial.View) {
		s.state.View = measure.DefaultState().View
	}
	s.state.Measurements = make([]measure.Measurement, 0, len(initial.Measurements))
	for _, m := range initial.Measurements {
		s.appendLocked(m)
	}
	return s
}

// OnChange registers l for all later changes.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Add appends m and returns the stored record. An empty or already used id
// is replaced so ids stay unique.
func (s *Store) Add(m measure.Measurement) measure.Measurement {
	s.mu.Lock()
	stored := s.appendLocked(m)
	snap, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snap)
	return stored
}

// Remove deletes the measurement with id. A missing id is a no-op.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	idx := -1
	for i, m := range s.state.Measurements {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.state.Measurements = append(s.state.Measurements[:idx:idx], s.state.Measurements[idx+1:]...)
	delete(s.ids, id)
	snap, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snap)
	return true
}

// Clear drops every measurement and reports how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	n := len(s.state.Measurements)
	if n == 0 {
		s.mu.Unlock()
		return 0
	}
	s.state.Measurements = []measure.Measurement{}
	s.ids = make(map[string]struct{})
	snap, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snap)
	return n
}

// SetView records the last settled viewport. Unchanged or invalid views do
// not notify.
func (s *Store) SetView(v measure.ViewState) bool {
	if !validView(v) {
		return false
	}
	s.mu.Lock()
	if s.state.View == v {
		s.mu.Unlock()
		return false
	}
	s.state.View = v
	snap, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snap)
	return true
}

func (s *Store) Snapshot() measure.PersistedState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) Measurements() []measure.Measurement {
	return s.Snapshot().Measurements
}

func (s *Store) View() measure.ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.View
}

func (s *Store) Get(id string) (measure.Measurement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.state.Measurements {
		if m.ID == id {
			return m, true
		}
	}
	return measure.Measurement{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Measurements)
}

func (s *Store) appendLocked(m measure.Measurement) measure.Measurement {
	if s.taken(m.ID) {
		id := s.newID()
		for s.taken(id) {
			id = uuid.NewString()
		}
		m.ID = id
	}
	s.ids[m.ID] = struct{}{}
	s.state.Measurements = append(s.state.Measurements, m)
	return m
}

func (s *Store) taken(id string) bool {
	_, ok := s.ids[id]
	return ok || id == ""
}

func (s *Store) snapshotLocked() (measure.PersistedState, []Listener) {
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	return s.state.Clone(), listeners
}

func notify(listeners []Listener, snap measure.PersistedState) {
	for _, l := range listeners {
		l(snap.Clone())
	}
}

func validView(v measure.ViewState) bool {
	return measure.PersistedState{View: v}.Validate() == nil
}
