package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"mapmeasure/internal/geo"
	"mapmeasure/internal/interaction"
	"mapmeasure/internal/measure"
	"mapmeasure/internal/metrics"
	"mapmeasure/internal/render"
	"mapmeasure/internal/store"
)

// ErrClosed is returned for work submitted after Close.
var ErrClosed = errors.New("session closed")

// Config is shared by every session of a Manager.
type Config struct {
	Machine         interaction.Config
	ToleranceMeters float64
	Logger          *slog.Logger
}

// View is a consistent read of everything a client renders.
type View struct {
	ID       string                 `json:"id"`
	State    measure.PersistedState `json:"state"`
	Tool     measure.ToolState      `json:"tool"`
	Location measure.Location       `json:"location"`
	Status   render.Status          `json:"status"`
	Layers   render.Layers          `json:"layers"`
}

// Session owns one map's machine and store. Every input runs as a job on a
// single goroutine, so the machine and the index are never shared.
type Session struct {
	id      string
	cfg     Config
	logger  *slog.Logger
	machine *interaction.Machine
	store   *store.Store
	index   geo.HitIndex
	publish func(Outbound)

	jobs   chan func()
	quit   chan struct{}
	done   chan struct{}
	timers map[uint64]*time.Timer

	lastPointer *orb.Point
}

func newSession(id string, cfg Config, st *store.Store, idx geo.HitIndex, publish func(Outbound)) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if publish == nil {
		publish = func(Outbound) {}
	}
	if idx == nil {
		idx = geo.NewMemoryIndex()
	}
	s := &Session{
		id:      id,
		cfg:     cfg,
		logger:  logger.With("session", id),
		machine: interaction.New(cfg.Machine),
		store:   st,
		index:   idx,
		publish: publish,
		jobs:    make(chan func()),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		timers:  make(map[uint64]*time.Timer),
	}
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case job := <-s.jobs:
			job()
		case <-s.quit:
			for token, t := range s.timers {
				t.Stop()
				delete(s.timers, token)
			}
			return
		}
	}
}

// do runs fn on the session goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.jobs <- job:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting. Used by timer callbacks.
func (s *Session) post(fn func()) {
	select {
	case s.jobs <- fn:
	case <-s.quit:
	}
}

// Dispatch feeds one interaction event through the machine. A PointerDown
// without a feature id is hit-tested against the committed measurements.
func (s *Session) Dispatch(ctx context.Context, ev interaction.Event) error {
	return s.do(ctx, func() { s.handle(ctx, ev) })
}

// PointerUp releases at the last known pointer position.
func (s *Session) PointerUp(ctx context.Context) error {
	return s.do(ctx, func() {
		if s.lastPointer == nil {
			s.handle(ctx, interaction.PointerLeave{})
			return
		}
		s.handle(ctx, interaction.PointerUp{At: *s.lastPointer})
	})
}

// Remove deletes a measurement from the list sheet.
func (s *Session) Remove(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.do(ctx, func() {
		removed = s.removeMeasurement(ctx, id, "delete")
		if removed {
			s.broadcast(true)
		}
	})
	return removed, err
}

// Clear drops every measurement.
func (s *Session) Clear(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, func() {
		n = s.store.Clear()
		if n == 0 {
			return
		}
		metrics.MeasurementsRemoved.WithLabelValues("clear").Add(float64(n))
		if err := s.index.Reset(ctx, nil); err != nil {
			s.logger.Warn("hit index reset failed", "error", err)
		}
		s.broadcast(true)
	})
	return n, err
}

// SetView records the settled viewport.
func (s *Session) SetView(ctx context.Context, v measure.ViewState) (bool, error) {
	var changed bool
	err := s.do(ctx, func() {
		changed = s.store.SetView(v)
		if changed {
			s.broadcast(false)
		}
	})
	return changed, err
}

// Snapshot reads state, tool and derived projections in one step.
func (s *Session) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := s.do(ctx, func() { v = s.view() })
	return v, err
}

// Close stops the loop and every pending timer.
func (s *Session) Close(ctx context.Context) error {
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) handle(ctx context.Context, ev interaction.Event) {
	switch e := ev.(type) {
	case interaction.PointerDown:
		s.track(e.At)
		if e.FeatureID == "" {
			e.FeatureID = s.hitTest(ctx, e.At)
		}
		ev = e
	case interaction.PointerMove:
		s.track(e.At)
	case interaction.PointerUp:
		s.track(e.At)
	case interaction.Tap:
		s.track(e.At)
	}
	effects := s.machine.Dispatch(ev)
	if len(effects) > 0 {
		s.apply(ctx, effects)
	}
}

func (s *Session) track(at orb.Point) {
	p := at
	s.lastPointer = &p
}

func (s *Session) hitTest(ctx context.Context, at orb.Point) string {
	ms := s.store.Measurements()
	if len(ms) == 0 {
		return ""
	}
	id, ok, err := geo.Locate(ctx, s.index, ms, at, s.cfg.ToleranceMeters)
	if err != nil {
		s.logger.Warn("hit index lookup failed, scanning", "error", err)
		id, ok = geo.HitTest(ms, at, s.cfg.ToleranceMeters)
	}
	if !ok {
		return ""
	}
	return id
}

func (s *Session) apply(ctx context.Context, effects []interaction.Effect) {
	layers := false
	status := false
	for _, eff := range effects {
		switch e := eff.(type) {
		case interaction.Commit:
			stored := s.store.Add(e.Measurement)
			if err := s.index.Put(ctx, stored); err != nil {
				s.logger.Warn("hit index update failed", "id", stored.ID, "error", err)
			}
			metrics.MeasurementsCommitted.WithLabelValues(string(stored.Kind)).Inc()
			s.logger.Debug("measurement committed", "id", stored.ID, "type", stored.Kind, "value", stored.Value)
			layers, status = true, true
		case interaction.Remove:
			if s.removeMeasurement(ctx, e.ID, "long_press") {
				layers, status = true, true
			}
		case interaction.Discarded:
			metrics.CirclesDiscarded.Inc()
			s.logger.Debug("circle discarded", "raw_meters", e.RawMeters)
		case interaction.PendingChanged:
			layers, status = true, true
		case interaction.ToolChanged:
			status = true
		case interaction.LocationChanged:
			status = true
		case interaction.ArmLongPress:
			s.armTimer(e)
		case interaction.CancelLongPress:
			s.stopTimer(e.Token)
		}
	}
	if layers || status {
		s.broadcast(layers)
	}
}

func (s *Session) removeMeasurement(ctx context.Context, id, reason string) bool {
	if !s.store.Remove(id) {
		return false
	}
	if err := s.index.Delete(ctx, id); err != nil {
		s.logger.Warn("hit index delete failed", "id", id, "error", err)
	}
	metrics.MeasurementsRemoved.WithLabelValues(reason).Inc()
	return true
}

func (s *Session) armTimer(e interaction.ArmLongPress) {
	token := e.Token
	s.timers[token] = time.AfterFunc(e.After, func() {
		s.post(func() {
			delete(s.timers, token)
			s.handle(context.Background(), interaction.LongPressElapsed{Token: token})
		})
	})
}

func (s *Session) stopTimer(token uint64) {
	if t, ok := s.timers[token]; ok {
		t.Stop()
		delete(s.timers, token)
	}
}

func (s *Session) view() View {
	state := s.store.Snapshot()
	tool := s.machine.ToolState()
	loc := s.machine.Location()
	mc := s.machine.Config()
	return View{
		ID:       s.id,
		State:    state,
		Tool:     tool,
		Location: loc,
		Status:   render.BuildStatus(state, tool, loc, mc.Snapper),
		Layers:   render.Project(state.Measurements, tool, render.Options{CircleSteps: mc.CircleSteps}),
	}
}

// broadcast pushes status, and layers when they changed, to subscribers.
func (s *Session) broadcast(layers bool) {
	v := s.view()
	if layers {
		s.publish(Outbound{Type: TypeLayers, Session: s.id, Layers: &v.Layers})
	}
	s.publish(Outbound{Type: TypeStatus, Session: s.id, Status: &v.Status})
}
