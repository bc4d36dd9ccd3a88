package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapmeasure/internal/logging"
	"mapmeasure/internal/measure"
	"mapmeasure/internal/metrics"
)

func line(id string) measure.Measurement {
	return measure.NewDistance(id, orb.Point{6.95, 50.94}, orb.Point{6.96, 50.94}, 702, time.Unix(0, 0).UTC())
}

func ids(ms []measure.Measurement) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestAddPreservesInsertionOrder(t *testing.T) {
	s := New(measure.DefaultState())
	s.Add(line("a"))
	s.Add(line("b"))
	s.Add(line("c"))
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Measurements()))
	assert.Equal(t, 3, s.Len())
}

func TestAddReplacesMissingOrDuplicateID(t *testing.T) {
	n := 0
	s := New(measure.DefaultState(), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen%d", n)
	}))

	first := s.Add(line("a"))
	dup := s.Add(line("a"))
	blank := s.Add(line(""))

	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "gen1", dup.ID)
	assert.Equal(t, "gen2", blank.ID)
	assert.Equal(t, []string{"a", "gen1", "gen2"}, ids(s.Measurements()))
}

func TestNewRenamesDuplicateSeedIDs(t *testing.T) {
	initial := measure.DefaultState()
	initial.Measurements = []measure.Measurement{line("x"), line("x")}
	s := New(initial)
	got := ids(s.Measurements())
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0])
	assert.NotEqual(t, "x", got[1])
}

func TestRemove(t *testing.T) {
	s := New(measure.DefaultState())
	s.Add(line("a"))
	s.Add(line("b"))
	s.Add(line("c"))

	assert.True(t, s.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, ids(s.Measurements()))

	assert.False(t, s.Remove("missing"))
	assert.Equal(t, []string{"a", "c"}, ids(s.Measurements()))

	// freed ids can be reused
	assert.Equal(t, "b", s.Add(line("b")).ID)
}

func TestClear(t *testing.T) {
	var calls int
	s := New(measure.DefaultState())
	s.Add(line("a"))
	s.Add(line("b"))
	s.OnChange(func(measure.PersistedState) { calls++ })

	assert.Equal(t, 2, s.Clear())
	assert.Empty(t, s.Measurements())
	assert.Equal(t, 0, s.Clear())
	assert.Equal(t, 1, calls)
}

func TestSetView(t *testing.T) {
	var seen []measure.ViewState
	s := New(measure.DefaultState())
	s.OnChange(func(st measure.PersistedState) { seen = append(seen, st.View) })

	v := measure.ViewState{Center: orb.Point{13.4, 52.5}, Zoom: 11}
	assert.True(t, s.SetView(v))
	assert.False(t, s.SetView(v))
	assert.False(t, s.SetView(measure.ViewState{Center: orb.Point{0, 0}, Zoom: 99}))
	assert.Equal(t, v, s.View())
	assert.Equal(t, []measure.ViewState{v}, seen)
}

func TestNewFallsBackOnInvalidView(t *testing.T) {
	s := New(measure.PersistedState{View: measure.ViewState{Center: orb.Point{0, 200}, Zoom: 3}})
	assert.Equal(t, measure.DefaultState().View, s.View())
	assert.NotNil(t, s.Measurements())
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := New(measure.DefaultState())
	s.Add(line("a"))
	snap := s.Snapshot()
	snap.Measurements[0].ID = "mutated"
	snap.Measurements = append(snap.Measurements, line("z"))

	assert.Equal(t, []string{"a"}, ids(s.Measurements()))
}

func TestListenersReceiveEveryChange(t *testing.T) {
	var got [][]string
	s := New(measure.DefaultState())
	s.OnChange(func(st measure.PersistedState) { got = append(got, ids(st.Measurements)) })

	s.Add(line("a"))
	s.Add(line("b"))
	s.Remove("a")
	s.Remove("a")

	assert.Equal(t, [][]string{{"a"}, {"a", "b"}, {"b"}}, got)
}

func TestGet(t *testing.T) {
	s := New(measure.DefaultState())
	s.Add(line("a"))
	m, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 702.0, m.Value)
	_, ok = s.Get("nope")
	assert.False(t, ok)
}

type recordingPersistence struct {
	mu    sync.Mutex
	saved []measure.PersistedState
	err   error
	gate  chan struct{}
}

func (r *recordingPersistence) Save(_ context.Context, s measure.PersistedState) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, s)
	return r.err
}

func (r *recordingPersistence) snapshot() []measure.PersistedState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]measure.PersistedState(nil), r.saved...)
}

func TestSaverFlushesLatestOnClose(t *testing.T) {
	rec := &recordingPersistence{gate: make(chan struct{})}
	saver := NewSaver(rec, SaverOptions{Backend: "test", Logger: logging.Discard()})

	s := New(measure.DefaultState())
	s.OnChange(saver.Listener())
	for i := 0; i < 20; i++ {
		s.Add(line(fmt.Sprintf("m%d", i)))
	}
	close(rec.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, saver.Close(ctx))

	saved := rec.snapshot()
	require.NotEmpty(t, saved)
	assert.Less(t, len(saved), 20)
	assert.Len(t, saved[len(saved)-1].Measurements, 20)
}

func TestSaverSwallowsFailures(t *testing.T) {
	rec := &recordingPersistence{err: errors.New("disk full")}
	before := testutil.ToFloat64(metrics.PersistenceSaveFailures.WithLabelValues("failing"))
	saver := NewSaver(rec, SaverOptions{Backend: "failing", Logger: logging.Discard()})

	s := New(measure.DefaultState())
	s.OnChange(saver.Listener())
	added := s.Add(line("a"))
	require.NoError(t, saver.Close(context.Background()))

	assert.Equal(t, "a", added.ID)
	assert.Equal(t, []string{"a"}, ids(s.Measurements()))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PersistenceSaveFailures.WithLabelValues("failing")))
}

func TestSaverCloseIsIdempotent(t *testing.T) {
	saver := NewSaver(&recordingPersistence{}, SaverOptions{Logger: logging.Discard()})
	require.NoError(t, saver.Close(context.Background()))
	require.NoError(t, saver.Close(context.Background()))
}
