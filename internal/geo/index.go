package geo

import (
	"context"
	"math"
	"sync"

	"github.com/paulmach/orb"

	"mapmeasure/internal/measure"
)

// HitIndex narrows hit-test candidates to measurements whose anchor lies near
// a point. Anchors are circle centers and distance midpoints; Extent is the
// farthest any rendered part of the measurement reaches from its anchor.
type HitIndex interface {
	Put(ctx context.Context, m measure.Measurement) error
	Delete(ctx context.Context, id string) error
	Reset(ctx context.Context, ms []measure.Measurement) error
	Candidates(ctx context.Context, at orb.Point, radiusMeters float64) ([]string, error)
}

// Anchor returns the indexed point of a measurement and its extent in meters.
func Anchor(m measure.Measurement) (orb.Point, float64, bool) {
	switch m.Kind {
	case measure.KindCircle:
		if m.Center == nil {
			return orb.Point{}, 0, false
		}
		return *m.Center, m.Value, true
	case measure.KindDistance:
		a, b, ok := m.Endpoints()
		if !ok {
			return orb.Point{}, 0, false
		}
		d := DistanceMeters(a, b)
		return Destination(a, Bearing(a, b), d/2), d / 2, true
	}
	return orb.Point{}, 0, false
}

// MaxIndexLatitude is the Web Mercator limit a Redis GEO set accepts.
// Anchors beyond it are never stored in an index and Locate always scans
// them.
const MaxIndexLatitude = 85.05112878

// Indexable reports whether p can be stored in every HitIndex.
func Indexable(p orb.Point) bool {
	return ValidPoint(p) && math.Abs(p.Lat()) <= MaxIndexLatitude
}

// Locate hit-tests at against ms using idx to prune the scan. The search
// radius covers the largest extent in ms so no candidate is missed; the
// exact test then runs over the survivors in paint order.
func Locate(ctx context.Context, idx HitIndex, ms []measure.Measurement, at orb.Point, toleranceMeters float64) (string, bool, error) {
	if idx == nil || !Indexable(at) {
		id, ok := HitTest(ms, at, toleranceMeters)
		return id, ok, nil
	}
	maxExtent := 0.0
	keep := make(map[string]struct{})
	for _, m := range ms {
		p, ext, ok := Anchor(m)
		if !ok {
			continue
		}
		if !Indexable(p) {
			keep[m.ID] = struct{}{}
		}
		if ext > maxExtent {
			maxExtent = ext
		}
	}
	ids, err := idx.Candidates(ctx, at, maxExtent+toleranceMeters)
	if err != nil {
		return "", false, err
	}
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	if len(keep) == 0 {
		return "", false, nil
	}
	narrowed := make([]measure.Measurement, 0, len(keep))
	for _, m := range ms {
		if _, ok := keep[m.ID]; ok {
			narrowed = append(narrowed, m)
		}
	}
	id, ok := HitTest(narrowed, at, toleranceMeters)
	return id, ok, nil
}

// MemoryIndex is the in-process fallback index.
type MemoryIndex struct {
	mu      sync.RWMutex
	anchors map[string]orb.Point
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{anchors: make(map[string]orb.Point)}
}

func (g *MemoryIndex) Put(_ context.Context, m measure.Measurement) error {
	p, _, ok := Anchor(m)
	if !ok || !Indexable(p) {
		return nil
	}
	g.mu.Lock()
	g.anchors[m.ID] = p
	g.mu.Unlock()
	return nil
}

func (g *MemoryIndex) Delete(_ context.Context, id string) error {
	g.mu.Lock()
	delete(g.anchors, id)
	g.mu.Unlock()
	return nil
}

func (g *MemoryIndex) Reset(ctx context.Context, ms []measure.Measurement) error {
	g.mu.Lock()
	g.anchors = make(map[string]orb.Point, len(ms))
	g.mu.Unlock()
	for _, m := range ms {
		if err := g.Put(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (g *MemoryIndex) Candidates(_ context.Context, at orb.Point, radiusMeters float64) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for id, p := range g.anchors {
		if DistanceMeters(at, p) <= radiusMeters {
			out = append(out, id)
		}
	}
	return out, nil
}
