package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mapmeasure/internal/measure"
	"mapmeasure/internal/metrics"
)

// ErrNotFound is returned by Backend.Get for a key that was never written.
var ErrNotFound = errors.New("state not found")

// Backend is a byte key/value store holding encoded session state.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Slot binds a backend to one state key.
type Slot struct {
	backend Backend
	key     string
}

func NewSlot(b Backend, key string) *Slot {
	return &Slot{backend: b, key: key}
}

func (s *Slot) Key() string     { return s.key }
func (s *Slot) Backend() string { return s.backend.Name() }

// Load reads and validates the stored state. Both missing and malformed
// content are reported as measure.ErrPersistence.
func (s *Slot) Load(ctx context.Context) (measure.PersistedState, error) {
	raw, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return measure.PersistedState{}, fmt.Errorf("%w: load %s: %w", measure.ErrPersistence, s.key, err)
	}
	return measure.Decode(raw)
}

func (s *Slot) Save(ctx context.Context, state measure.PersistedState) error {
	raw, err := measure.Encode(state)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", measure.ErrPersistence, s.key, err)
	}
	if err := s.backend.Put(ctx, s.key, raw); err != nil {
		return fmt.Errorf("%w: save %s: %w", measure.ErrPersistence, s.key, err)
	}
	return nil
}

// LoadOrDefault never fails: anything other than a clean read yields
// fallback. A missing key is expected on first use and is not logged.
func LoadOrDefault(ctx context.Context, slot *Slot, fallback measure.PersistedState, logger *slog.Logger) measure.PersistedState {
	state, err := slot.Load(ctx)
	if err == nil {
		return state
	}
	if errors.Is(err, ErrNotFound) {
		return fallback
	}
	if logger == nil {
		logger = slog.Default()
	}
	metrics.PersistenceLoadFailures.WithLabelValues(slot.Backend()).Inc()
	logger.Warn("state load failed, using default", "key", slot.Key(), "backend", slot.Backend(), "error", err)
	return fallback
}
