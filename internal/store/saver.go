package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mapmeasure/internal/measure"
	"mapmeasure/internal/metrics"
)

// Persistence is the write side of a storage slot.
type Persistence interface {
	Save(ctx context.Context, s measure.PersistedState) error
}

// Saver writes snapshots in the background. Only the newest pending snapshot
// is kept, so a burst of changes costs one write. Failures are logged and
// counted, never returned to the caller.
type Saver struct {
	p       Persistence
	backend string
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	latest *measure.PersistedState

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type SaverOptions struct {
	Backend string
	Logger  *slog.Logger
	Timeout time.Duration
}

func NewSaver(p Persistence, opts SaverOptions) *Saver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	s := &Saver{
		p:       p,
		backend: opts.Backend,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue schedules state for saving and returns immediately.
func (s *Saver) Enqueue(state measure.PersistedState) {
	s.mu.Lock()
	s.latest = &state
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Listener adapts the saver to Store.OnChange.
func (s *Saver) Listener() Listener {
	return s.Enqueue
}

// Close flushes the pending snapshot and stops the worker.
func (s *Saver) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Saver) run() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.stop:
			s.flush()
			return
		}
	}
}

func (s *Saver) flush() {
	s.mu.Lock()
	state := s.latest
	s.latest = nil
	s.mu.Unlock()
	if state == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.p.Save(ctx, *state); err != nil {
		metrics.PersistenceSaveFailures.WithLabelValues(s.backend).Inc()
		s.logger.Warn("state save failed", "backend", s.backend, "error", err)
	}
}
