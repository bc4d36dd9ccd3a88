package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"mapmeasure/internal/geo"
	"mapmeasure/internal/measure"
	"mapmeasure/internal/metrics"
	"mapmeasure/internal/storage"
	"mapmeasure/internal/store"
)

// DefaultID is used by clients that do not name a session.
const DefaultID = "default"

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id can name a session and its storage key.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

type ManagerOptions struct {
	Session   Config
	Backend   storage.Backend
	KeyPrefix string
	Defaults  measure.PersistedState
	Timeout   time.Duration
	// NewIndex builds the hit index for a session; nil means MemoryIndex.
	NewIndex func(sessionID string) geo.HitIndex
	Publish  func(Outbound)
	Logger   *slog.Logger
}

type entry struct {
	session *Session
	saver   *store.Saver
}

// Manager lazily loads sessions from storage and keeps them for the life
// of the process.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	loading  map[string]chan struct{}
	opts     ManagerOptions
	logger   *slog.Logger
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Backend == nil {
		opts.Backend = storage.NewMemory()
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "mapmeasure:state"
	}
	if opts.Defaults.Measurements == nil {
		opts.Defaults = measure.DefaultState()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.NewIndex == nil {
		opts.NewIndex = func(string) geo.HitIndex { return geo.NewMemoryIndex() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Session.Logger == nil {
		opts.Session.Logger = logger
	}
	return &Manager{
		sessions: make(map[string]*entry),
		loading:  make(map[string]chan struct{}),
		opts:     opts,
		logger:   logger,
	}
}

// Key is the storage key of a session.
func (m *Manager) Key(id string) string {
	return m.opts.KeyPrefix + ":" + id
}

// Get returns the live session for id, loading it on first use. Storage I/O
// runs outside the registry lock; concurrent first calls for the same id
// wait for a single load.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("session id %q: %w", id, measure.ErrInvalidArgument)
	}
	for {
		m.mu.Lock()
		if e, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			return e.session, nil
		}
		wait, busy := m.loading[id]
		if !busy {
			done := make(chan struct{})
			m.loading[id] = done
			m.mu.Unlock()

			e := m.load(ctx, id)
			m.mu.Lock()
			m.sessions[id] = e
			delete(m.loading, id)
			m.mu.Unlock()
			close(done)
			return e.session, nil
		}
		m.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Manager) load(ctx context.Context, id string) *entry {
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.Timeout)
	defer cancel()
	logger := m.logger.With("session", id)
	slot := storage.NewSlot(m.opts.Backend, m.Key(id))
	initial := storage.LoadOrDefault(loadCtx, slot, m.opts.Defaults.Clone(), logger)

	st := store.New(initial)
	saver := store.NewSaver(slot, store.SaverOptions{
		Backend: m.opts.Backend.Name(),
		Logger:  logger,
		Timeout: m.opts.Timeout,
	})
	st.OnChange(saver.Listener())

	idx := m.opts.NewIndex(id)
	if err := idx.Reset(loadCtx, st.Measurements()); err != nil {
		logger.Warn("hit index rebuild failed, using memory index", "error", err)
		idx = geo.NewMemoryIndex()
		_ = idx.Reset(loadCtx, st.Measurements())
	}

	s := newSession(id, m.opts.Session, st, idx, m.opts.Publish)
	metrics.ActiveSessions.Inc()
	logger.Info("session loaded", "measurements", st.Len())
	return &entry{session: s, saver: saver}
}

// Len reports how many sessions are loaded.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session and flushes pending saves.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	entries := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	var errs []error
	for id, e := range entries {
		if err := e.session.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", id, err))
		}
		if err := e.saver.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush session %s: %w", id, err))
		}
		metrics.ActiveSessions.Dec()
	}
	return errors.Join(errs...)
}
