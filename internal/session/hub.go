package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mapmeasure/internal/metrics"
)

const writeWait = 5 * time.Second

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

type subscription struct {
	sessionID string
	conn      *conn
}

// Hub fans session updates out to websocket subscribers.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]map[*conn]struct{}
	register   chan subscription
	unregister chan subscription
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	closed     chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:      make(map[string]map[*conn]struct{}),
		register:   make(chan subscription),
		unregister: make(chan subscription),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		closed: make(chan struct{}),
	}
}

func (h *Hub) send(ch chan subscription, sub subscription) bool {
	select {
	case ch <- sub:
		return true
	case <-h.closed:
		sub.conn.ws.Close()
		return false
	}
}

// Run processes registrations until ctx is done, then closes every socket.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.closed)
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if h.conns[sub.sessionID] == nil {
				h.conns[sub.sessionID] = make(map[*conn]struct{})
			}
			h.conns[sub.sessionID][sub.conn] = struct{}{}
			h.mu.Unlock()
			metrics.ActiveWebSockets.Inc()
		case sub := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.conns[sub.sessionID]; ok {
				if _, live := conns[sub.conn]; live {
					delete(conns, sub.conn)
					metrics.ActiveWebSockets.Dec()
				}
				if len(conns) == 0 {
					delete(h.conns, sub.sessionID)
				}
			}
			h.mu.Unlock()
			sub.conn.ws.Close()
		case <-ctx.Done():
			h.mu.Lock()
			for id, conns := range h.conns {
				for c := range conns {
					c.ws.Close()
					metrics.ActiveWebSockets.Dec()
				}
				delete(h.conns, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Subscribers reports how many sockets watch sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[sessionID])
}

// Serve upgrades the request, pushes the current layers and status, then
// feeds client messages into s until the socket closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, s *Session) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "session", s.ID(), "error", err)
		return
	}
	c := &conn{ws: ws}
	sub := subscription{sessionID: s.ID(), conn: c}
	ctx := context.Background()

	v, err := s.Snapshot(ctx)
	if err != nil {
		ws.Close()
		return
	}
	if !h.send(h.register, sub) {
		return
	}
	_ = c.write(Outbound{Type: TypeLayers, Session: s.ID(), Layers: &v.Layers})
	_ = c.write(Outbound{Type: TypeStatus, Session: s.ID(), Status: &v.Status})

	go func() {
		defer h.send(h.unregister, sub)
		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var in Inbound
			if err := json.Unmarshal(raw, &in); err != nil {
				_ = c.write(Outbound{Type: TypeError, Session: s.ID(), Error: "malformed message"})
				continue
			}
			if err := Apply(ctx, s, in); err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				_ = c.write(Outbound{Type: TypeError, Session: s.ID(), Error: err.Error()})
			}
		}
	}()
}

// Publish sends msg to every subscriber of its session.
func (h *Hub) Publish(msg Outbound) {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns[msg.Session]))
	for c := range h.conns[msg.Session] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		if err := c.write(msg); err != nil {
			go h.send(h.unregister, subscription{sessionID: msg.Session, conn: c})
		}
	}
}
