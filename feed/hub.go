// Package feed streams mesh events to websocket observers.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/aethiopicuschan/lanmesh/mesh"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = time.Second

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans the events of every tick out to websocket subscribers.
// Publish is called from the tick goroutine, ServeHTTP from HTTP handlers.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	last   *mesh.Snapshot
	closed bool

	upgrader websocket.Upgrader
	greet    func(s *subscriber, data []byte) error
	logger   *zap.Logger
}

// NewHub returns a Hub. logger may be nil.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		greet:  (*subscriber).write,
		logger: logger,
	}
}

// ServeHTTP upgrades the request, greets the subscriber with the latest
// snapshot and keeps it registered until the connection drops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("feed upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	hello, err := json.Marshal(Message{Type: TypeHello, Snapshot: h.last})
	h.mu.Unlock()
	if err == nil {
		// written unlocked: a slow client must not stall Publish
		err = h.greet(sub, hello)
	}
	if err != nil {
		h.logger.Debug("feed greeting failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		conn.Close()
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("feed subscriber joined", zap.String("remote", r.RemoteAddr))

	// The feed is one-way; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(sub)
	h.logger.Debug("feed subscriber left", zap.String("remote", r.RemoteAddr))
}

// Publish records snap as the latest state and, when the tick produced any
// events, sends them to every subscriber. Subscribers that fail are dropped.
func (h *Hub) Publish(snap mesh.Snapshot, events *mesh.Events) {
	h.mu.Lock()
	h.last = &snap
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	if events == nil || events.Len() == 0 || len(subs) == 0 {
		return
	}

	data, err := json.Marshal(Message{Type: TypeEvents, Events: eventMessages(events.Slice())})
	if err != nil {
		h.logger.Error("failed to marshal feed message", zap.Error(err))
		return
	}

	for _, sub := range subs {
		if err := sub.write(data); err != nil {
			h.logger.Info("dropping feed subscriber", zap.Error(err))
			h.drop(sub)
		}
	}
}

// Subscribers reports the number of connected observers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for sub := range subs {
		sub.mu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
		_ = sub.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		sub.mu.Unlock()
		sub.conn.Close()
	}
}

func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	h.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
}
