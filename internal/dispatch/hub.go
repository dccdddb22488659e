// Package dispatch fans resolved actions out to the pages that execute
// them.
//
// A page subscribes to its session id over a WebSocket; every action
// resolved for that session is published to all of its subscribers. Slow
// subscribers lose events instead of blocking the command path.
package dispatch

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voicenav/internal/intent"
)

const (
	defaultBuffer       = 16
	defaultWriteTimeout = 5 * time.Second
)

// Event is one dispatched action.
type Event struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	Action    intent.Action `json:"action"`
	Speak     string        `json:"speak,omitempty"`
	Source    intent.Source `json:"source,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Option configures a [Hub].
type Option func(*Hub)

// WithBuffer sets the per-subscriber queue length. Default: 16.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOriginPatterns lists the cross-origin hosts allowed to open the
// WebSocket. Same-origin requests are always allowed.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

// WithOnSubscriberChange is called with +1 or -1 whenever a subscriber is
// added or removed.
func WithOnSubscriberChange(fn func(delta int64)) Option {
	return func(h *Hub) { h.onChange = fn }
}

type subscriber struct {
	ch chan Event
}

// Hub is a per-session publish/subscribe fan-out. It is safe for
// concurrent use.
type Hub struct {
	buffer   int
	origins  []string
	onChange func(delta int64)

	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

// NewHub returns an empty [Hub].
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		buffer: defaultBuffer,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscribe registers a subscriber for sessionID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
// After [Hub.Close] the channel is returned already closed.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[sessionID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	h.changed(1)

	var once sync.Once
	return s.ch, func() {
		once.Do(func() { h.remove(sessionID, s) })
	}
}

func (h *Hub) remove(sessionID string, s *subscriber) {
	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
	close(s.ch)
	h.mu.Unlock()
	h.changed(-1)
}

// Publish delivers ev to every subscriber of ev.SessionID and returns how
// many received it. Full queues drop the event.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.subs[ev.SessionID] {
		select {
		case s.ch <- ev:
			delivered++
		default:
			slog.Warn("dispatch: subscriber queue full, dropping event",
				"session_id", ev.SessionID, "event_id", ev.ID)
		}
	}
	return delivered
}

// Subscribers returns the number of subscribers of sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	n := 0
	for _, set := range h.subs {
		for s := range set {
			close(s.ch)
			n++
		}
	}
	h.subs = make(map[string]map[*subscriber]struct{})
	h.mu.Unlock()
	h.changed(int64(-n))
}

func (h *Hub) changed(delta int64) {
	if h.onChange != nil && delta != 0 {
		h.onChange(delta)
	}
}

// ServeWS upgrades the request to a WebSocket and streams the events of the
// session named by the {id} path value until either side goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("dispatch: websocket accept failed", "session_id", sessionID, "err", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := h.Subscribe(sessionID)
	defer cancel()

	// Incoming messages are not expected; CloseRead handles control frames
	// and cancels ctx when the peer disconnects.
	ctx := conn.CloseRead(r.Context())
	slog.Debug("dispatch: subscriber connected", "session_id", sessionID)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				slog.Debug("dispatch: write failed, dropping subscriber", "session_id", sessionID, "err", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
