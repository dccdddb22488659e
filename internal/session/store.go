// Package session keeps short per-session command history in memory.
//
// The [Store] is owned by the process: constructed at startup, passed to the
// intent classifier as its [intent.Memory], swept by [Store.Run] and dropped
// at shutdown. Nothing is persisted.
package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/voicenav/internal/intent"
)

const (
	defaultMaxHistory    = 3
	defaultTTL           = time.Hour
	defaultSweepInterval = 5 * time.Minute
)

// Entry is one recorded (transcript, action) pair.
type Entry = intent.Exchange

// Context is a snapshot of one session.
type Context struct {
	ID string

	// History holds the most recent entries, oldest first.
	History []Entry

	// LastActions maps each kind to the latest entry of that kind.
	LastActions map[intent.Kind]Entry
}

// LastActivity returns the timestamp of the newest history entry.
func (c Context) LastActivity() time.Time {
	var last time.Time
	for _, e := range c.History {
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last
}

func (c Context) clone() Context {
	out := Context{
		ID:          c.ID,
		History:     make([]Entry, len(c.History)),
		LastActions: make(map[intent.Kind]Entry, len(c.LastActions)),
	}
	for i, e := range c.History {
		out.History[i] = cloneEntry(e)
	}
	for k, e := range c.LastActions {
		out.LastActions[k] = cloneEntry(e)
	}
	return out
}

func cloneEntry(e Entry) Entry {
	if e.Action.Submit != nil {
		e.Action.Submit = intent.BoolPtr(*e.Action.Submit)
	}
	return e
}

// Option configures a [Store].
type Option func(*Store)

// WithMaxHistory bounds the history kept per session. Default: 3.
func WithMaxHistory(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// WithTTL sets how long a session survives without activity. Default: 1h.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithSweepInterval sets the period of [Store.Run]. Default: 5m.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOnSizeChange registers a callback invoked with +1 when a session is
// created and a negative count when sessions are swept.
func WithOnSizeChange(fn func(delta int64)) Option {
	return func(s *Store) {
		s.onSize = fn
	}
}

// Store is a concurrency-safe map of session contexts. Each update is a
// single critical section; concurrent updates to one session are applied in
// lock order (last write wins).
type Store struct {
	maxHistory    int
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	onSize        func(delta int64)

	mu       sync.Mutex
	sessions map[string]*Context
}

var _ intent.Memory = (*Store)(nil)

// NewStore creates an empty [Store].
func NewStore(opts ...Option) *Store {
	s := &Store{
		maxHistory:    defaultMaxHistory,
		ttl:           defaultTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		sessions:      make(map[string]*Context),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Update appends (transcript, action) to the session's history, trimming it
// to the configured bound, and records it as the last action of its kind.
// The session is created on first use. An empty id is a no-op.
func (s *Store) Update(id, transcript string, action intent.Action) {
	if id == "" {
		return
	}
	e := Entry{Transcript: transcript, Action: action, Timestamp: s.now()}

	s.mu.Lock()
	c, ok := s.sessions[id]
	if !ok {
		c = &Context{ID: id, LastActions: make(map[intent.Kind]Entry)}
		s.sessions[id] = c
	}
	c.History = append(c.History, e)
	if over := len(c.History) - s.maxHistory; over > 0 {
		c.History = slices.Delete(c.History, 0, over)
	}
	if action.Kind != "" {
		c.LastActions[action.Kind] = e
	}
	s.mu.Unlock()

	if !ok && s.onSize != nil {
		s.onSize(1)
	}
}

// Record implements [intent.Memory]; it is [Store.Update].
func (s *Store) Record(id, transcript string, action intent.Action) {
	s.Update(id, transcript, action)
}

// Get returns a deep copy of the session's context.
func (s *Store) Get(id string) (Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[id]
	if !ok {
		return Context{}, false
	}
	return c.clone(), true
}

// History implements [intent.Memory].
func (s *Store) History(id string) []intent.Exchange {
	c, ok := s.Get(id)
	if !ok {
		return nil
	}
	return c.History
}

// LastAction implements [intent.Memory].
func (s *Store) LastAction(id string, kind intent.Kind) (intent.Exchange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[id]
	if !ok {
		return intent.Exchange{}, false
	}
	e, ok := c.LastActions[kind]
	return e, ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions whose last activity is older than the TTL relative
// to now and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	removed := 0
	for id, c := range s.sessions {
		if c.LastActivity().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 && s.onSize != nil {
		s.onSize(-int64(removed))
	}
	return removed
}

// Run sweeps expired sessions every sweep interval until ctx is cancelled.
// It returns nil on cancellation so it can run inside an errgroup.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				slog.Debug("session: swept expired sessions", "removed", n, "remaining", s.Len())
			}
		}
	}
}
