package email

import (
	"strings"
	"sync"
	"time"
)

// DefaultQuietPeriod is how long a [Buffer] waits for a continuation before
// flushing an incomplete phrase.
const DefaultQuietPeriod = 1200 * time.Millisecond

// FlushFunc receives a phrase flushed by the quiet-period timer. It runs on
// the timer's goroutine.
type FlushFunc func(sessionID, phrase string)

// Buffer accumulates email fragments per session.
//
// Each session has at most one open episode. Every [Buffer.Add] resets the
// episode's quiet timer; the episode ends either synchronously when the
// joined phrase [SeemsComplete], or when the timer fires. Timers carry a
// buffer-wide sequence number so one that was stopped too late cannot flush
// a newer episode, and each episode is flushed at most once.
//
// All methods are safe for concurrent use.
type Buffer struct {
	onFlush FlushFunc

	mu      sync.Mutex
	quiet   time.Duration
	pending map[string]*episode
	seq     uint64
	closed  bool
}

type episode struct {
	parts []string
	timer *time.Timer
	gen   uint64
}

// NewBuffer creates a Buffer that flushes after quiet of inactivity. A
// non-positive quiet uses [DefaultQuietPeriod]. onFlush may be nil, in which
// case timed-out phrases are dropped.
func NewBuffer(quiet time.Duration, onFlush FlushFunc) *Buffer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Buffer{
		onFlush: onFlush,
		quiet:   quiet,
		pending: make(map[string]*episode),
	}
}

// SetQuietPeriod changes the quiet period for timers started after the call.
func (b *Buffer) SetQuietPeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	b.mu.Lock()
	b.quiet = d
	b.mu.Unlock()
}

// Add appends fragment to the session's episode. When the joined phrase is
// complete the episode ends immediately and Add returns it with complete set.
// Otherwise the quiet timer is (re)started and Add returns "", false.
//
// After [Buffer.Close], Add passes fragment straight through as complete.
func (b *Buffer) Add(sessionID, fragment string) (phrase string, complete bool) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return "", false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fragment, true
	}

	ep := b.pending[sessionID]
	if ep == nil {
		ep = &episode{}
		b.pending[sessionID] = ep
	}
	ep.parts = append(ep.parts, fragment)
	joined := strings.Join(ep.parts, " ")

	if ep.timer != nil {
		ep.timer.Stop()
	}
	b.seq++
	ep.gen = b.seq

	if SeemsComplete(joined) {
		delete(b.pending, sessionID)
		return joined, true
	}

	gen := ep.gen
	ep.timer = time.AfterFunc(b.quiet, func() { b.expire(sessionID, gen) })
	return "", false
}

// expire flushes the episode if no fragment arrived since generation gen.
func (b *Buffer) expire(sessionID string, gen uint64) {
	b.mu.Lock()
	ep := b.pending[sessionID]
	if ep == nil || ep.gen != gen {
		b.mu.Unlock()
		return
	}
	delete(b.pending, sessionID)
	b.mu.Unlock()

	if b.onFlush != nil {
		b.onFlush(sessionID, strings.Join(ep.parts, " "))
	}
}

// Pending reports whether the session has an open episode.
func (b *Buffer) Pending(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[sessionID]
	return ok
}

// Flush ends the session's episode now and returns its phrase without
// invoking the flush callback.
func (b *Buffer) Flush(sessionID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ep := b.pending[sessionID]
	if ep == nil {
		return "", false
	}
	if ep.timer != nil {
		ep.timer.Stop()
	}
	delete(b.pending, sessionID)
	return strings.Join(ep.parts, " "), true
}

// Close cancels every pending timer and discards open episodes.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ep := range b.pending {
		if ep.timer != nil {
			ep.timer.Stop()
		}
		delete(b.pending, id)
	}
	b.closed = true
}
