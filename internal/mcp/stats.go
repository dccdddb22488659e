package mcp

import (
	"slices"
	"sync"
)

const defaultWindowSize = 100

// rollingWindow keeps the latencies of the last size calls in a ring
// buffer. All methods are safe for concurrent use.
type rollingWindow struct {
	mu      sync.Mutex
	samples []int64 // ms
	failed  []bool
	pos     int
	count   int
	size    int
}

// newRollingWindow returns a window of the given capacity. A non-positive
// size uses the default of 100.
func newRollingWindow(size int) *rollingWindow {
	if size <= 0 {
		size = defaultWindowSize
	}
	return &rollingWindow{
		samples: make([]int64, size),
		failed:  make([]bool, size),
		size:    size,
	}
}

// Record adds one call, overwriting the oldest once the buffer is full.
func (w *rollingWindow) Record(latencyMs int64, failed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.pos] = latencyMs
	w.failed[w.pos] = failed
	w.pos = (w.pos + 1) % w.size
	w.count++
}

func (w *rollingWindow) windowLen() int {
	return min(w.count, w.size)
}

func (w *rollingWindow) sorted() []int64 {
	n := w.windowLen()
	if n == 0 {
		return nil
	}
	cp := slices.Clone(w.samples[:n])
	slices.Sort(cp)
	return cp
}

func (w *rollingWindow) percentile(p float64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.sorted()
	if len(s) == 0 {
		return 0
	}
	return s[int(float64(len(s)-1)*p)]
}

// P50 returns the median latency in ms, or 0 before the first call.
func (w *rollingWindow) P50() int64 { return w.percentile(0.5) }

// P99 returns the 99th-percentile latency in ms, or 0 before the first call.
func (w *rollingWindow) P99() int64 { return w.percentile(0.99) }

// ErrorRate returns the fraction of failed calls in the window.
func (w *rollingWindow) ErrorRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.windowLen()
	if n == 0 {
		return 0
	}
	failed := 0
	for _, f := range w.failed[:n] {
		if f {
			failed++
		}
	}
	return float64(failed) / float64(n)
}

// Count returns the total number of calls recorded, including those that
// have left the window.
func (w *rollingWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}
