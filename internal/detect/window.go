// Package detect implements the temporal detectors of SPEC_FULL.md §4.5:
// sliding-window counters over a keyed event stream, each producing an
// alert once its threshold is crossed, subject to a per-key cooldown.
package detect

import (
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Window is a per-key bounded time series of timestamps (SPEC_FULL.md §3's
// "Sliding-window counter"). All retained timestamps for a key are within
// windowDur of that key's most recently inserted timestamp.
type Window struct {
	mu         sync.Mutex
	windowDur  time.Duration
	timestamps map[string][]time.Time
}

// NewWindow creates a window with the given duration.
func NewWindow(windowDur time.Duration) *Window {
	return &Window{windowDur: windowDur, timestamps: make(map[string][]time.Time)}
}

// Insert records t for key and returns the post-prune count: the number of
// timestamps for key within windowDur of t.
func (w *Window) Insert(key string, t time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := append(w.timestamps[key], t)
	cutoff := t.Add(-w.windowDur)

	kept := slices.DeleteFunc(ts, func(ts time.Time) bool {
		return !ts.After(cutoff)
	})
	w.timestamps[key] = kept
	return len(kept)
}

// GC drops keys whose newest timestamp has aged out, bounding memory for
// keys that stop producing events. Safe to call from any goroutine. Nothing
// in the agent calls it on a schedule; only the package's tests call it.
func (w *Window) GC(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for _, key := range maps.Keys(w.timestamps) {
		ts := w.timestamps[key]
		if len(ts) == 0 || now.Sub(ts[len(ts)-1]) > w.windowDur {
			delete(w.timestamps, key)
			removed++
		}
	}
	return removed
}
