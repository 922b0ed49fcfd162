package ratelimit

import (
	"sync"
	"time"
)

// Window is one sliding-window budget, e.g. 26 requests per minute.
type Window struct {
	Name   string
	Limit  int
	Period time.Duration
}

type windowState struct {
	cfg    Window
	stamps []time.Time
}

// Limiter enforces several sliding windows at once. A request is allowed
// only when every window has headroom.
type Limiter struct {
	now func() time.Time

	mu      sync.Mutex
	windows []*windowState
}

func New(windows ...Window) *Limiter {
	l := &Limiter{now: time.Now}
	for _, w := range windows {
		if w.Limit <= 0 || w.Period <= 0 {
			continue
		}
		l.windows = append(l.windows, &windowState{cfg: w})
	}
	return l
}

// Allow reports whether a request may proceed now. When blocked it returns
// the name of the binding window and how long until a slot frees up.
func (l *Limiter) Allow() (ok bool, window string, retryAfter time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.windows {
		w.evict(now)
		if len(w.stamps) >= w.cfg.Limit {
			wait := w.stamps[0].Add(w.cfg.Period).Sub(now)
			if wait < 0 {
				wait = 0
			}
			return false, w.cfg.Name, wait
		}
	}
	return true, "", 0
}

// Record charges one request against every window.
func (l *Limiter) Record() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.windows {
		w.evict(now)
		w.stamps = append(w.stamps, now)
	}
}

// Usage returns per-window used/limit counts for status reporting.
func (l *Limiter) Usage() map[string][2]int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	usage := make(map[string][2]int, len(l.windows))
	for _, w := range l.windows {
		w.evict(now)
		usage[w.cfg.Name] = [2]int{len(w.stamps), w.cfg.Limit}
	}
	return usage
}

func (w *windowState) evict(now time.Time) {
	cutoff := now.Add(-w.cfg.Period)
	idx := 0
	for idx < len(w.stamps) && !w.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.stamps = w.stamps[idx:]
	}
}
