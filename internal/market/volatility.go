package market

import (
	"sync"
	"time"
)

const maxVolatilitySamples = 1000

type volSample struct {
	mid float64
	at  time.Time
}

// VolatilityWindow tracks mid prices over a rolling window and reports the
// high-low range relative to the window average, in percent.
type VolatilityWindow struct {
	window time.Duration

	mu      sync.Mutex
	samples []volSample
}

func NewVolatilityWindow(window time.Duration) *VolatilityWindow {
	return &VolatilityWindow{window: window}
}

func (v *VolatilityWindow) Add(mid float64, at time.Time) {
	if mid <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.samples = append(v.samples, volSample{mid: mid, at: at})
	v.evictLocked(at)
	if len(v.samples) > maxVolatilitySamples {
		v.samples = v.samples[len(v.samples)-maxVolatilitySamples:]
	}
}

func (v *VolatilityWindow) Percent(now time.Time) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.evictLocked(now)
	if len(v.samples) < 2 {
		return 0
	}
	high := v.samples[0].mid
	low := v.samples[0].mid
	sum := 0.0
	for _, s := range v.samples {
		if s.mid > high {
			high = s.mid
		}
		if s.mid < low {
			low = s.mid
		}
		sum += s.mid
	}
	avg := sum / float64(len(v.samples))
	if avg <= 0 {
		return 0
	}
	return (high - low) / avg * 100
}

func (v *VolatilityWindow) evictLocked(now time.Time) {
	cutoff := now.Add(-v.window)
	idx := 0
	for idx < len(v.samples) && v.samples[idx].at.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		v.samples = v.samples[idx:]
	}
}
