package ratelimit

import (
	"sync"
	"time"
)

// window pairs a sliding time span with its request cap. A cap of 0 means
// the window is unlimited.
type window struct {
	span  time.Duration
	limit int
	hits  []time.Time
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	kept := w.hits[:0]
	for _, t := range w.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.hits = kept
}

func (w *window) full() bool {
	return w.limit > 0 && len(w.hits) >= w.limit
}

// Limiter enforces per-minute, per-hour and per-day request caps over
// sliding windows. It paces the marketplace collector and the scrape-side
// admin endpoints.
type Limiter struct {
	enabled bool
	windows []*window
	mu      sync.Mutex
}

// NewLimiter creates a limiter with the given caps; 0 disables a cap
func NewLimiter(perMinute, perHour, perDay int, enabled bool) *Limiter {
	return &Limiter{
		enabled: enabled,
		windows: []*window{
			{span: time.Minute, limit: perMinute},
			{span: time.Hour, limit: perHour},
			{span: 24 * time.Hour, limit: perDay},
		},
	}
}

// Allow reports whether a request may proceed now, recording it if so
func (l *Limiter) Allow() bool {
	if !l.enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for _, w := range l.windows {
		w.prune(now)
	}
	for _, w := range l.windows {
		if w.full() {
			return false
		}
	}
	for _, w := range l.windows {
		w.hits = append(w.hits, now)
	}
	return true
}

// Wait blocks until a request slot opens or maxWait elapses. It returns
// false when the deadline passed without a slot.
func (l *Limiter) Wait(maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	for {
		if l.Allow() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Second)
	}
}

// Stats contains current limiter usage
type Stats struct {
	Enabled            bool `json:"enabled"`
	RequestsLastMinute int  `json:"requests_last_minute"`
	RequestsLastHour   int  `json:"requests_last_hour"`
	RequestsLastDay    int  `json:"requests_last_day"`
	LimitPerMinute     int  `json:"limit_per_minute"`
	LimitPerHour       int  `json:"limit_per_hour"`
	LimitPerDay        int  `json:"limit_per_day"`
}

// GetStats returns current limiter usage
func (l *Limiter) GetStats() Stats {
	if !l.enabled {
		return Stats{Enabled: false}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for _, w := range l.windows {
		w.prune(now)
	}
	return Stats{
		Enabled:            true,
		RequestsLastMinute: len(l.windows[0].hits),
		RequestsLastHour:   len(l.windows[1].hits),
		RequestsLastDay:    len(l.windows[2].hits),
		LimitPerMinute:     l.windows[0].limit,
		LimitPerHour:       l.windows[1].limit,
		LimitPerDay:        l.windows[2].limit,
	}
}

// Reset clears all tracked requests (useful for testing)
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.windows {
		w.hits = nil
	}
}
