package http

import (
	"sync"
	"time"

	"github.com/proctorlab/Proctor/internal/domain"
)

// PublishRateLimiter bounds how often one stream name may hit the publish
// endpoint, protecting the external media server from reconnect storms.
type PublishRateLimiter struct {
	mu        sync.Mutex
	history   map[domain.StreamName][]time.Time
	limit     int
	interval  time.Duration
	lastSweep time.Time
}

func NewPublishRateLimiter(limit int, interval time.Duration) *PublishRateLimiter {
	return &PublishRateLimiter{
		history:   make(map[domain.StreamName][]time.Time),
		limit:     limit,
		interval:  interval,
		lastSweep: time.Now(),
	}
}

func (rl *PublishRateLimiter) Allow(name domain.StreamName) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	if now.Sub(rl.lastSweep) >= rl.interval {
		rl.sweepLocked(windowStart)
		rl.lastSweep = now
	}

	attempts := rl.history[name]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[name] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[name] = fresh
	return true
}

// sweepLocked drops history for streams whose whole window has aged out, so
// names that stop publishing do not accumulate forever.
func (rl *PublishRateLimiter) sweepLocked(windowStart time.Time) {
	for name, attempts := range rl.history {
		live := attempts[:0]
		for _, t := range attempts {
			if t.After(windowStart) {
				live = append(live, t)
			}
		}
		if len(live) == 0 {
			delete(rl.history, name)
			continue
		}
		rl.history[name] = live
	}
}
