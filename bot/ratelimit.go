/*
ratelimit.go - Admission control at the conversation boundary

PURPOSE:
  Two gates per user: a minimum interval between actions and a sliding
  one-minute window cap. Purely an admission concern - no core invariant
  depends on it; the ledger is safe to call without it.
*/
package bot

import (
	"sync"
	"time"
)

// RateLimiter tracks per-user action timestamps.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	perMin   int
	now      func() time.Time

	lastAction map[string]time.Time
	window     map[string][]time.Time
}

func NewRateLimiter(interval time.Duration, perMinute int) *RateLimiter {
	return &RateLimiter{
		interval:   interval,
		perMin:     perMinute,
		now:        time.Now,
		lastAction: make(map[string]time.Time),
		window:     make(map[string][]time.Time),
	}
}

// Allow records the action and reports whether it may proceed.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	if last, ok := rl.lastAction[userID]; ok && now.Sub(last) < rl.interval {
		return false
	}

	cutoff := now.Add(-time.Minute)
	recent := rl.window[userID][:0]
	for _, t := range rl.window[userID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= rl.perMin {
		rl.window[userID] = recent
		return false
	}

	rl.lastAction[userID] = now
	rl.window[userID] = append(recent, now)
	return true
}
