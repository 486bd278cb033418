package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_MinimumInterval(t *testing.T) {
	// GIVEN: A 1.5s minimum interval
	// WHEN: Two actions arrive 1s apart, then one more after the interval
	// THEN: The middle one is refused

	now := time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1500*time.Millisecond, 100)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u1"))

	now = now.Add(time.Second)
	assert.False(t, rl.Allow("u1"), "too soon after the last action")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("u1"))
}

func TestRateLimiter_PerMinuteWindow(t *testing.T) {
	// GIVEN: A cap of 3 actions per minute
	// WHEN: Actions arrive well spaced but more than 3 within a minute
	// THEN: The fourth is refused until the window slides

	now := time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(time.Millisecond, 3)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("u1"))
		now = now.Add(10 * time.Second)
	}
	assert.False(t, rl.Allow("u1"), "window cap reached")

	// 61 seconds after the first action, it falls out of the window.
	now = now.Add(31 * time.Second)
	assert.True(t, rl.Allow("u1"))
}

func TestRateLimiter_UsersAreIndependent(t *testing.T) {
	now := time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1500*time.Millisecond, 10)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"), "one user's throttle must not affect another")
	assert.False(t, rl.Allow("u1"))
}
