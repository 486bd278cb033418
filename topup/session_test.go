package topup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_TTLEviction(t *testing.T) {
	// GIVEN: A 30-minute TTL and a controllable clock
	// WHEN: The clock passes the TTL
	// THEN: The session is gone, both lazily and via the sweep

	now := time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)
	sessions := NewSessions(30 * time.Minute)
	sessions.now = func() time.Time { return now }

	sessions.Put("u1", &Session{State: StateAwaitingReceipt, Amount: 5000})
	sessions.Put("u2", &Session{State: StateAwaitingReceipt, Amount: 1000})

	_, ok := sessions.Get("u1")
	assert.True(t, ok)

	// 29 minutes later: still alive.
	now = now.Add(29 * time.Minute)
	sess, ok := sessions.Get("u1")
	require.True(t, ok)
	assert.Equal(t, int64(5000), sess.Amount)

	// Past the TTL: lazy eviction on access.
	now = now.Add(2 * time.Minute)
	_, ok = sessions.Get("u1")
	assert.False(t, ok)

	// The sweep catches the one nobody touched.
	assert.Equal(t, 1, sessions.SweepExpired())
	assert.Equal(t, 0, sessions.SweepExpired())
}

func TestSessions_PutReplacesAndDelete(t *testing.T) {
	sessions := NewSessions(time.Hour)

	sessions.Put("u1", &Session{State: StateAwaitingReceipt, Amount: 1000})
	sessions.Put("u1", &Session{State: StateAwaitingReceipt, Amount: 2000})

	sess, ok := sessions.Get("u1")
	require.True(t, ok)
	assert.Equal(t, int64(2000), sess.Amount, "a new intake replaces the old one")
	assert.False(t, sess.StartedAt.IsZero(), "Put stamps the start time")

	sessions.Delete("u1")
	_, ok = sessions.Get("u1")
	assert.False(t, ok)
}

func TestSessions_ZeroTTLNeverExpires(t *testing.T) {
	sessions := NewSessions(0)
	sessions.Put("u1", &Session{State: StateAwaitingReceipt, Amount: 1000, StartedAt: time.Unix(0, 0)})

	_, ok := sessions.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, 0, sessions.SweepExpired())
}
