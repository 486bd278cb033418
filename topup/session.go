/*
session.go - Ephemeral top-up intake state

PURPOSE:
  Tracks the two-step intake conversation per user: after picking an
  amount the user owes a receipt photo, then a transfer-date text. The
  state lives only in memory and only until the request is materialized.

LOSS IS SAFE:
  Sessions vanish on restart and on TTL expiry. No money has moved before
  materialization, so the user simply starts the intake again.

EVICTION:
  Expired sessions are dropped lazily on access and by a periodic sweep
  (see cmd/storebot).
*/
package topup

import (
	"sync"
	"time"
)

// =============================================================================
// INTAKE STATES
// =============================================================================

type State string

const (
	// StateAwaitingReceipt: amount chosen, waiting for the receipt photo.
	StateAwaitingReceipt State = "awaiting_receipt"

	// StateAwaitingTransferDate: photo received, waiting for the date text.
	StateAwaitingTransferDate State = "awaiting_transfer_date"
)

// Session is one user's in-flight intake.
type Session struct {
	State        State
	Amount       int64
	ReceiptPhoto string
	StartedAt    time.Time
}

// =============================================================================
// SESSION TABLE
// =============================================================================

// Sessions is a TTL-bounded table of in-flight intakes.
type Sessions struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	m   map[string]*Session
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl: ttl,
		now: time.Now,
		m:   make(map[string]*Session),
	}
}

// Get returns the user's live session, evicting it first if expired.
func (s *Sessions) Get(userID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.m[userID]
	if !ok {
		return nil, false
	}
	if s.expired(sess) {
		delete(s.m, userID)
		return nil, false
	}
	return sess, true
}

// Put installs (or replaces) the user's session.
func (s *Sessions) Put(userID string, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.StartedAt.IsZero() {
		sess.StartedAt = s.now()
	}
	s.m[userID] = sess
}

// Delete drops the user's session if any.
func (s *Sessions) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}

// SweepExpired drops every expired session and returns how many.
func (s *Sessions) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.m {
		if s.expired(sess) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

func (s *Sessions) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.StartedAt) > s.ttl
}
