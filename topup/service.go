/*
service.go - Top-up request lifecycle

PURPOSE:
  Owns the path from "user picked an amount" to an operator's terminal
  decision:

    NotStarted --amount--> AwaitingReceipt --photo--> AwaitingTransferDate
      --date text (>=5 chars)--> Pending --approve/reject--> terminal

  Intake state is ephemeral (session.go); a materialized request is
  persisted and its status leaves pending exactly once.

APPROVAL ORDERING:
  Approve credits the balance FIRST and only then commits the status
  transition. If crediting fails the request stays pending and approval
  can be retried; if committing the status fails the credit is debited
  back. Status and credit succeed or fail together - the ledger invariant
  (balance == approved top-ups minus sales) survives either failure.

SEE ALSO:
  - session.go: the intake conversation states
  - ledger/errors.go: the error kinds returned here
*/
package topup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/storefront/ledger"
	"github.com/warp/storefront/store"
)

// minTransferDateLen is the shortest accepted transfer-date text.
const minTransferDateLen = 5

// ErrNoSession is returned when an intake step arrives for a user with no
// live session in the expected state. The shell re-prompts.
var ErrNoSession = errors.New("no top-up session in this state")

// =============================================================================
// SERVICE
// =============================================================================

// Service drives the top-up lifecycle over the store and the ledger.
type Service struct {
	mu       sync.Mutex
	store    store.Store
	ledger   *ledger.Ledger
	sessions *Sessions
	now      func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, l *ledger.Ledger, sessions *Sessions, opts ...Option) *Service {
	s := &Service{store: st, ledger: l, sessions: sessions, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sessions exposes the session table (for sweeping).
func (s *Service) Sessions() *Sessions { return s.sessions }

// =============================================================================
// INTAKE STEPS
// =============================================================================

// Begin starts (or restarts) an intake after the user picked an amount.
func (s *Service) Begin(userID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("top-up amount must be positive: %w", ledger.ErrValidation)
	}
	s.sessions.Put(userID, &Session{
		State:  StateAwaitingReceipt,
		Amount: amount,
	})
	return nil
}

// AttachReceipt records the receipt photo reference and advances to the
// transfer-date step. Fails with ErrNoSession unless the user is in
// AwaitingReceipt.
func (s *Service) AttachReceipt(userID, photoRef string) error {
	sess, ok := s.sessions.Get(userID)
	if !ok || sess.State != StateAwaitingReceipt {
		return ErrNoSession
	}
	sess.ReceiptPhoto = photoRef
	sess.State = StateAwaitingTransferDate
	s.sessions.Put(userID, sess)
	return nil
}

// SubmitTransferDate materializes the pending request. Text shorter than
// five characters is rejected and the session stays in place so the user
// can retry.
func (s *Service) SubmitTransferDate(ctx context.Context, userID, text string) (*store.RechargeRequest, error) {
	sess, ok := s.sessions.Get(userID)
	if !ok || sess.State != StateAwaitingTransferDate {
		return nil, ErrNoSession
	}

	text = strings.TrimSpace(text)
	if len(text) < minTransferDateLen {
		return nil, fmt.Errorf("transfer date too short: %w", ledger.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	request := store.RechargeRequest{
		RequestID:    ledger.NewRequestID(at),
		Amount:       sess.Amount,
		Status:       store.RequestPending,
		Date:         at,
		TransferDate: text,
		ReceiptPhoto: sess.ReceiptPhoto,
	}

	recharges, err := s.store.LoadRecharges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recharges: %w", err)
	}
	recharges[userID] = append(recharges[userID], request)
	if err := s.store.SaveRecharges(ctx, recharges); err != nil {
		// Session stays; the user can resend the date and retry.
		return nil, fmt.Errorf("save recharge request: %w", ledger.ErrTransactionFailed)
	}

	s.sessions.Delete(userID)
	return &request, nil
}

// =============================================================================
// OPERATOR DECISIONS
// =============================================================================

// Decision reports a terminal transition, with everything the shells need
// to notify the submitting user.
type Decision struct {
	UserID     string
	UserName   string
	RequestID  string
	Amount     int64
	Status     store.RequestStatus
	NewBalance int64 // meaningful for approvals only
}

// Approve credits the recorded amount and marks the request approved.
// Deciding an unknown id returns ErrRequestNotFound; deciding a terminal
// request returns ErrAlreadyProcessed and never double-credits.
func (s *Service) Approve(ctx context.Context, requestID string) (*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recharges, err := s.store.LoadRecharges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recharges: %w", err)
	}
	userID, idx, err := findRequest(recharges, requestID)
	if err != nil {
		return nil, err
	}
	request := &recharges[userID][idx]

	// Credit first. If this fails the status stays pending and the
	// approval can simply be retried.
	newBalance, err := s.ledger.CreditBalance(ctx, userID, request.Amount)
	if err != nil {
		return nil, fmt.Errorf("approve %s: %w", requestID, err)
	}

	at := s.now()
	request.Status = store.RequestApproved
	request.ProcessedAt = &at
	if err := s.store.SaveRecharges(ctx, recharges); err != nil {
		// Undo the credit so status and balance stay in step.
		if _, rbErr := s.ledger.CreditBalance(ctx, userID, -request.Amount); rbErr != nil {
			return nil, fmt.Errorf("approve %s: status commit and credit rollback both failed: %w",
				requestID, ledger.ErrTransactionFailed)
		}
		return nil, fmt.Errorf("approve %s: %w", requestID, ledger.ErrTransactionFailed)
	}

	return &Decision{
		UserID:     userID,
		UserName:   s.userName(ctx, userID),
		RequestID:  requestID,
		Amount:     request.Amount,
		Status:     store.RequestApproved,
		NewBalance: newBalance,
	}, nil
}

// Reject marks the request rejected. No balance effect.
func (s *Service) Reject(ctx context.Context, requestID string) (*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recharges, err := s.store.LoadRecharges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recharges: %w", err)
	}
	userID, idx, err := findRequest(recharges, requestID)
	if err != nil {
		return nil, err
	}
	request := &recharges[userID][idx]

	at := s.now()
	request.Status = store.RequestRejected
	request.ProcessedAt = &at
	if err := s.store.SaveRecharges(ctx, recharges); err != nil {
		return nil, fmt.Errorf("reject %s: %w", requestID, ledger.ErrTransactionFailed)
	}

	return &Decision{
		UserID:    userID,
		UserName:  s.userName(ctx, userID),
		RequestID: requestID,
		Amount:    request.Amount,
		Status:    store.RequestRejected,
	}, nil
}

// findRequest locates a request by id across all users and guards the
// terminal-transition invariant.
func findRequest(recharges store.Recharges, requestID string) (string, int, error) {
	for userID, list := range recharges {
		for i := range list {
			if list[i].RequestID != requestID {
				continue
			}
			if list[i].Status.Terminal() {
				return "", 0, fmt.Errorf("%w: %s is %s", ledger.ErrAlreadyProcessed, requestID, list[i].Status)
			}
			return userID, i, nil
		}
	}
	return "", 0, fmt.Errorf("%w: %s", ledger.ErrRequestNotFound, requestID)
}

func (s *Service) userName(ctx context.Context, userID string) string {
	user, err := s.ledger.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Name
}

// =============================================================================
// READS
// =============================================================================

// PendingRequest is a pending request joined with the submitter's name.
type PendingRequest struct {
	UserID   string
	UserName string
	Request  store.RechargeRequest
}

// ListPending returns all pending requests, oldest first. The users
// document is loaded once and joined in memory.
func (s *Service) ListPending(ctx context.Context) ([]PendingRequest, error) {
	recharges, err := s.store.LoadRecharges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recharges: %w", err)
	}
	users, err := s.store.LoadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	var pending []PendingRequest
	for userID, list := range recharges {
		var name string
		if user, ok := users[userID]; ok {
			name = user.Name
		}
		for _, request := range list {
			if request.Status != store.RequestPending {
				continue
			}
			pending = append(pending, PendingRequest{
				UserID:   userID,
				UserName: name,
				Request:  request,
			})
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Request.Date.Before(pending[j].Request.Date)
	})
	return pending, nil
}

// RequestsOf returns one user's requests in submission order.
func (s *Service) RequestsOf(ctx context.Context, userID string) ([]store.RechargeRequest, error) {
	recharges, err := s.store.LoadRecharges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recharges: %w", err)
	}
	return recharges[userID], nil
}
