package topup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/storefront/ledger"
	"github.com/warp/storefront/store"
	"github.com/warp/storefront/store/memory"
	"github.com/warp/storefront/topup"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*topup.Service, *ledger.Ledger, *memory.Store) {
	t.Helper()
	st := memory.New()
	l := ledger.New(st)
	svc := topup.NewService(st, l, topup.NewSessions(30*time.Minute))
	return svc, l, st
}

func seedUser(t *testing.T, st store.Store, userID string, balance int64) {
	t.Helper()
	ctx := context.Background()
	users, err := st.LoadUsers(ctx)
	require.NoError(t, err)
	users[userID] = &store.User{Name: "User " + userID, Balance: balance, CreatedAt: time.Now()}
	require.NoError(t, st.SaveUsers(ctx, users))
}

// flakyStore wraps a Store and fails selected writes, for exercising the
// approval rollback paths.
type flakyStore struct {
	store.Store
	failSaveUsers     bool
	failSaveRecharges bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) SaveUsers(ctx context.Context, users store.Users) error {
	if f.failSaveUsers {
		return errDiskFull
	}
	return f.Store.SaveUsers(ctx, users)
}

func (f *flakyStore) SaveRecharges(ctx context.Context, recharges store.Recharges) error {
	if f.failSaveRecharges {
		return errDiskFull
	}
	return f.Store.SaveRecharges(ctx, recharges)
}

func newFlakyService(t *testing.T) (*topup.Service, *ledger.Ledger, *flakyStore) {
	t.Helper()
	flaky := &flakyStore{Store: memory.New()}
	l := ledger.New(flaky)
	svc := topup.NewService(flaky, l, topup.NewSessions(30*time.Minute))
	return svc, l, flaky
}

// =============================================================================
// INTAKE TESTS
// =============================================================================

func TestIntake_FullFlow(t *testing.T) {
	// GIVEN: A user who picked 5,000
	// WHEN: They send a receipt photo and then a transfer date
	// THEN: A pending request is materialized and the session is gone

	svc, _, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "u1", 0)

	require.NoError(t, svc.Begin("u1", 5000))

	sess, ok := svc.Sessions().Get("u1")
	require.True(t, ok)
	assert.Equal(t, topup.StateAwaitingReceipt, sess.State)

	require.NoError(t, svc.AttachReceipt("u1", "photo-file-id"))
	sess, ok = svc.Sessions().Get("u1")
	require.True(t, ok)
	assert.Equal(t, topup.StateAwaitingTransferDate, sess.State)

	request, err := svc.SubmitTransferDate(ctx, "u1", "2025-07-01 14:30")
	require.NoError(t, err)
	assert.Regexp(t, `^REQ-\d{14}-[0-9a-f]{8}$`, request.RequestID)
	assert.Equal(t, int64(5000), request.Amount)
	assert.Equal(t, store.RequestPending, request.Status)
	assert.Equal(t, "2025-07-01 14:30", request.TransferDate)
	assert.Equal(t, "photo-file-id", request.ReceiptPhoto)

	_, ok = svc.Sessions().Get("u1")
	assert.False(t, ok, "session is consumed by materialization")

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "u1", pending[0].UserID)
}

func TestIntake_StepsOutOfOrder(t *testing.T) {
	// GIVEN: No session, or a session in the wrong state
	// WHEN: Steps arrive out of order
	// THEN: ErrNoSession, and nothing is persisted

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.AttachReceipt("u1", "photo"), topup.ErrNoSession)
	_, err := svc.SubmitTransferDate(ctx, "u1", "2025-07-01 14:30")
	assert.ErrorIs(t, err, topup.ErrNoSession)

	// A date before the photo is also out of order.
	require.NoError(t, svc.Begin("u1", 5000))
	_, err = svc.SubmitTransferDate(ctx, "u1", "2025-07-01 14:30")
	assert.ErrorIs(t, err, topup.ErrNoSession)

	assert.ErrorIs(t, svc.Begin("u1", 0), ledger.ErrValidation)
}

func TestIntake_ShortTransferDate_Reprompts(t *testing.T) {
	// GIVEN: A session awaiting the transfer date
	// WHEN: The text is shorter than five characters
	// THEN: Validation fails and the session survives for a retry

	svc, _, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "u1", 0)

	require.NoError(t, svc.Begin("u1", 5000))
	require.NoError(t, svc.AttachReceipt("u1", "photo"))

	_, err := svc.SubmitTransferDate(ctx, "u1", "  7/1 ")
	assert.ErrorIs(t, err, ledger.ErrValidation)

	sess, ok := svc.Sessions().Get("u1")
	require.True(t, ok, "session must survive a rejected date")
	assert.Equal(t, topup.StateAwaitingTransferDate, sess.State)

	_, err = svc.SubmitTransferDate(ctx, "u1", "2025-07-01 14:30")
	assert.NoError(t, err)
}

// =============================================================================
// DECISION TESTS
// =============================================================================

func submitRequest(t *testing.T, svc *topup.Service, userID string, amount int64) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.Begin(userID, amount))
	require.NoError(t, svc.AttachReceipt(userID, "photo"))
	request, err := svc.SubmitTransferDate(ctx, userID, "2025-07-01 14:30")
	require.NoError(t, err)
	return request.RequestID
}

func TestApprove_CreditsExactlyOnce(t *testing.T) {
	// GIVEN: A pending 5,000 request from a user holding 1,000
	// WHEN: The operator approves it, then approves it again
	// THEN: The balance is credited once; the second decision is rejected

	svc, l, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "u1", 1000)
	requestID := submitRequest(t, svc, "u1", 5000)

	decision, err := svc.Approve(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, store.RequestApproved, decision.Status)
	assert.Equal(t, int64(6000), decision.NewBalance)

	user, err := l.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), user.Balance)

	_, err = svc.Approve(ctx, requestID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyProcessed)

	user, err = l.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), user.Balance, "no double credit")

	requests, err := svc.RequestsOf(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.NotNil(t, requests[0].ProcessedAt)
}

func TestApprove_CreditFailure_StaysPendingAndRetryable(t *testing.T) {
	// GIVEN: A store whose user writes fail
	// WHEN: The operator approves a pending request
	// THEN: No money moves, the request stays pending, and a retry after
	//       the store recovers credits exactly once

	svc, l, flaky := newFlakyService(t)
	ctx := context.Background()
	seedUser(t, flaky, "u1", 1000)
	requestID := submitRequest(t, svc, "u1", 5000)

	flaky.failSaveUsers = true
	_, err := svc.Approve(ctx, requestID)
	assert.ErrorIs(t, err, ledger.ErrTransactionFailed)
	assert.True(t, ledger.IsRetryable(err))

	user, err := l.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), user.Balance, "failed credit must not move money")

	requests, err := svc.RequestsOf(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, store.RequestPending, requests[0].Status, "request must stay pending for a retry")

	flaky.failSaveUsers = false
	decision, err := svc.Approve(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), decision.NewBalance, "retry credits exactly once")
}

func TestApprove_StatusCommitFailure_RollsBackCredit(t *testing.T) {
	// GIVEN: A store whose recharge writes fail after submission
	// WHEN: The operator approves and the status commit fails
	// THEN: The credit is debited back so status and balance stay in step

	svc, l, flaky := newFlakyService(t)
	ctx := context.Background()
	seedUser(t, flaky, "u1", 1000)
	requestID := submitRequest(t, svc, "u1", 5000)

	flaky.failSaveRecharges = true
	_, err := svc.Approve(ctx, requestID)
	assert.ErrorIs(t, err, ledger.ErrTransactionFailed)

	user, err := l.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), user.Balance, "credit must be rolled back when the status commit fails")

	requests, err := svc.RequestsOf(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, store.RequestPending, requests[0].Status)

	flaky.failSaveRecharges = false
	decision, err := svc.Approve(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), decision.NewBalance)
}

func TestReject_NoBalanceEffect(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: The operator rejects it
	// THEN: The status is terminal and no money moves

	svc, l, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "u1", 1000)
	requestID := submitRequest(t, svc, "u1", 5000)

	decision, err := svc.Reject(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, store.RequestRejected, decision.Status)

	user, err := l.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), user.Balance)

	// A rejected request can't be flipped to approved.
	_, err = svc.Approve(ctx, requestID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyProcessed)
}

func TestDecision_UnknownRequest(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Approve(ctx, "REQ-20250101000000-deadbeef")
	assert.ErrorIs(t, err, ledger.ErrRequestNotFound)
	_, err = svc.Reject(ctx, "REQ-20250101000000-deadbeef")
	assert.ErrorIs(t, err, ledger.ErrRequestNotFound)
}

func TestListPending_OldestFirst(t *testing.T) {
	// GIVEN: Requests from two users
	// WHEN: Listing pending
	// THEN: Decided requests are excluded and the rest come oldest first

	svc, _, st := newTestService(t)
	ctx := context.Background()
	seedUser(t, st, "u1", 0)
	seedUser(t, st, "u2", 0)

	first := submitRequest(t, svc, "u1", 1000)
	second := submitRequest(t, svc, "u2", 2000)
	third := submitRequest(t, svc, "u1", 3000)

	_, err := svc.Reject(ctx, second)
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first, pending[0].Request.RequestID)
	assert.Equal(t, third, pending[1].Request.RequestID)
	assert.Equal(t, "User u1", pending[0].UserName, "submitter names are joined in")
	assert.Equal(t, "User u1", pending[1].UserName)
}
