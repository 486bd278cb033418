package ledger_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/storefront/ledger"
	"github.com/warp/storefront/store"
	"github.com/warp/storefront/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T, opts ...ledger.Option) (*ledger.Ledger, *memory.Store) {
	t.Helper()
	st := memory.New()
	return ledger.New(st, opts...), st
}

func seedUser(t *testing.T, st *memory.Store, userID string, balance int64) {
	t.Helper()
	ctx := context.Background()
	users, err := st.LoadUsers(ctx)
	require.NoError(t, err)
	users[userID] = &store.User{Name: "User " + userID, Balance: balance, CreatedAt: time.Now()}
	require.NoError(t, st.SaveUsers(ctx, users))
}

func seedProduct(t *testing.T, st *memory.Store, productID string, price int64, codes ...string) {
	t.Helper()
	ctx := context.Background()
	products, err := st.LoadProducts(ctx)
	require.NoError(t, err)
	products[productID] = &store.Product{
		Name:   "Product " + productID,
		Price:  price,
		Codes:  append([]string(nil), codes...),
		Active: true,
	}
	require.NoError(t, st.SaveProducts(ctx, products))
}

// flakyStore wraps a Store and fails selected writes, for exercising the
// rollback paths of the purchase transaction.
type flakyStore struct {
	store.Store
	failSaveUsers bool
	failSaveSales bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) SaveUsers(ctx context.Context, users store.Users) error {
	if f.failSaveUsers {
		return errDiskFull
	}
	return f.Store.SaveUsers(ctx, users)
}

func (f *flakyStore) SaveSales(ctx context.Context, sales store.Sales) error {
	if f.failSaveSales {
		return errDiskFull
	}
	return f.Store.SaveSales(ctx, sales)
}

// =============================================================================
// PURCHASE TESTS
// =============================================================================

func TestPurchase_Success(t *testing.T) {
	// GIVEN: A user with 10,000 and a product costing 5,000 with two codes
	// WHEN: The user buys the product
	// THEN: Balance drops, the OLDEST code is delivered, a sale is recorded

	l, st := newTestLedger(t)
	ctx := context.Background()
	seedUser(t, st, "u1", 10000)
	seedProduct(t, st, "vpn", 5000, "code-a", "code-b")

	result, err := l.Purchase(ctx, "u1", "vpn")
	require.NoError(t, err)

	assert.Equal(t, "code-a", result.Code, "oldest code is sold first")
	assert.Equal(t, int64(5000), result.Price)
	assert.Equal(t, int64(5000), result.NewBalance)
	assert.Regexp(t, regexp.MustCompile(`^INV-\d{14}-[0-9a-f]{8}$`), result.InvoiceID)

	user, err := l.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), user.Balance)
	assert.Equal(t, int64(5000), user.TotalSpent)
	assert.Equal(t, 1, user.PurchaseCount)

	product, err := l.GetProduct(ctx, "vpn")
	require.NoError(t, err)
	assert.Equal(t, []string{"code-b"}, product.Codes)

	sales, err := l.PurchasesOf(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "code-a", sales[0].Code)
	assert.Equal(t, result.InvoiceID, sales[0].InvoiceID)
}

func TestPurchase_CodesLeaveInFIFOOrder(t *testing.T) {
	// GIVEN: A product stocked with codes [a, b, c]
	// WHEN: Three purchases happen
	// THEN: Buyers receive a, then b, then c

	l, st := newTestLedger(t)
	ctx := context.Background()
	seedUser(t, st, "u1", 30000)
	seedProduct(t, st, "vpn", 5000, "a", "b", "c")

	var got []string
	for i := 0; i < 3; i++ {
		result, err := l.Purchase(ctx, "u1", "vpn")
		require.NoError(t, err)
		got = append(got, result.Code)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	_, err := l.Purchase(ctx, "u1", "vpn")
	assert.ErrorIs(t, err, ledger.ErrOutOfStock)
}

func TestPurchase_InsufficientBalance_ReportsShortfall(t *testing.T) {
	// GIVEN: A user with 100 and a product costing 500
	// WHEN: The user tries to buy
	// THEN: The error carries available/required/shortfall and nothing changes

	l, st := newTestLedger(t)
	ctx := context.Background()
	seedUser(t, st, "u1", 100)
	seedProduct(t, st, "vpn", 500, "code-a")

	_, err := l.Purchase(ctx, "u1", "vpn")
	require.Error(t, err)

	var short *ledger.InsufficientBalanceError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, int64(100), short.Available)
	assert.Equal(t, int64(500), short.Required)
	assert.Equal(t, int64(400), short.Shortfall)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	user, err := l.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), user.Balance, "failed purchase must not touch the balance")
	product, err := l.GetProduct(ctx, "vpn")
	require.NoError(t, err)
	assert.Len(t, product.Codes, 1, "failed purchase must not touch the inventory")
}

func TestPurchase_PreconditionOrder(t *testing.T) {
	// GIVEN: Various broken preconditions at once
	// WHEN: Purchasing
	// THEN: The first failing check wins: user, product, balance, stock

	l, st := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Purchase(ctx, "ghost", "vpn")
	assert.ErrorIs(t, err, ledger.ErrUserNotFound)

	seedUser(t, st, "u1", 0)
	_, err = l.Purchase(ctx, "u1", "vpn")
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)

	// Empty queue AND empty balance: balance is checked before stock.
	seedProduct(t, st, "vpn", 500)
	_, err = l.Purchase(ctx, "u1", "vpn")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	require.NoError(t, l.SetBalance(ctx, "u1", 1000))
	_, err = l.Purchase(ctx, "u1", "vpn")
	assert.ErrorIs(t, err, ledger.ErrOutOfStock)
}

func TestPurchase_DebitFailure_RestoresCodeToFront(t *testing.T) {
	// GIVEN: A store whose user writes fail
	// WHEN: A purchase runs past the code dequeue
	// THEN: The code is back at the FRONT of the queue and no sale exists

	st := memory.New()
	flaky := &flakyStore{Store: st, failSaveUsers: true}
	l := ledger.New(flaky)
	ctx := context.Background()

	seedUser(t, st, "u1", 10000)
	seedProduct(t, st, "vpn", 5000, "first", "second")

	_, err := l.Purchase(ctx, "u1", "vpn")
	assert.ErrorIs(t, err, ledger.ErrTransactionFailed)
	assert.True(t, ledger.IsRetryable(err))

	product, err := l.GetProduct(ctx, "vpn")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, product.Codes, "dequeued code must return to the front")

	user, err := l.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), user.Balance)

	sales, err := l.PurchasesOf(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestPurchase_SaleRecordFailure_UnwindsEverything(t *testing.T) {
	// GIVEN: A store whose sales writes fail
	// WHEN: A purchase runs past the debit
	// THEN: Balance, counters, and the code queue are all restored

	st := memory.New()
	flaky := &flakyStore{Store: st, failSaveSales: true}
	l := ledger.New(flaky)
	ctx := context.Background()

	seedUser(t, st, "u1", 10000)
	seedProduct(t, st, "vpn", 5000, "first")

	_, err := l.Purchase(ctx, "u1", "vpn")
	assert.ErrorIs(t, err, ledger.ErrTransactionFailed)

	user, err := l.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), user.Balance)
	assert.Equal(t, int64(0), user.TotalSpent)
	assert.Equal(t, 0, user.PurchaseCount)

	product, err := l.GetProduct(ctx, "vpn")
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, product.Codes)
}

// =============================================================================
// BALANCE TESTS
// =============================================================================

func TestCreditBalance(t *testing.T) {
	// GIVEN: A user with 1,000
	// WHEN: Crediting 5,000 and then debiting 2,000
	// THEN: The running balance is returned each time

	l, st := newTestLedger(t)
	ctx := context.Background()
	seedUser(t, st, "u1", 1000)

	balance, err := l.CreditBalance(ctx, "u1", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), balance)

	balance, err = l.CreditBalance(ctx, "u1", -2000)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), balance)

	_, err = l.CreditBalance(ctx, "ghost", 100)
	assert.ErrorIs(t, err, ledger.ErrUserNotFound)
}

// =============================================================================
// ACCOUNT LIFECYCLE TESTS
// =============================================================================

func TestRegisterUser_AutoApprovedByDefault(t *testing.T) {
	// GIVEN: Default policy
	// WHEN: A user makes first contact
	// THEN: The account is created approved with a zero balance

	l, _ := newTestLedger(t)
	ctx := context.Background()

	user, created, err := l.RegisterUser(ctx, "u1", "Alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, user.PendingApproval)
	require.NotNil(t, user.ApprovedAt)
	assert.Equal(t, int64(0), user.Balance)

	// Second contact is idempotent.
	again, created, err := l.RegisterUser(ctx, "u1", "Alice Renamed")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Alice", again.Name, "existing accounts are returned as-is")
}

func TestRegisterUser_ManualApprovalPolicy(t *testing.T) {
	// GIVEN: The manual-approval policy
	// WHEN: A user registers and is then approved
	// THEN: The account moves from pending to approved exactly once

	l, _ := newTestLedger(t, ledger.WithManualApproval())
	ctx := context.Background()

	user, _, err := l.RegisterUser(ctx, "u1", "Bob")
	require.NoError(t, err)
	assert.True(t, user.PendingApproval)
	assert.Nil(t, user.ApprovedAt)

	pending, err := l.PendingUsers(ctx)
	require.NoError(t, err)
	assert.Contains(t, pending, "u1")

	require.NoError(t, l.ApproveUser(ctx, "u1"))
	user, err = l.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, user.PendingApproval)
	require.NotNil(t, user.ApprovedAt)

	// Re-approving is a no-op success.
	assert.NoError(t, l.ApproveUser(ctx, "u1"))
}

func TestDeleteUser_VersusBan(t *testing.T) {
	// GIVEN: Two accounts
	// WHEN: One is deleted and one is banned
	// THEN: Deletion removes the record; banning keeps it with the flag set

	l, st := newTestLedger(t)
	ctx := context.Background()
	seedUser(t, st, "doomed", 500)
	seedUser(t, st, "naughty", 500)

	require.NoError(t, l.DeleteUser(ctx, "doomed"))
	_, err := l.GetUser(ctx, "doomed")
	assert.ErrorIs(t, err, ledger.ErrUserNotFound)

	require.NoError(t, l.SetBanned(ctx, "naughty", true))
	user, err := l.GetUser(ctx, "naughty")
	require.NoError(t, err)
	assert.True(t, user.Banned)
	assert.Equal(t, int64(500), user.Balance, "banning keeps the record intact")
}

// =============================================================================
// SALES SUMMARY TESTS
// =============================================================================

func TestSalesSummary(t *testing.T) {
	// GIVEN: Two buyers with three purchases between them
	// WHEN: Summarizing
	// THEN: Count, revenue and unique buyers are aggregated

	l, st := newTestLedger(t)
	ctx := context.Background()
	seedUser(t, st, "u1", 20000)
	seedUser(t, st, "u2", 20000)
	seedProduct(t, st, "vpn", 5000, "a", "b", "c")

	_, err := l.Purchase(ctx, "u1", "vpn")
	require.NoError(t, err)
	_, err = l.Purchase(ctx, "u1", "vpn")
	require.NoError(t, err)
	_, err = l.Purchase(ctx, "u2", "vpn")
	require.NoError(t, err)

	summary, err := l.SalesSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalSales)
	assert.Equal(t, int64(15000), summary.TotalRevenue)
	assert.Equal(t, 2, summary.UniqueBuyers)
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestCatalog_CreateUpdateDelete(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	err := l.CreateProduct(ctx, "vpn", store.Product{Name: "VPN", Price: 5000, Active: true})
	require.NoError(t, err)

	err = l.CreateProduct(ctx, "vpn", store.Product{Name: "VPN again", Price: 1, Active: true})
	assert.ErrorIs(t, err, ledger.ErrProductExists)

	err = l.CreateProduct(ctx, "free", store.Product{Name: "Free", Price: 0})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	newPrice := int64(6000)
	require.NoError(t, l.UpdateProduct(ctx, "vpn", ledger.ProductUpdate{Price: &newPrice}))
	product, err := l.GetProduct(ctx, "vpn")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), product.Price)

	require.NoError(t, l.AddCode(ctx, "vpn", "code-1"))
	require.NoError(t, l.AddCode(ctx, "vpn", "code-2"))
	product, err = l.GetProduct(ctx, "vpn")
	require.NoError(t, err)
	assert.Equal(t, []string{"code-1", "code-2"}, product.Codes, "codes append to the back")

	require.NoError(t, l.DeleteProduct(ctx, "vpn"))
	_, err = l.GetProduct(ctx, "vpn")
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)
}

func TestAvailableProducts_FiltersInactiveAndEmpty(t *testing.T) {
	// GIVEN: An active stocked product, an inactive one, and an empty one
	// WHEN: Listing what buyers can see
	// THEN: Only the active stocked product shows

	l, st := newTestLedger(t)
	ctx := context.Background()
	seedProduct(t, st, "good", 100, "c1")
	seedProduct(t, st, "empty", 100)

	products, err := st.LoadProducts(ctx)
	require.NoError(t, err)
	products["hidden"] = &store.Product{Name: "Hidden", Price: 100, Codes: []string{"x"}, Active: false}
	require.NoError(t, st.SaveProducts(ctx, products))

	available, err := l.AvailableProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 1)
	assert.Contains(t, available, "good")
}

func TestSeedDefaultCatalog(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Seeding twice
	// THEN: The first call seeds, the second is a no-op

	l, _ := newTestLedger(t)
	ctx := context.Background()

	seeded, err := l.SeedDefaultCatalog(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	products, err := l.Products(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, products)

	seeded, err = l.SeedDefaultCatalog(ctx)
	require.NoError(t, err)
	assert.False(t, seeded, "an already-stocked catalog is never overwritten")
}
