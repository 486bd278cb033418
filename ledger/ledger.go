/*
ledger.go - Purchase transaction, balance mutation, account lifecycle

PURPOSE:
  The Ledger owns every balance mutation and the inventory-allocation
  discipline. Money is never created or destroyed here: a user's balance
  only moves through approved top-up credits and purchase debits, and a
  redemption code leaves a product's queue exactly once.

THE PURCHASE TRANSACTION:
  Preconditions, first failure wins, no side effects on failure:
    1. user exists          -> ErrUserNotFound
    2. product exists       -> ErrProductNotFound
    3. balance >= price     -> InsufficientBalanceError (with shortfall)
    4. code queue non-empty -> ErrOutOfStock
  Effect, all-or-nothing:
    a. dequeue the head code (FIFO - oldest code sold first)
    b. debit balance + bump lifetime counters; on write failure the code
       is pushed back to the FRONT of the queue before returning
       ErrTransactionFailed - inventory is never lost to a failed debit
    c. append the sale record; on write failure both the code and the
       balance are restored

CONCURRENCY:
  One mutex serializes every mutating operation. The document store has
  no transaction isolation, so read-modify-write cycles against the same
  documents must be linearized (two concurrent purchases of the last code
  would otherwise both succeed).

SEE ALSO:
  - catalog.go: product management
  - sales.go: purchase history and revenue summary
  - errors.go: the error kinds returned here
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/storefront/store"
)

// =============================================================================
// LEDGER SERVICE
// =============================================================================

// Ledger is the transactional core over the document store.
type Ledger struct {
	mu    sync.Mutex
	store store.Store
	now   func() time.Time

	// When true, new accounts wait for operator approval instead of being
	// approved on first contact.
	manualApproval bool
}

type Option func(*Ledger)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithManualApproval makes new accounts start in the pending-review queue.
// The default matches current policy: auto-approve on first contact.
func WithManualApproval() Option {
	return func(l *Ledger) { l.manualApproval = true }
}

func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{store: s, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// =============================================================================
// PURCHASE - the central transaction
// =============================================================================

// PurchaseResult carries everything needed to render the confirmation
// message and the receipt.
type PurchaseResult struct {
	InvoiceID   string
	ProductName string
	Code        string
	Price       int64
	NewBalance  int64
	UserID      string
	UserName    string
	Timestamp   time.Time
}

// Purchase executes the purchase transaction described in the file header.
func (l *Ledger) Purchase(ctx context.Context, userID, productID string) (*PurchaseResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.store.LoadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	user, ok := users[userID]
	if !ok {
		return nil, fmt.Errorf("purchase: %w: %s", ErrUserNotFound, userID)
	}

	products, err := l.store.LoadProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	product, ok := products[productID]
	if !ok {
		return nil, fmt.Errorf("purchase: %w: %s", ErrProductNotFound, productID)
	}

	if user.Balance < product.Price {
		return nil, &InsufficientBalanceError{
			UserID:    userID,
			Available: user.Balance,
			Required:  product.Price,
			Shortfall: product.Price - user.Balance,
		}
	}

	if !product.InStock() {
		return nil, fmt.Errorf("purchase %s: %w", productID, ErrOutOfStock)
	}

	// a. Dequeue the head code.
	code := product.Codes[0]
	product.Codes = product.Codes[1:]
	if err := l.store.SaveProducts(ctx, products); err != nil {
		return nil, fmt.Errorf("reserve code: %w", ErrTransactionFailed)
	}

	// b. Debit balance and bump lifetime counters in one write.
	price := product.Price
	user.Balance -= price
	user.TotalSpent += price
	user.PurchaseCount++
	if err := l.store.SaveUsers(ctx, users); err != nil {
		// Put the code back at the FRONT so FIFO order is preserved.
		product.Codes = append([]string{code}, product.Codes...)
		if restoreErr := l.store.SaveProducts(ctx, products); restoreErr != nil {
			return nil, fmt.Errorf("debit failed and code restore failed: %w", ErrTransactionFailed)
		}
		return nil, fmt.Errorf("debit balance: %w", ErrTransactionFailed)
	}

	// c. Append the sale record.
	at := l.now()
	invoiceID := NewInvoiceID(at)
	sales, err := l.store.LoadSales(ctx)
	if err == nil {
		sales[userID] = append(sales[userID], store.Sale{
			Product:   product.Name,
			Code:      code,
			Price:     price,
			Date:      at,
			InvoiceID: invoiceID,
		})
		err = l.store.SaveSales(ctx, sales)
	}
	if err != nil {
		// Unwind the debit and the dequeue.
		user.Balance += price
		user.TotalSpent -= price
		user.PurchaseCount--
		product.Codes = append([]string{code}, product.Codes...)
		if restoreErr := l.store.SaveUsers(ctx, users); restoreErr != nil {
			return nil, fmt.Errorf("sale record failed and balance restore failed: %w", ErrTransactionFailed)
		}
		if restoreErr := l.store.SaveProducts(ctx, products); restoreErr != nil {
			return nil, fmt.Errorf("sale record failed and code restore failed: %w", ErrTransactionFailed)
		}
		return nil, fmt.Errorf("record sale: %w", ErrTransactionFailed)
	}

	return &PurchaseResult{
		InvoiceID:   invoiceID,
		ProductName: product.Name,
		Code:        code,
		Price:       price,
		NewBalance:  user.Balance,
		UserID:      userID,
		UserName:    user.Name,
		Timestamp:   at,
	}, nil
}

// =============================================================================
// BALANCE MUTATION
// =============================================================================

// CreditBalance adds amount (any sign) to the user's balance and returns
// the new balance. The top-up state machine is responsible for only
// crediting approved requests; no upper bound is enforced here.
func (l *Ledger) CreditBalance(ctx context.Context, userID string, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.adjustBalanceLocked(ctx, userID, amount)
}

func (l *Ledger) adjustBalanceLocked(ctx context.Context, userID string, amount int64) (int64, error) {
	users, err := l.store.LoadUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("load users: %w", err)
	}
	user, ok := users[userID]
	if !ok {
		return 0, fmt.Errorf("credit balance: %w: %s", ErrUserNotFound, userID)
	}
	user.Balance += amount
	if err := l.store.SaveUsers(ctx, users); err != nil {
		return 0, fmt.Errorf("credit balance: %w", ErrTransactionFailed)
	}
	return user.Balance, nil
}

// SetBalance overwrites the balance (operator tool).
func (l *Ledger) SetBalance(ctx context.Context, userID string, balance int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.store.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	user, ok := users[userID]
	if !ok {
		return fmt.Errorf("set balance: %w: %s", ErrUserNotFound, userID)
	}
	user.Balance = balance
	if err := l.store.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("set balance: %w", ErrTransactionFailed)
	}
	return nil
}

// =============================================================================
// ACCOUNT LIFECYCLE
// =============================================================================

// RegisterUser creates an account on first contact. Returns the account
// and whether it was newly created. Existing accounts are returned as-is.
func (l *Ledger) RegisterUser(ctx context.Context, userID, name string) (*store.User, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.store.LoadUsers(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load users: %w", err)
	}
	if existing, ok := users[userID]; ok {
		return existing, false, nil
	}

	at := l.now()
	user := &store.User{
		Name:            name,
		CreatedAt:       at,
		PendingApproval: l.manualApproval,
	}
	if !l.manualApproval {
		approvedAt := at
		user.ApprovedAt = &approvedAt
	}
	users[userID] = user
	if err := l.store.SaveUsers(ctx, users); err != nil {
		return nil, false, fmt.Errorf("register user: %w", ErrTransactionFailed)
	}
	return user, true, nil
}

// GetUser returns the account or ErrUserNotFound.
func (l *Ledger) GetUser(ctx context.Context, userID string) (*store.User, error) {
	users, err := l.store.LoadUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	user, ok := users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return user, nil
}

// AllUsers returns every account keyed by id.
func (l *Ledger) AllUsers(ctx context.Context) (store.Users, error) {
	return l.store.LoadUsers(ctx)
}

// PendingUsers returns accounts awaiting operator approval.
func (l *Ledger) PendingUsers(ctx context.Context) (store.Users, error) {
	users, err := l.store.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	pending := store.Users{}
	for id, user := range users {
		if user.PendingApproval {
			pending[id] = user
		}
	}
	return pending, nil
}

// ApproveUser clears the pending flag. Already-approved accounts are a
// no-op success.
func (l *Ledger) ApproveUser(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.store.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	user, ok := users[userID]
	if !ok {
		return fmt.Errorf("approve user: %w: %s", ErrUserNotFound, userID)
	}
	if !user.PendingApproval {
		return nil
	}
	user.PendingApproval = false
	at := l.now()
	user.ApprovedAt = &at
	if err := l.store.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("approve user: %w", ErrTransactionFailed)
	}
	return nil
}

// DeleteUser removes the account record entirely. This is the destructive
// rejection path, distinct from banning (which keeps the record).
func (l *Ledger) DeleteUser(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.store.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	if _, ok := users[userID]; !ok {
		return fmt.Errorf("delete user: %w: %s", ErrUserNotFound, userID)
	}
	delete(users, userID)
	if err := l.store.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("delete user: %w", ErrTransactionFailed)
	}
	return nil
}

// SetBanned flips the banned flag. The account record is retained.
func (l *Ledger) SetBanned(ctx context.Context, userID string, banned bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := l.store.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	user, ok := users[userID]
	if !ok {
		return fmt.Errorf("ban user: %w: %s", ErrUserNotFound, userID)
	}
	user.Banned = banned
	if err := l.store.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("ban user: %w", ErrTransactionFailed)
	}
	return nil
}
