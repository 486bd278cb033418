/*
store.go - Persistence interface for the storefront documents

PURPOSE:
  Defines the seam between the business core and storage. The store knows
  nothing about purchases or approvals; it loads and saves whole documents.
  Different implementations persist to JSON files, SQLite, or memory.

CONTRACT:
  - Load* on missing backing data returns an empty (non-nil) document,
    never an error. First run looks like an empty shop.
  - Save* replaces the whole document. There is no partial update; the
    ledger serializes read-modify-write cycles itself.
  - Implementations must be safe for concurrent use.

SINGLE WRITER:
  The document store has no transaction isolation. The ledger core holds
  its own mutex around every read-modify-write, so concurrent callers of
  the core are linearized before they reach the store.

IMPLEMENTATIONS:
  - store/jsonfile: production default, one JSON file per document
  - store/sqlite:   documents table in SQLite (WAL)
  - store/memory:   in-memory, for tests and dev

SEE ALSO:
  - types.go: document shapes
  - ledger: owns the transaction scope above this interface
*/
package store

import "context"

// Document names, shared by the file and SQLite backends.
const (
	DocUsers     = "users"
	DocProducts  = "products"
	DocSales     = "sales"
	DocRecharges = "recharge_requests"
)

// Store loads and saves the four storefront documents.
type Store interface {
	LoadUsers(ctx context.Context) (Users, error)
	SaveUsers(ctx context.Context, users Users) error

	LoadProducts(ctx context.Context) (Products, error)
	SaveProducts(ctx context.Context, products Products) error

	LoadSales(ctx context.Context) (Sales, error)
	SaveSales(ctx context.Context, sales Sales) error

	LoadRecharges(ctx context.Context) (Recharges, error)
	SaveRecharges(ctx context.Context, recharges Recharges) error
}
