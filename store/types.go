/*
types.go - Persisted document model

PURPOSE:
  Defines the four documents the storefront persists and the record types
  inside them. The layout mirrors the on-disk JSON: users and products are
  maps keyed by id, sales and recharge requests are per-user append-only
  lists.

DOCUMENTS:
  Users      map[userID]*User
  Products   map[productID]*Product   (codes is an ordered FIFO queue)
  Sales      map[userID][]Sale        (append-only)
  Recharges  map[userID][]RechargeRequest

MUTABILITY RULES:
  - Sale records are never mutated or deleted once appended.
  - A RechargeRequest's status leaves "pending" exactly once.
  - A code removed from Product.Codes never returns to any queue.

SEE ALSO:
  - store.go: Load/Save interface over these documents
  - ledger: the only package allowed to mutate balances and code queues
*/
package store

import "time"

// =============================================================================
// USERS
// =============================================================================

// User is a buyer account. Balance is in minor currency units and must
// never go negative.
type User struct {
	Name            string     `json:"name"`
	Balance         int64      `json:"balance"`
	TotalSpent      int64      `json:"total_spent"`
	PurchaseCount   int        `json:"purchase_count"`
	Banned          bool       `json:"banned"`
	PendingApproval bool       `json:"pending_approval"`
	CreatedAt       time.Time  `json:"created_at"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
}

type Users map[string]*User

// Clone returns a deep copy. Stores hand out clones so callers can't
// mutate shared state behind the ledger's back.
func (u Users) Clone() Users {
	out := make(Users, len(u))
	for id, user := range u {
		c := *user
		if user.ApprovedAt != nil {
			t := *user.ApprovedAt
			c.ApprovedAt = &t
		}
		out[id] = &c
	}
	return out
}

// =============================================================================
// PRODUCTS
// =============================================================================

// Product is a digital-good listing. Codes is an ordered queue: the oldest
// code is sold first and a sold code never reappears.
type Product struct {
	Name        string   `json:"name"`
	Price       int64    `json:"price"`
	Description string   `json:"description"`
	Codes       []string `json:"codes"`
	Image       string   `json:"image,omitempty"`
	Category    string   `json:"category,omitempty"`
	Active      bool     `json:"active"`
}

// InStock reports whether at least one code remains.
func (p *Product) InStock() bool { return len(p.Codes) > 0 }

type Products map[string]*Product

func (p Products) Clone() Products {
	out := make(Products, len(p))
	for id, product := range p {
		c := *product
		c.Codes = append([]string(nil), product.Codes...)
		out[id] = &c
	}
	return out
}

// =============================================================================
// SALES
// =============================================================================

// Sale is one completed purchase. Product name is denormalized so the
// record survives product deletion.
type Sale struct {
	Product   string    `json:"product"`
	Code      string    `json:"code"`
	Price     int64     `json:"price"`
	Date      time.Time `json:"date"`
	InvoiceID string    `json:"invoice_id"`
}

type Sales map[string][]Sale

func (s Sales) Clone() Sales {
	out := make(Sales, len(s))
	for id, list := range s {
		out[id] = append([]Sale(nil), list...)
	}
	return out
}

// =============================================================================
// RECHARGE REQUESTS
// =============================================================================

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether the status can no longer change.
func (s RequestStatus) Terminal() bool { return s != RequestPending }

// RechargeRequest is a user's claim of an off-platform bank transfer,
// waiting for an operator decision.
type RechargeRequest struct {
	RequestID    string        `json:"request_id"`
	Amount       int64         `json:"amount"`
	Status       RequestStatus `json:"status"`
	Date         time.Time     `json:"date"`
	TransferDate string        `json:"transfer_date,omitempty"`
	ReceiptPhoto string        `json:"receipt_photo,omitempty"`
	ProcessedAt  *time.Time    `json:"processed_at,omitempty"`
}

type Recharges map[string][]RechargeRequest

func (r Recharges) Clone() Recharges {
	out := make(Recharges, len(r))
	for id, list := range r {
		cp := make([]RechargeRequest, len(list))
		copy(cp, list)
		for i := range cp {
			if list[i].ProcessedAt != nil {
				t := *list[i].ProcessedAt
				cp[i].ProcessedAt = &t
			}
		}
		out[id] = cp
	}
	return out
}
