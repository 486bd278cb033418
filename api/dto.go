/*
dto.go - Data Transfer Objects for the admin API

PURPOSE:
  JSON shapes for the admin review surface. DTOs decouple the persisted
  document model from the HTTP contract; validation happens in handlers,
  DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/warp/storefront/store"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// UserDTO represents a buyer account in API responses.
type UserDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Balance         int64  `json:"balance"`
	TotalSpent      int64  `json:"total_spent"`
	PurchaseCount   int    `json:"purchase_count"`
	Banned          bool   `json:"banned"`
	PendingApproval bool   `json:"pending_approval"`
	CreatedAt       string `json:"created_at"`
}

func toUserDTO(id string, u *store.User) UserDTO {
	return UserDTO{
		ID:              id,
		Name:            u.Name,
		Balance:         u.Balance,
		TotalSpent:      u.TotalSpent,
		PurchaseCount:   u.PurchaseCount,
		Banned:          u.Banned,
		PendingApproval: u.PendingApproval,
		CreatedAt:       u.CreatedAt.Format(time.RFC3339),
	}
}

// ProductDTO represents a listing. Stock is the queue length; codes are
// never exposed through the read API.
type ProductDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Stock       int    `json:"stock"`
	Active      bool   `json:"active"`
}

func toProductDTO(id string, p *store.Product) ProductDTO {
	return ProductDTO{
		ID:          id,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Category:    p.Category,
		Stock:       len(p.Codes),
		Active:      p.Active,
	}
}

// RechargeDTO represents a recharge request joined with the submitter.
type RechargeDTO struct {
	RequestID    string `json:"request_id"`
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"`
	TransferDate string `json:"transfer_date,omitempty"`
	SubmittedAt  string `json:"submitted_at"`
}

// SaleDTO represents one purchase in a history listing.
type SaleDTO struct {
	InvoiceID string `json:"invoice_id"`
	Product   string `json:"product"`
	Price     int64  `json:"price"`
	Date      string `json:"date"`
}

// DecisionDTO reports a terminal recharge transition.
type DecisionDTO struct {
	RequestID  string `json:"request_id"`
	UserID     string `json:"user_id"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateProductRequest creates a listing, optionally pre-loaded with codes.
type CreateProductRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       int64    `json:"price"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Image       string   `json:"image"`
	Active      *bool    `json:"active"`
	Codes       []string `json:"codes"`
}

// UpdateProductRequest applies partial field updates; omitted fields are
// unchanged.
type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Price       *int64  `json:"price"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Image       *string `json:"image"`
	Active      *bool   `json:"active"`
}

// AddCodeRequest appends one redemption code to the queue.
type AddCodeRequest struct {
	Code string `json:"code"`
}

// AdjustmentRequest credits (or with a negative amount, debits) a balance.
type AdjustmentRequest struct {
	Amount int64 `json:"amount"`
}

// SetBalanceRequest overwrites a balance.
type SetBalanceRequest struct {
	Balance int64 `json:"balance"`
}
