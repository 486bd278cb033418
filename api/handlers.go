/*
handlers.go - HTTP handlers for the admin review surface

PURPOSE:
  Exposes the operator's read/decision operations over REST: pending
  lists, approve/reject, inventory management, and the sales summary.
  Handlers parse and serialize; every decision is delegated to the
  ledger and the top-up service.

ENDPOINTS:
  Users:
    GET    /api/users                     List accounts
    GET    /api/users/pending             Accounts awaiting approval
    GET    /api/users/{id}/purchases      Purchase history
    POST   /api/users/{id}/approve        Approve pending account
    POST   /api/users/{id}/reject         Reject account (DESTRUCTIVE: record removed)
    POST   /api/users/{id}/ban            Ban (flag only, record retained)
    POST   /api/users/{id}/unban          Lift ban
    POST   /api/users/{id}/adjustments    Credit balance
    PUT    /api/users/{id}/balance        Set balance

  Recharges:
    GET    /api/recharges/pending         Pending top-up requests
    POST   /api/recharges/{id}/approve    Approve (credits balance once)
    POST   /api/recharges/{id}/reject     Reject (no balance effect)

  Products:
    GET    /api/products                  List catalog
    POST   /api/products                  Create listing
    PUT    /api/products/{id}             Update fields
    DELETE /api/products/{id}             Delete listing
    POST   /api/products/{id}/codes       Append a redemption code

  Sales:
    GET    /api/sales/summary             Count, revenue, distinct buyers

ERROR HANDLING:
  Error kinds map to statuses: NotFound -> 404, already-processed and
  duplicate-id conflicts -> 409, validation -> 400, persistence -> 500.
  Re-deciding resolved targets reports the conflict instead of erroring
  destructively.

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: routing and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/storefront/ledger"
	"github.com/warp/storefront/store"
	"github.com/warp/storefront/topup"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the services the admin surface reads from and decides
// through. It keeps no state of its own.
type Handler struct {
	Ledger *ledger.Ledger
	Topups *topup.Service
}

func NewHandler(l *ledger.Ledger, t *topup.Service) *Handler {
	return &Handler{Ledger: l, Topups: t}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Ledger.AllUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userList(users))
}

func (h *Handler) ListPendingUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Ledger.PendingUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userList(users))
}

func userList(users store.Users) []UserDTO {
	dtos := make([]UserDTO, 0, len(users))
	for id, u := range users {
		dtos = append(dtos, toUserDTO(id, u))
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].CreatedAt < dtos[j].CreatedAt })
	return dtos
}

func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Ledger.ApproveUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *Handler) RejectUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Ledger.DeleteUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, true)
}

func (h *Handler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, false)
}

func (h *Handler) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	id := chi.URLParam(r, "id")
	if err := h.Ledger.SetBanned(r.Context(), id, banned); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"banned": banned})
}

func (h *Handler) CreditUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	newBalance, err := h.Ledger.CreditBalance(r.Context(), id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": newBalance})
}

func (h *Handler) SetUserBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SetBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Balance < 0 {
		writeBadRequest(w, "balance must be non-negative")
		return
	}
	if err := h.Ledger.SetBalance(r.Context(), id, req.Balance); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": req.Balance})
}

func (h *Handler) UserPurchases(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sales, err := h.Ledger.PurchasesOf(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = SaleDTO{
			InvoiceID: s.InvoiceID,
			Product:   s.Product,
			Price:     s.Price,
			Date:      s.Date.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RECHARGE HANDLERS
// =============================================================================

func (h *Handler) ListPendingRecharges(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Topups.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]RechargeDTO, len(pending))
	for i, p := range pending {
		dtos[i] = RechargeDTO{
			RequestID:    p.Request.RequestID,
			UserID:       p.UserID,
			UserName:     p.UserName,
			Amount:       p.Request.Amount,
			Status:       string(p.Request.Status),
			TransferDate: p.Request.TransferDate,
			SubmittedAt:  p.Request.Date.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ApproveRecharge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	decision, err := h.Topups.Approve(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DecisionDTO{
		RequestID:  decision.RequestID,
		UserID:     decision.UserID,
		Status:     string(decision.Status),
		Amount:     decision.Amount,
		NewBalance: decision.NewBalance,
	})
}

func (h *Handler) RejectRecharge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	decision, err := h.Topups.Reject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DecisionDTO{
		RequestID: decision.RequestID,
		UserID:    decision.UserID,
		Status:    string(decision.Status),
		Amount:    decision.Amount,
	})
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Ledger.Products(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	dtos := make([]ProductDTO, 0, len(products))
	for id, p := range products {
		dtos = append(dtos, toProductDTO(id, p))
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].ID < dtos[j].ID })
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	err := h.Ledger.CreateProduct(r.Context(), req.ID, store.Product{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Category:    req.Category,
		Image:       req.Image,
		Codes:       req.Codes,
		Active:      active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	err := h.Ledger.UpdateProduct(r.Context(), id, ledger.ProductUpdate{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Category:    req.Category,
		Image:       req.Image,
		Active:      req.Active,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Ledger.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) AddProductCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req AddCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := h.Ledger.AddCode(r.Context(), id, req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// =============================================================================
// SALES HANDLERS
// =============================================================================

func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Ledger.SalesSummary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps core error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case ledger.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrAlreadyProcessed),
		errors.Is(err, ledger.ErrProductExists):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrOutOfStock):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
