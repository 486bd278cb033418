/*
server.go - Router and middleware for the admin API

PURPOSE:
  Wires URLs to handlers with chi. Request logging, panic recovery, and
  request ids come from chi middleware; CORS is open for local admin
  frontends.

SECURITY NOTE:
  No authentication middleware. The admin API is meant to be bound to a
  loopback or otherwise access-controlled address.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/storebot/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the admin API router.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Get("/pending", h.ListPendingUsers)
			r.Get("/{id}/purchases", h.UserPurchases)
			r.Post("/{id}/approve", h.ApproveUser)
			r.Post("/{id}/reject", h.RejectUser)
			r.Post("/{id}/ban", h.BanUser)
			r.Post("/{id}/unban", h.UnbanUser)
			r.Post("/{id}/adjustments", h.CreditUser)
			r.Put("/{id}/balance", h.SetUserBalance)
		})

		// Recharge review routes
		r.Route("/recharges", func(r chi.Router) {
			r.Get("/pending", h.ListPendingRecharges)
			r.Post("/{id}/approve", h.ApproveRecharge)
			r.Post("/{id}/reject", h.RejectRecharge)
		})

		// Catalog routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Post("/{id}/codes", h.AddProductCode)
		})

		// Sales routes
		r.Get("/sales/summary", h.SalesSummary)
	})

	return r
}
