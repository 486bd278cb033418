// Package memory provides an in-memory Store for tests and development.
package memory

import (
	"context"
	"sync"

	"github.com/warp/storefront/store"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	users     store.Users
	products  store.Products
	sales     store.Sales
	recharges store.Recharges
}

func New() *Store {
	return &Store{
		users:     store.Users{},
		products:  store.Products{},
		sales:     store.Sales{},
		recharges: store.Recharges{},
	}
}

// Loads hand out deep copies so callers can't alias internal state.

func (m *Store) LoadUsers(_ context.Context) (store.Users, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users.Clone(), nil
}

func (m *Store) SaveUsers(_ context.Context, users store.Users) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = users.Clone()
	return nil
}

func (m *Store) LoadProducts(_ context.Context) (store.Products, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products.Clone(), nil
}

func (m *Store) SaveProducts(_ context.Context, products store.Products) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = products.Clone()
	return nil
}

func (m *Store) LoadSales(_ context.Context) (store.Sales, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sales.Clone(), nil
}

func (m *Store) SaveSales(_ context.Context, sales store.Sales) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = sales.Clone()
	return nil
}

func (m *Store) LoadRecharges(_ context.Context) (store.Recharges, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recharges.Clone(), nil
}

func (m *Store) SaveRecharges(_ context.Context, recharges store.Recharges) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recharges = recharges.Clone()
	return nil
}
