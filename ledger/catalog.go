/*
catalog.go - Product and code-inventory management

PURPOSE:
  Operator-facing catalog operations. Codes are only ever appended here;
  removal happens exclusively through the purchase transaction so a code
  can never leave the queue without a sale record.
*/
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/storefront/store"
)

// Products returns the whole catalog keyed by id.
func (l *Ledger) Products(ctx context.Context) (store.Products, error) {
	return l.store.LoadProducts(ctx)
}

// AvailableProducts returns products that are active and have stock.
func (l *Ledger) AvailableProducts(ctx context.Context) (store.Products, error) {
	products, err := l.store.LoadProducts(ctx)
	if err != nil {
		return nil, err
	}
	available := store.Products{}
	for id, product := range products {
		if product.Active && product.InStock() {
			available[id] = product
		}
	}
	return available, nil
}

// GetProduct returns one product or ErrProductNotFound.
func (l *Ledger) GetProduct(ctx context.Context, productID string) (*store.Product, error) {
	products, err := l.store.LoadProducts(ctx)
	if err != nil {
		return nil, err
	}
	product, ok := products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return product, nil
}

// CreateProduct adds a new listing. The id must be free.
func (l *Ledger) CreateProduct(ctx context.Context, productID string, product store.Product) error {
	if strings.TrimSpace(productID) == "" || strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("create product: id and name required: %w", ErrValidation)
	}
	if product.Price <= 0 {
		return fmt.Errorf("create product: price must be positive: %w", ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	products, err := l.store.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	if _, ok := products[productID]; ok {
		return fmt.Errorf("create product: %w: %s", ErrProductExists, productID)
	}
	products[productID] = &product
	if err := l.store.SaveProducts(ctx, products); err != nil {
		return fmt.Errorf("create product: %w", ErrTransactionFailed)
	}
	return nil
}

// ProductUpdate holds optional field updates; nil means unchanged.
type ProductUpdate struct {
	Name        *string
	Price       *int64
	Description *string
	Image       *string
	Category    *string
	Active      *bool
}

// UpdateProduct applies field updates. The code queue is not touchable
// through this path.
func (l *Ledger) UpdateProduct(ctx context.Context, productID string, update ProductUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	products, err := l.store.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	product, ok := products[productID]
	if !ok {
		return fmt.Errorf("update product: %w: %s", ErrProductNotFound, productID)
	}

	if update.Name != nil {
		product.Name = *update.Name
	}
	if update.Price != nil {
		if *update.Price <= 0 {
			return fmt.Errorf("update product: price must be positive: %w", ErrValidation)
		}
		product.Price = *update.Price
	}
	if update.Description != nil {
		product.Description = *update.Description
	}
	if update.Image != nil {
		product.Image = *update.Image
	}
	if update.Category != nil {
		product.Category = *update.Category
	}
	if update.Active != nil {
		product.Active = *update.Active
	}

	if err := l.store.SaveProducts(ctx, products); err != nil {
		return fmt.Errorf("update product: %w", ErrTransactionFailed)
	}
	return nil
}

// DeleteProduct removes a listing. Sale records keep the denormalized
// product name, so history survives.
func (l *Ledger) DeleteProduct(ctx context.Context, productID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	products, err := l.store.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	if _, ok := products[productID]; !ok {
		return fmt.Errorf("delete product: %w: %s", ErrProductNotFound, productID)
	}
	delete(products, productID)
	if err := l.store.SaveProducts(ctx, products); err != nil {
		return fmt.Errorf("delete product: %w", ErrTransactionFailed)
	}
	return nil
}

// AddCode appends a redemption code to the back of the queue.
func (l *Ledger) AddCode(ctx context.Context, productID, code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("add code: empty code: %w", ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	products, err := l.store.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	product, ok := products[productID]
	if !ok {
		return fmt.Errorf("add code: %w: %s", ErrProductNotFound, productID)
	}
	product.Codes = append(product.Codes, code)
	if err := l.store.SaveProducts(ctx, products); err != nil {
		return fmt.Errorf("add code: %w", ErrTransactionFailed)
	}
	return nil
}

// =============================================================================
// CATALOG SEED
// =============================================================================

// DefaultCatalog is the seed inventory for a fresh deployment.
func DefaultCatalog() store.Products {
	return store.Products{
		"vpn_1month": {
			Name:        "VPN 1 Month",
			Price:       5000,
			Description: "High quality VPN service for one month, all devices supported",
			Codes:       []string{"vpn-code-001", "vpn-code-002", "vpn-code-003"},
			Category:    "vpn",
			Active:      true,
		},
		"streaming_account": {
			Name:        "Streaming Shared Account",
			Price:       8000,
			Description: "Shared streaming account, 4K on two devices",
			Codes:       []string{"stream-acc1:pass123", "stream-acc2:pass456"},
			Category:    "streaming",
			Active:      true,
		},
		"music_premium": {
			Name:        "Music Premium 1 Month",
			Price:       3000,
			Description: "One month of ad-free music with offline downloads",
			Codes:       []string{"music-code-001", "music-code-002"},
			Category:    "music",
			Active:      true,
		},
	}
}

// SeedDefaultCatalog writes the default catalog if the store has no
// products yet. Returns whether seeding happened.
func (l *Ledger) SeedDefaultCatalog(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	products, err := l.store.LoadProducts(ctx)
	if err != nil {
		return false, fmt.Errorf("load products: %w", err)
	}
	if len(products) > 0 {
		return false, nil
	}
	if err := l.store.SaveProducts(ctx, DefaultCatalog()); err != nil {
		return false, fmt.Errorf("seed catalog: %w", ErrTransactionFailed)
	}
	return true, nil
}
