/*
sales.go - Purchase history and revenue reporting

PURPOSE:
  Read-only views over the append-only sales log. Nothing here mutates
  state; the only writer of sale records is the purchase transaction.
*/
package ledger

import (
	"context"

	"github.com/warp/storefront/store"
)

// PurchasesOf returns the user's sale records in purchase order. An
// unknown user simply has no purchases.
func (l *Ledger) PurchasesOf(ctx context.Context, userID string) ([]store.Sale, error) {
	sales, err := l.store.LoadSales(ctx)
	if err != nil {
		return nil, err
	}
	return sales[userID], nil
}

// Summary aggregates the whole sales log.
type Summary struct {
	TotalSales   int   `json:"total_sales"`
	TotalRevenue int64 `json:"total_revenue"`
	UniqueBuyers int   `json:"unique_buyers"`
}

// SalesSummary returns sale count, revenue, and distinct paying users.
func (l *Ledger) SalesSummary(ctx context.Context) (Summary, error) {
	sales, err := l.store.LoadSales(ctx)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	for _, list := range sales {
		if len(list) == 0 {
			continue
		}
		s.UniqueBuyers++
		s.TotalSales += len(list)
		for _, sale := range list {
			s.TotalRevenue += sale.Price
		}
	}
	return s, nil
}
