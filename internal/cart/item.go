// Package cart keeps each customer's shopping cart, keyed by phone number.
package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// Item is one cart line. Weight-tracked items (sold by kg) carry the
// estimated weight in Quantity and the piece count in Units; unit-tracked
// items have Units == 0.
type Item struct {
	Product  string  `json:"produto"`
	Quantity float64 `json:"quantidade"`
	Units    int     `json:"unidades"`
	Note     string  `json:"observacao"`
	Price    float64 `json:"preco"`
}

// WeightTracked reports whether the item is sold by weight.
func (i Item) WeightTracked() bool {
	return i.Units > 0
}

// Subtotal returns unit price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromFloat(i.Quantity))
}

// Store holds carts. Operations on one customer are atomic; RemoveItem
// takes a one-based index and fails with domain.ErrInvalidItemIndex when it
// is out of range. Clear is idempotent.
type Store interface {
	AddItem(ctx context.Context, phone string, item Item) error
	ListItems(ctx context.Context, phone string) ([]Item, error)
	RemoveItem(ctx context.Context, phone string, index int) error
	Clear(ctx context.Context, phone string) error
}

// OrderMarker records that a customer's order was submitted.
type OrderMarker interface {
	MarkOrderSent(ctx context.Context, phone string) error
	OrderSent(ctx context.Context, phone string) (bool, error)
}

// Total sums item subtotals.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
