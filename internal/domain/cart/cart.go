package cart

import "errors"

var (
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrInsufficientStock = errors.New("insufficient stock for requested quantity")
	ErrUnknownPromoCode  = errors.New("unknown promo code")
)

// Line is one product entry in the cart. Quantity never exceeds Stock
// after any mutation; violating mutations are rejected, not clamped.
type Line struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int    `json:"price"` // minor currency units
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
	Stock     int    `json:"stock"`
}

type PromoKind string

const (
	PromoPercentage PromoKind = "percentage"
	PromoFixed      PromoKind = "fixed"
)

// Promo is a discount rule resolved from a code. It is session-scoped:
// never persisted, cleared with the cart.
type Promo struct {
	Code        string    `json:"code"`
	Kind        PromoKind `json:"kind"`
	Value       int       `json:"value"`
	Description string    `json:"description"`
}

// Totals are derived from the lines and the promo, never stored.
type Totals struct {
	TotalQuantity int `json:"total_quantity"`
	Subtotal      int `json:"subtotal"`
	Discount      int `json:"discount"`
	Total         int `json:"total"`
}

// Snapshot is an immutable view of the cart after a mutation.
type Snapshot struct {
	Lines  []Line `json:"lines"`
	Promo  *Promo `json:"promo,omitempty"`
	Totals Totals `json:"totals"`
}

func computeTotals(lines []Line, promo *Promo) Totals {
	var t Totals
	for _, line := range lines {
		t.TotalQuantity += line.Quantity
		t.Subtotal += line.UnitPrice * line.Quantity
	}

	if promo != nil {
		switch promo.Kind {
		case PromoPercentage:
			t.Discount = t.Subtotal * promo.Value / 100
		case PromoFixed:
			t.Discount = promo.Value
		}
	}

	t.Total = t.Subtotal - t.Discount
	if t.Total < 0 {
		t.Total = 0
	}
	return t
}
