package catalog

import "time"

// DomainMaxPrice is the fixed ceiling of the price filter domain, in
// minor currency units.
const DomainMaxPrice = 10_000_000

// Product is a catalog entity. The filter engine never mutates products
// in place; the catalog is replaced wholesale on refresh.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int       `json:"price"`
	Stock       int       `json:"stock"`
	CategoryID  string    `json:"category_id,omitempty"`
	Images      []string  `json:"images,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Category is a product grouping fetched from the backend.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type SortKey string

const (
	SortNameAsc   SortKey = "name-asc"
	SortPriceAsc  SortKey = "price-asc"
	SortPriceDesc SortKey = "price-desc"
	SortNewest    SortKey = "newest"
)

func (k SortKey) valid() bool {
	switch k {
	case SortNameAsc, SortPriceAsc, SortPriceDesc, SortNewest:
		return true
	}
	return false
}

// Criteria is the active set of constraints narrowing the catalog view.
type Criteria struct {
	CategoryID  string  `json:"category_id,omitempty"`
	Search      string  `json:"search,omitempty"`
	MinPrice    int     `json:"min_price"`
	MaxPrice    int     `json:"max_price"`
	Sort        SortKey `json:"sort"`
	InStockOnly bool    `json:"in_stock_only,omitempty"`
}

// DefaultCriteria matches everything: no category, empty search, the
// full price domain, name-ascending order.
func DefaultCriteria() Criteria {
	return Criteria{
		MinPrice: 0,
		MaxPrice: DomainMaxPrice,
		Sort:     SortNameAsc,
	}
}

// CriteriaPatch is a partial update; nil fields keep their prior value.
type CriteriaPatch struct {
	CategoryID  *string  `json:"category_id,omitempty"`
	Search      *string  `json:"search,omitempty"`
	MinPrice    *int     `json:"min_price,omitempty"`
	MaxPrice    *int     `json:"max_price,omitempty"`
	Sort        *SortKey `json:"sort,omitempty"`
	InStockOnly *bool    `json:"in_stock_only,omitempty"`
}

// merge applies the patch onto c and normalizes the result.
func (c Criteria) merge(patch CriteriaPatch) Criteria {
	if patch.CategoryID != nil {
		c.CategoryID = *patch.CategoryID
	}
	if patch.Search != nil {
		c.Search = *patch.Search
	}
	if patch.MinPrice != nil {
		c.MinPrice = *patch.MinPrice
	}
	if patch.MaxPrice != nil {
		c.MaxPrice = *patch.MaxPrice
	}
	if patch.Sort != nil {
		c.Sort = *patch.Sort
	}
	if patch.InStockOnly != nil {
		c.InStockOnly = *patch.InStockOnly
	}
	return c.normalize()
}

// normalize clamps the price range into [0, DomainMaxPrice], restores
// min <= max by swapping inverted bounds, and falls back to the default
// sort for unknown keys.
func (c Criteria) normalize() Criteria {
	c.MinPrice = clampPrice(c.MinPrice)
	c.MaxPrice = clampPrice(c.MaxPrice)
	if c.MinPrice > c.MaxPrice {
		c.MinPrice, c.MaxPrice = c.MaxPrice, c.MinPrice
	}
	if !c.Sort.valid() {
		c.Sort = SortNameAsc
	}
	return c
}

func clampPrice(p int) int {
	if p < 0 {
		return 0
	}
	if p > DomainMaxPrice {
		return DomainMaxPrice
	}
	return p
}
