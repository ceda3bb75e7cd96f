package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/storefront/internal/domain/catalog"
)

// ProductQuery maps 1:1 onto the catalog filter criteria, with the
// sort key split into field and direction the way the backend expects.
type ProductQuery struct {
	CategoryID string
	Search     string
	MinPrice   int
	MaxPrice   int
	SortBy     string
	SortDir    string
	Page       int
	Limit      int
}

// QueryFromCriteria translates filter criteria into request params.
func QueryFromCriteria(criteria catalog.Criteria) ProductQuery {
	q := ProductQuery{
		CategoryID: criteria.CategoryID,
		Search:     criteria.Search,
		MinPrice:   criteria.MinPrice,
		MaxPrice:   criteria.MaxPrice,
	}
	switch criteria.Sort {
	case catalog.SortPriceAsc:
		q.SortBy, q.SortDir = "price", "asc"
	case catalog.SortPriceDesc:
		q.SortBy, q.SortDir = "price", "desc"
	case catalog.SortNewest:
		q.SortBy, q.SortDir = "created_at", "desc"
	default:
		q.SortBy, q.SortDir = "name", "asc"
	}
	return q
}

func (q ProductQuery) values() url.Values {
	values := url.Values{}
	if q.CategoryID != "" {
		values.Set("category", q.CategoryID)
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.MinPrice > 0 {
		values.Set("min_price", strconv.Itoa(q.MinPrice))
	}
	if q.MaxPrice > 0 && q.MaxPrice < catalog.DomainMaxPrice {
		values.Set("max_price", strconv.Itoa(q.MaxPrice))
	}
	if q.SortBy != "" {
		values.Set("sort_by", q.SortBy)
		values.Set("sort_dir", q.SortDir)
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

type productList struct {
	Items []catalog.Product `json:"items"`
	Total int               `json:"total"`
}

// ListProducts fetches the catalog slice matching the query together
// with the backend-side total count.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) ([]catalog.Product, int, error) {
	var list productList
	if err := c.send(ctx, http.MethodGet, "/products", q.values(), nil, &list, sendOpts{}); err != nil {
		return nil, 0, err
	}
	return list.Items, list.Total, nil
}

// GetProduct fetches one product by id or slug.
func (c *Client) GetProduct(ctx context.Context, idOrSlug string) (catalog.Product, error) {
	var product catalog.Product
	if err := c.send(ctx, http.MethodGet, "/products/"+url.PathEscape(idOrSlug), nil, nil, &product, sendOpts{}); err != nil {
		return catalog.Product{}, err
	}
	return product, nil
}

// ListCategories fetches all product categories.
func (c *Client) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	var categories []catalog.Category
	if err := c.send(ctx, http.MethodGet, "/categories", nil, nil, &categories, sendOpts{}); err != nil {
		return nil, err
	}
	return categories, nil
}

// OrderItem is one line of a placed order.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     int    `json:"price"`
}

// Order is a placed order as the backend reports it.
type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id,omitempty"`
	Items     []OrderItem `json:"items"`
	Total     int         `json:"total"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreateOrder places an order from the given lines.
func (c *Client) CreateOrder(ctx context.Context, items []OrderItem, total int) (Order, error) {
	body := map[string]any{"items": items, "total": total}
	var order Order
	if err := c.send(ctx, http.MethodPost, "/orders", nil, body, &order, sendOpts{}); err != nil {
		return Order{}, err
	}
	return order, nil
}

// ListMyOrders fetches the authenticated user's orders.
func (c *Client) ListMyOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.send(ctx, http.MethodGet, "/orders/my", nil, nil, &orders, sendOpts{}); err != nil {
		return nil, err
	}
	return orders, nil
}
