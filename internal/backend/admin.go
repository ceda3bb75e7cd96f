package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/example/storefront/internal/domain/catalog"
)

// ProductInput is the admin create/update payload.
type ProductInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       int      `json:"price"`
	Stock       int      `json:"stock"`
	CategoryID  string   `json:"category_id,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// Account is a user as listed on the admin screens. The admin "edit
// user" action has no backend contract and is deliberately absent.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// DashboardStats summarizes the store for the admin dashboard.
type DashboardStats struct {
	TotalProducts int `json:"total_products"`
	TotalOrders   int `json:"total_orders"`
	TotalUsers    int `json:"total_users"`
	Revenue       int `json:"revenue"`
}

// CreateProduct creates a product (admin only).
func (c *Client) CreateProduct(ctx context.Context, input ProductInput) (catalog.Product, error) {
	var product catalog.Product
	if err := c.send(ctx, http.MethodPost, "/products", nil, input, &product, sendOpts{}); err != nil {
		return catalog.Product{}, err
	}
	return product, nil
}

// UpdateProduct updates a product (admin only).
func (c *Client) UpdateProduct(ctx context.Context, id string, input ProductInput) (catalog.Product, error) {
	var product catalog.Product
	if err := c.send(ctx, http.MethodPut, "/products/"+url.PathEscape(id), nil, input, &product, sendOpts{}); err != nil {
		return catalog.Product{}, err
	}
	return product, nil
}

// DeleteProduct removes a product (admin only).
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil, nil, sendOpts{})
}

// ListOrders fetches all orders (admin only).
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.send(ctx, http.MethodGet, "/orders", nil, nil, &orders, sendOpts{}); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus moves an order through its lifecycle (admin only).
func (c *Client) UpdateOrderStatus(ctx context.Context, id, status string) (Order, error) {
	body := map[string]string{"status": status}
	var order Order
	if err := c.send(ctx, http.MethodPut, "/orders/"+url.PathEscape(id)+"/status", nil, body, &order, sendOpts{}); err != nil {
		return Order{}, err
	}
	return order, nil
}

// ListUsers fetches all accounts (admin only).
func (c *Client) ListUsers(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.send(ctx, http.MethodGet, "/users", nil, nil, &accounts, sendOpts{}); err != nil {
		return nil, err
	}
	return accounts, nil
}

// DeleteUser removes an account (admin only).
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil, nil, sendOpts{})
}

// GetDashboardStats fetches the admin dashboard summary.
func (c *Client) GetDashboardStats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	if err := c.send(ctx, http.MethodGet, "/dashboard/stats", nil, nil, &stats, sendOpts{}); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}
