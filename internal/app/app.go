// Package app assembles the storefront state machines around a single
// storage adapter and the commerce backend client, and hosts the
// workflows that span more than one machine.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/storefront/internal/backend"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/session"
	"github.com/example/storefront/internal/metrics"
	"github.com/example/storefront/internal/storage"
	"github.com/example/storefront/pkg/logger"
)

var (
	ErrNotAuthenticated = errors.New("login required")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrProductNotFound  = errors.New("product not found")
)

// App wires one client's state: cart, catalog view, and session, all
// persisting through the same storage adapter. One App per client
// session; the machines inside are individually safe for concurrent
// use.
type App struct {
	store  storage.Adapter
	client *backend.Client

	Cart    *cart.Machine
	Catalog *catalog.Engine
	Session *session.Machine

	// refreshSeq orders concurrent catalog refreshes so a slow fetch
	// cannot overwrite the result of a newer one.
	refreshSeq atomic.Uint64
}

// New builds the application around the given storage adapter. The
// backend client is constructed here so the session token and the
// invalidate-on-401 hook can be wired into it.
func New(backendURL string, store storage.Adapter, pageSize int, clientOpts ...backend.Option) (*App, error) {
	a := &App{store: store}

	opts := append([]backend.Option{
		backend.WithTokenSource(func() string { return a.Session.Token() }),
		backend.WithOnUnauthorized(func(ctx context.Context) { a.Session.Invalidate(ctx) }),
	}, clientOpts...)
	a.client = backend.New(backendURL, opts...)

	engine, err := catalog.NewEngine(store, pageSize)
	if err != nil {
		return nil, err
	}
	a.Catalog = engine
	a.Cart = cart.NewMachine(store)
	a.Session = session.NewMachine(store, a.client)
	return a, nil
}

// Backend exposes the REST client for call sites that need operations
// outside the state machines, admin endpoints mostly.
func (a *App) Backend() *backend.Client { return a.client }

// Restore rehydrates all machines from the storage adapter. Corrupt
// state is discarded by the machines themselves; only storage failures
// surface here.
func (a *App) Restore(ctx context.Context) error {
	if err := a.Session.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if err := a.Cart.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore cart: %w", err)
	}
	if err := a.Catalog.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore filter criteria: %w", err)
	}
	return nil
}

// RefreshCatalog fetches the product and category lists from the
// backend, replaces the catalog, and reconciles cart quantities against
// the fresh stock figures. When refreshes overlap, only the most
// recently started one is allowed to apply its result.
func (a *App) RefreshCatalog(ctx context.Context) error {
	seq := a.refreshSeq.Add(1)
	start := time.Now()

	products, _, err := a.client.ListProducts(ctx, backend.ProductQuery{})
	metrics.ObserveBackend("list_products", start, err)
	if err != nil {
		metrics.CatalogRefreshesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to fetch products: %w", err)
	}
	categories, err := a.client.ListCategories(ctx)
	if err != nil {
		metrics.CatalogRefreshesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to fetch categories: %w", err)
	}

	if seq != a.refreshSeq.Load() {
		// A newer refresh started while this one was in flight.
		metrics.CatalogRefreshesTotal.WithLabelValues("superseded").Inc()
		return nil
	}

	a.Catalog.SetCatalog(products)
	a.Catalog.SetCategories(categories)

	snap, err := a.Cart.SyncStock(ctx, products)
	if err != nil {
		return fmt.Errorf("failed to reconcile cart stock: %w", err)
	}
	metrics.CatalogRefreshesTotal.WithLabelValues("ok").Inc()
	metrics.CartSize.Set(float64(len(snap.Lines)))

	logger.Debug(ctx).
		Int("products", len(products)).
		Int("categories", len(categories)).
		Msg("catalog refreshed")
	return nil
}

// AddToCart resolves the product from the current catalog and adds the
// requested quantity to the cart.
func (a *App) AddToCart(ctx context.Context, productID string, qty int) (cart.Snapshot, error) {
	product, ok := a.Catalog.Product(productID)
	if !ok {
		// The catalog may be stale or never loaded; ask the backend.
		fetched, err := a.client.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, backend.ErrNotFound) {
				return a.Cart.Snapshot(), ErrProductNotFound
			}
			return a.Cart.Snapshot(), err
		}
		product = fetched
	}

	snap, err := a.Cart.AddItem(ctx, product, qty)
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	metrics.CartMutationsTotal.WithLabelValues("add", outcome).Inc()
	metrics.CartSize.Set(float64(len(snap.Lines)))
	return snap, err
}

// Checkout places an order for the current cart contents and clears
// the cart once the backend accepts it. The cart is left untouched on
// any failure.
func (a *App) Checkout(ctx context.Context) (backend.Order, error) {
	if !a.Session.IsAuthenticated() {
		return backend.Order{}, ErrNotAuthenticated
	}

	snap := a.Cart.Snapshot()
	if len(snap.Lines) == 0 {
		return backend.Order{}, ErrEmptyCart
	}

	items := make([]backend.OrderItem, 0, len(snap.Lines))
	for _, line := range snap.Lines {
		items = append(items, backend.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			Price:     line.UnitPrice,
		})
	}

	start := time.Now()
	order, err := a.client.CreateOrder(ctx, items, snap.Totals.Total)
	metrics.ObserveBackend("create_order", start, err)
	if err != nil {
		return backend.Order{}, fmt.Errorf("failed to place order: %w", err)
	}

	if _, err := a.Cart.Clear(ctx); err != nil {
		// The order is already placed; an unclearable cart is a local
		// persistence problem, not a checkout failure.
		logger.Warn(ctx).Err(err).Str("order_id", order.ID).Msg("failed to clear cart after checkout")
	}
	metrics.CartSize.Set(0)

	logger.Info(ctx).
		Str("order_id", order.ID).
		Int("total", order.Total).
		Msg("order placed")
	return order, nil
}
