package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/storage"
	"github.com/example/storefront/pkg/logger"
)

// Machine owns the cart lines and promo code. Mutations are atomic:
// a new state becomes visible only after it has been persisted, so a
// failed operation leaves the prior snapshot untouched.
type Machine struct {
	mu    sync.Mutex
	store storage.Adapter

	lines []Line
	promo *Promo
}

func NewMachine(store storage.Adapter) *Machine {
	return &Machine{store: store}
}

// Restore loads persisted lines. A corrupt value is treated as absent:
// it is logged, removed, and the cart starts empty. The promo code is
// session-scoped and is never restored.
func (m *Machine) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok, err := m.store.Read(ctx, storage.KeyCartLines)
	if err != nil {
		return fmt.Errorf("failed to read cart lines: %w", err)
	}
	if !ok {
		return nil
	}

	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		logger.Warn(ctx).
			Str("component", "cart").
			Err(err).
			Msg("discarding corrupt persisted cart")
		_ = m.store.Remove(ctx, storage.KeyCartLines)
		return nil
	}

	// Re-establish the stock invariant on whatever was stored.
	restored := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Stock <= 0 {
			continue
		}
		if line.Quantity > line.Stock {
			line.Quantity = line.Stock
		}
		if line.Quantity <= 0 {
			continue
		}
		restored = append(restored, line)
	}
	m.lines = restored
	return nil
}

// AddItem adds a product to the cart. For a new line the quantity is
// capped at the available stock; for an existing line the increment is
// all-or-nothing.
func (m *Machine) AddItem(ctx context.Context, product catalog.Product, requestedQty int) (Snapshot, error) {
	if requestedQty < 1 {
		requestedQty = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.copyLines()
	if i := indexOf(next, product.ID); i >= 0 {
		if next[i].Quantity+requestedQty > next[i].Stock {
			return m.snapshotLocked(), ErrInsufficientStock
		}
		next[i].Quantity += requestedQty
	} else {
		if product.Stock <= 0 {
			return m.snapshotLocked(), ErrOutOfStock
		}
		qty := requestedQty
		if qty > product.Stock {
			qty = product.Stock
		}
		next = append(next, Line{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Image:     firstImage(product),
			Quantity:  qty,
			Stock:     product.Stock,
		})
	}

	return m.commitLocked(ctx, next, m.promo)
}

// RemoveItem deletes a line. Removing an absent product is a no-op.
func (m *Machine) RemoveItem(ctx context.Context, productID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if indexOf(m.lines, productID) < 0 {
		return m.snapshotLocked(), nil
	}

	next := make([]Line, 0, len(m.lines)-1)
	for _, line := range m.lines {
		if line.ProductID != productID {
			next = append(next, line)
		}
	}
	return m.commitLocked(ctx, next, m.promo)
}

// SetQuantity sets a line's quantity exactly. A quantity of zero or
// less removes the line; exceeding stock is rejected.
func (m *Machine) SetQuantity(ctx context.Context, productID string, qty int) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := indexOf(m.lines, productID)
	if i < 0 {
		return m.snapshotLocked(), nil
	}

	if qty <= 0 {
		next := make([]Line, 0, len(m.lines)-1)
		for _, line := range m.lines {
			if line.ProductID != productID {
				next = append(next, line)
			}
		}
		return m.commitLocked(ctx, next, m.promo)
	}

	if qty > m.lines[i].Stock {
		return m.snapshotLocked(), ErrInsufficientStock
	}

	next := m.copyLines()
	next[i].Quantity = qty
	return m.commitLocked(ctx, next, m.promo)
}

// IncreaseQuantity bumps a line by one, respecting the stock ceiling.
func (m *Machine) IncreaseQuantity(ctx context.Context, productID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := indexOf(m.lines, productID)
	if i < 0 {
		return m.snapshotLocked(), nil
	}
	if m.lines[i].Quantity+1 > m.lines[i].Stock {
		return m.snapshotLocked(), ErrInsufficientStock
	}

	next := m.copyLines()
	next[i].Quantity++
	return m.commitLocked(ctx, next, m.promo)
}

// DecreaseQuantity lowers a line by one; at quantity one the line is
// removed instead.
func (m *Machine) DecreaseQuantity(ctx context.Context, productID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := indexOf(m.lines, productID)
	if i < 0 {
		return m.snapshotLocked(), nil
	}

	if m.lines[i].Quantity <= 1 {
		next := make([]Line, 0, len(m.lines)-1)
		for _, line := range m.lines {
			if line.ProductID != productID {
				next = append(next, line)
			}
		}
		return m.commitLocked(ctx, next, m.promo)
	}

	next := m.copyLines()
	next[i].Quantity--
	return m.commitLocked(ctx, next, m.promo)
}

// Clear empties the cart and drops the promo code.
func (m *Machine) Clear(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Remove(ctx, storage.KeyCartLines); err != nil {
		return m.snapshotLocked(), fmt.Errorf("failed to clear persisted cart: %w", err)
	}
	m.lines = nil
	m.promo = nil
	return m.snapshotLocked(), nil
}

// ApplyPromo resolves a code against the known table. An unknown code
// leaves the cart untouched. A known code replaces any existing promo.
func (m *Machine) ApplyPromo(ctx context.Context, code string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	promo, ok := LookupPromo(code)
	if !ok {
		return m.snapshotLocked(), ErrUnknownPromoCode
	}
	m.promo = &promo
	return m.snapshotLocked(), nil
}

// RemovePromo clears the promo code; a no-op if none is set.
func (m *Machine) RemovePromo(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.promo = nil
	return m.snapshotLocked(), nil
}

// SyncStock reconciles lines with a freshly fetched catalog. This is
// the one place quantities are clamped rather than rejected: stock
// changed underneath the user, so lines shrink to fit and sold-out
// products drop out.
func (m *Machine) SyncStock(ctx context.Context, products []catalog.Product) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	changed := false
	next := make([]Line, 0, len(m.lines))
	for _, line := range m.lines {
		p, ok := byID[line.ProductID]
		if !ok {
			next = append(next, line)
			continue
		}
		if p.Stock != line.Stock || p.Price != line.UnitPrice {
			changed = true
		}
		line.Stock = p.Stock
		line.UnitPrice = p.Price
		if line.Quantity > line.Stock {
			line.Quantity = line.Stock
			changed = true
		}
		if line.Quantity <= 0 {
			changed = true
			continue
		}
		next = append(next, line)
	}

	if !changed {
		return m.snapshotLocked(), nil
	}
	return m.commitLocked(ctx, next, m.promo)
}

// Snapshot returns the current state with derived totals.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// commitLocked persists the candidate lines and only then makes them
// visible. On a persistence failure the prior state is retained.
func (m *Machine) commitLocked(ctx context.Context, lines []Line, promo *Promo) (Snapshot, error) {
	raw, err := json.Marshal(lines)
	if err != nil {
		return m.snapshotLocked(), fmt.Errorf("failed to marshal cart lines: %w", err)
	}
	if err := m.store.Write(ctx, storage.KeyCartLines, raw); err != nil {
		return m.snapshotLocked(), fmt.Errorf("failed to persist cart lines: %w", err)
	}

	m.lines = lines
	m.promo = promo
	return m.snapshotLocked(), nil
}

func (m *Machine) snapshotLocked() Snapshot {
	lines := make([]Line, len(m.lines))
	copy(lines, m.lines)

	var promo *Promo
	if m.promo != nil {
		p := *m.promo
		promo = &p
	}

	return Snapshot{
		Lines:  lines,
		Promo:  promo,
		Totals: computeTotals(lines, promo),
	}
}

func (m *Machine) copyLines() []Line {
	next := make([]Line, len(m.lines))
	copy(next, m.lines)
	return next
}

func indexOf(lines []Line, productID string) int {
	for i, line := range lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func firstImage(p catalog.Product) string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
