package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/storage"
)

func newTestMachine() (*Machine, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return NewMachine(store), store
}

func testProduct(id string, price, stock int) catalog.Product {
	return catalog.Product{
		ID:     id,
		Name:   "Product " + id,
		Price:  price,
		Stock:  stock,
		Images: []string{"/img/" + id + ".jpg"},
	}
}

func persistedLines(t *testing.T, store *storage.MemoryStore) []Line {
	t.Helper()
	raw, ok, err := store.Read(context.Background(), storage.KeyCartLines)
	require.NoError(t, err)
	require.True(t, ok, "cart lines should be persisted")
	var lines []Line
	require.NoError(t, json.Unmarshal(raw, &lines))
	return lines
}

// ============================================
// AddItem Tests
// ============================================

func TestMachine_AddItem_NewLine(t *testing.T) {
	m, store := newTestMachine()
	ctx := context.Background()

	snap, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 2)

	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "p1", snap.Lines[0].ProductID)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.Equal(t, "/img/p1.jpg", snap.Lines[0].Image)
	assert.Equal(t, 2, snap.Totals.TotalQuantity)
	assert.Equal(t, 2000, snap.Totals.Subtotal)

	lines := persistedLines(t, store)
	assert.Equal(t, snap.Lines, lines)
}

func TestMachine_AddItem_DefaultQuantityIsOne(t *testing.T) {
	m, _ := newTestMachine()

	snap, err := m.AddItem(context.Background(), testProduct("p1", 1000, 5), 0)

	require.NoError(t, err)
	assert.Equal(t, 1, snap.Lines[0].Quantity)
}

func TestMachine_AddItem_NewLineCappedAtStock(t *testing.T) {
	m, _ := newTestMachine()

	snap, err := m.AddItem(context.Background(), testProduct("p1", 1000, 3), 10)

	require.NoError(t, err)
	assert.Equal(t, 3, snap.Lines[0].Quantity)
}

func TestMachine_AddItem_OutOfStock(t *testing.T) {
	m, store := newTestMachine()

	_, err := m.AddItem(context.Background(), testProduct("p1", 1000, 0), 1)

	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Empty(t, m.Snapshot().Lines)
	assert.Equal(t, 0, store.Len(), "failed mutation must not persist")
}

func TestMachine_AddItem_IncrementExisting(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 2)
	require.NoError(t, err)

	snap, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 2)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 4, snap.Lines[0].Quantity)
}

func TestMachine_AddItem_IncrementPastStockIsRejectedWhole(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 4)
	require.NoError(t, err)

	_, err = m.AddItem(ctx, testProduct("p1", 1000, 5), 3)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	// No partial increment.
	assert.Equal(t, 4, m.Snapshot().Lines[0].Quantity)
}

func TestMachine_AddItem_PreservesLineOrder(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 100, 5), 1)
	require.NoError(t, err)
	_, err = m.AddItem(ctx, testProduct("p2", 200, 5), 1)
	require.NoError(t, err)
	snap, err := m.AddItem(ctx, testProduct("p1", 100, 5), 1)
	require.NoError(t, err)

	require.Len(t, snap.Lines, 2)
	assert.Equal(t, "p1", snap.Lines[0].ProductID)
	assert.Equal(t, "p2", snap.Lines[1].ProductID)
}

// ============================================
// RemoveItem Tests
// ============================================

func TestMachine_RemoveItem(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 1)
	require.NoError(t, err)
	_, err = m.AddItem(ctx, testProduct("p2", 500, 5), 1)
	require.NoError(t, err)

	snap, err := m.RemoveItem(ctx, "p1")

	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "p2", snap.Lines[0].ProductID)
}

func TestMachine_RemoveItem_AbsentIsNoop(t *testing.T) {
	m, _ := newTestMachine()

	snap, err := m.RemoveItem(context.Background(), "ghost")

	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
}

// ============================================
// SetQuantity Tests
// ============================================

func TestMachine_SetQuantity(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 1)
	require.NoError(t, err)

	snap, err := m.SetQuantity(ctx, "p1", 4)

	require.NoError(t, err)
	assert.Equal(t, 4, snap.Lines[0].Quantity)
}

func TestMachine_SetQuantity_ZeroEqualsRemove(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 2)
	require.NoError(t, err)

	viaSet, err := m.SetQuantity(ctx, "p1", 0)
	require.NoError(t, err)

	// Rebuild the same cart and remove instead.
	other, _ := newTestMachine()
	_, err = other.AddItem(ctx, testProduct("p1", 1000, 5), 2)
	require.NoError(t, err)
	viaRemove, err := other.RemoveItem(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, viaRemove, viaSet)
}

func TestMachine_SetQuantity_ExceedsStock(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 2)
	require.NoError(t, err)

	_, err = m.SetQuantity(ctx, "p1", 6)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, m.Snapshot().Lines[0].Quantity)
}

// ============================================
// Increase/Decrease Tests
// ============================================

func TestMachine_IncreaseDecrease(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 2), 1)
	require.NoError(t, err)

	snap, err := m.IncreaseQuantity(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Lines[0].Quantity)

	_, err = m.IncreaseQuantity(ctx, "p1")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	snap, err = m.DecreaseQuantity(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Lines[0].Quantity)

	// Decreasing past one removes the line.
	snap, err = m.DecreaseQuantity(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
}

// ============================================
// Stock Invariant Property
// ============================================

func TestMachine_QuantityNeverExceedsStock(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	products := []catalog.Product{
		testProduct("p1", 100, 3),
		testProduct("p2", 200, 1),
		testProduct("p3", 300, 7),
	}

	check := func() {
		for _, line := range m.Snapshot().Lines {
			assert.LessOrEqual(t, line.Quantity, line.Stock,
				"line %s breaks the stock invariant", line.ProductID)
		}
	}

	for _, p := range products {
		_, _ = m.AddItem(ctx, p, 2)
		check()
		_, _ = m.AddItem(ctx, p, 5)
		check()
		_, _ = m.SetQuantity(ctx, p.ID, 4)
		check()
		_, _ = m.IncreaseQuantity(ctx, p.ID)
		check()
		_, _ = m.DecreaseQuantity(ctx, p.ID)
		check()
	}
	_, _ = m.RemoveItem(ctx, "p2")
	check()
}

// ============================================
// Clear Tests
// ============================================

func TestMachine_Clear(t *testing.T) {
	m, store := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 2)
	require.NoError(t, err)
	_, err = m.ApplyPromo(ctx, "WELCOME10")
	require.NoError(t, err)

	snap, err := m.Clear(ctx)

	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
	assert.Nil(t, snap.Promo)
	assert.Equal(t, Totals{}, snap.Totals)

	_, ok, err := store.Read(ctx, storage.KeyCartLines)
	require.NoError(t, err)
	assert.False(t, ok, "clear removes the persisted key")
}

// ============================================
// Promo Tests
// ============================================

func TestMachine_ApplyPromo_Percentage(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 50000, 5), 2) // subtotal 100000
	require.NoError(t, err)

	snap, err := m.ApplyPromo(ctx, "WELCOME10")

	require.NoError(t, err)
	require.NotNil(t, snap.Promo)
	assert.Equal(t, "WELCOME10", snap.Promo.Code)
	assert.Equal(t, 100000, snap.Totals.Subtotal)
	assert.Equal(t, 10000, snap.Totals.Discount)
	assert.Equal(t, 90000, snap.Totals.Total)
}

func TestMachine_ApplyPromo_Fixed(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 3000, 5), 1)
	require.NoError(t, err)

	snap, err := m.ApplyPromo(ctx, "FIRST5")

	require.NoError(t, err)
	assert.Equal(t, 5000, snap.Totals.Discount)
	assert.Equal(t, 0, snap.Totals.Total, "total floors at zero")
}

func TestMachine_ApplyPromo_CaseInsensitive(t *testing.T) {
	m, _ := newTestMachine()

	snap, err := m.ApplyPromo(context.Background(), "welcome10")

	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", snap.Promo.Code)
}

func TestMachine_ApplyPromo_UnknownLeavesStateUntouched(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 1)
	require.NoError(t, err)
	before := m.Snapshot()

	_, err = m.ApplyPromo(ctx, "UNKNOWN")

	assert.ErrorIs(t, err, ErrUnknownPromoCode)
	assert.Equal(t, before, m.Snapshot())
}

func TestMachine_ApplyPromo_ReplacesExisting(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.ApplyPromo(ctx, "WELCOME10")
	require.NoError(t, err)

	snap, err := m.ApplyPromo(ctx, "SAVE20")

	require.NoError(t, err)
	assert.Equal(t, "SAVE20", snap.Promo.Code)
}

func TestMachine_RemovePromo(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.ApplyPromo(ctx, "SAVE20")
	require.NoError(t, err)

	snap, err := m.RemovePromo(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Promo)

	// No-op when nothing is set.
	snap, err = m.RemovePromo(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Promo)
}

func TestMachine_PromoIsNotPersisted(t *testing.T) {
	m, store := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 1)
	require.NoError(t, err)
	_, err = m.ApplyPromo(ctx, "WELCOME10")
	require.NoError(t, err)

	restored := NewMachine(store)
	require.NoError(t, restored.Restore(ctx))

	snap := restored.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Nil(t, snap.Promo, "promo is session-scoped and must not round-trip")
}

// ============================================
// SyncStock Tests
// ============================================

func TestMachine_SyncStock_ClampsAndDrops(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 5)
	require.NoError(t, err)
	_, err = m.AddItem(ctx, testProduct("p2", 500, 4), 2)
	require.NoError(t, err)

	snap, err := m.SyncStock(ctx, []catalog.Product{
		testProduct("p1", 1000, 3), // stock shrank below quantity
		testProduct("p2", 500, 0),  // sold out
	})

	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "p1", snap.Lines[0].ProductID)
	assert.Equal(t, 3, snap.Lines[0].Quantity)
	assert.Equal(t, 3, snap.Lines[0].Stock)
}

func TestMachine_SyncStock_UnknownProductsKept(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 2)
	require.NoError(t, err)

	snap, err := m.SyncStock(ctx, []catalog.Product{testProduct("other", 100, 1)})

	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
}

func TestMachine_SyncStock_PicksUpPriceChanges(t *testing.T) {
	m, _ := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 2)
	require.NoError(t, err)

	snap, err := m.SyncStock(ctx, []catalog.Product{testProduct("p1", 1200, 5)})

	require.NoError(t, err)
	assert.Equal(t, 1200, snap.Lines[0].UnitPrice)
	assert.Equal(t, 2400, snap.Totals.Subtotal)
}

// ============================================
// Restore Tests
// ============================================

func TestMachine_Restore_RoundTrip(t *testing.T) {
	m, store := newTestMachine()
	ctx := context.Background()

	_, err := m.AddItem(ctx, testProduct("p1", 1000, 5), 3)
	require.NoError(t, err)

	restored := NewMachine(store)
	require.NoError(t, restored.Restore(ctx))

	assert.Equal(t, m.Snapshot(), restored.Snapshot())
}

func TestMachine_Restore_CorruptValueTreatedAsAbsent(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, storage.KeyCartLines, []byte("{broken")))

	m := NewMachine(store)
	require.NoError(t, m.Restore(ctx))

	assert.Empty(t, m.Snapshot().Lines)
	_, ok, err := store.Read(ctx, storage.KeyCartLines)
	require.NoError(t, err)
	assert.False(t, ok, "corrupt value is removed")
}

func TestMachine_Restore_EnforcesStockInvariant(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	stored := []Line{
		{ProductID: "p1", Name: "P1", UnitPrice: 100, Quantity: 9, Stock: 4},
		{ProductID: "p2", Name: "P2", UnitPrice: 100, Quantity: 1, Stock: 0},
	}
	raw, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, storage.KeyCartLines, raw))

	m := NewMachine(store)
	require.NoError(t, m.Restore(ctx))

	snap := m.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 4, snap.Lines[0].Quantity)
}
