package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/domain/paging"
	"github.com/example/storefront/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	engine, err := NewEngine(store, paging.DefaultPageSize)
	require.NoError(t, err)
	return engine, store
}

func testCatalog() []Product {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []Product{
		{ID: "p1", Name: "Phone Case", Description: "Silicone case", Price: 1500, Stock: 10, CategoryID: "5", CreatedAt: base},
		{ID: "p2", Name: "Headphones", Description: "Wireless headphones", Price: 25000, Stock: 3, CategoryID: "5", CreatedAt: base.Add(48 * time.Hour)},
		{ID: "p3", Name: "Smartphone", Description: "Flagship phone", Price: 300000, Stock: 0, CategoryID: "5", CreatedAt: base.Add(24 * time.Hour)},
		{ID: "p4", Name: "Blender", Description: "Kitchen blender", Price: 18000, Stock: 7, CategoryID: "2", CreatedAt: base.Add(72 * time.Hour)},
		{ID: "p5", Name: "apron", Description: "Cotton apron", Price: 4000, Stock: 2, CategoryID: "2", CreatedAt: base.Add(12 * time.Hour)},
	}
}

func ids(products []Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

// ============================================
// Matching Tests
// ============================================

func TestComputeView_Matching(t *testing.T) {
	catalog := testCatalog()

	tests := []struct {
		name     string
		criteria Criteria
		expected []string
	}{
		{
			"defaults match everything",
			DefaultCriteria(),
			[]string{"p5", "p4", "p2", "p1", "p3"}, // name-asc
		},
		{
			"category filter",
			Criteria{CategoryID: "2", MaxPrice: DomainMaxPrice, Sort: SortNameAsc},
			[]string{"p5", "p4"},
		},
		{
			"search is case-insensitive over name and description",
			Criteria{Search: "PHONE", MaxPrice: DomainMaxPrice, Sort: SortNameAsc},
			[]string{"p2", "p1", "p3"}, // Headphones matches name, Phone Case name, Smartphone name+desc
		},
		{
			"price range is inclusive",
			Criteria{MinPrice: 1500, MaxPrice: 18000, Sort: SortNameAsc},
			[]string{"p5", "p4", "p1"},
		},
		{
			"in-stock only",
			Criteria{MaxPrice: DomainMaxPrice, InStockOnly: true, Sort: SortNameAsc},
			[]string{"p5", "p4", "p2", "p1"},
		},
		{
			"all constraints hold together",
			Criteria{CategoryID: "5", Search: "phone", MinPrice: 1000, MaxPrice: 30000, Sort: SortNameAsc},
			[]string{"p2", "p1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ids(ComputeView(catalog, tt.criteria)))
		})
	}
}

// ============================================
// Sort Tests
// ============================================

func TestComputeView_Sorting(t *testing.T) {
	catalog := testCatalog()

	tests := []struct {
		name     string
		sort     SortKey
		expected []string
	}{
		{"price ascending", SortPriceAsc, []string{"p1", "p5", "p4", "p2", "p3"}},
		{"price descending", SortPriceDesc, []string{"p3", "p2", "p4", "p5", "p1"}},
		{"newest first", SortNewest, []string{"p4", "p2", "p3", "p5", "p1"}},
		{"name ascending ignores case", SortNameAsc, []string{"p5", "p4", "p2", "p1", "p3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			criteria := Criteria{MaxPrice: DomainMaxPrice, Sort: tt.sort}
			assert.Equal(t, tt.expected, ids(ComputeView(catalog, criteria)))
		})
	}
}

func TestComputeView_StableSortBreaksTiesByCatalogOrder(t *testing.T) {
	catalog := []Product{
		{ID: "a", Name: "A", Price: 100},
		{ID: "b", Name: "B", Price: 100},
		{ID: "c", Name: "C", Price: 100},
	}
	criteria := Criteria{MaxPrice: DomainMaxPrice, Sort: SortPriceAsc}

	assert.Equal(t, []string{"a", "b", "c"}, ids(ComputeView(catalog, criteria)))
}

func TestComputeView_IsIdempotent(t *testing.T) {
	catalog := testCatalog()
	criteria := Criteria{Search: "phone", MaxPrice: DomainMaxPrice, Sort: SortPriceDesc}

	first := ComputeView(catalog, criteria)
	second := ComputeView(catalog, criteria)

	assert.Equal(t, first, second)
}

func TestComputeView_DoesNotMutateCatalog(t *testing.T) {
	catalog := testCatalog()
	original := ids(catalog)

	_ = ComputeView(catalog, Criteria{MaxPrice: DomainMaxPrice, Sort: SortPriceDesc})

	assert.Equal(t, original, ids(catalog))
}

// ============================================
// Criteria Merge Tests
// ============================================

func TestEngine_SetCriteria_Merges(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	category := "5"
	_, err := engine.SetCriteria(ctx, CriteriaPatch{CategoryID: &category})
	require.NoError(t, err)

	search := "phone"
	criteria, err := engine.SetCriteria(ctx, CriteriaPatch{Search: &search})
	require.NoError(t, err)

	assert.Equal(t, "5", criteria.CategoryID, "earlier fields survive a partial update")
	assert.Equal(t, "phone", criteria.Search)
	assert.Equal(t, SortNameAsc, criteria.Sort)
}

func TestEngine_SetCriteria_ClampsPriceRange(t *testing.T) {
	engine, _ := newTestEngine(t)

	min, max := -50, DomainMaxPrice * 2
	criteria, err := engine.SetCriteria(context.Background(), CriteriaPatch{MinPrice: &min, MaxPrice: &max})

	require.NoError(t, err)
	assert.Equal(t, 0, criteria.MinPrice)
	assert.Equal(t, DomainMaxPrice, criteria.MaxPrice)
}

func TestEngine_SetCriteria_SwapsInvertedBounds(t *testing.T) {
	engine, _ := newTestEngine(t)

	min, max := 5000, 100
	criteria, err := engine.SetCriteria(context.Background(), CriteriaPatch{MinPrice: &min, MaxPrice: &max})

	require.NoError(t, err)
	assert.LessOrEqual(t, criteria.MinPrice, criteria.MaxPrice)
}

func TestEngine_SetCriteria_ResetsPage(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	engine.SetCatalog(manyProducts(30))
	engine.SetPage(3)

	search := ""
	_, err := engine.SetCriteria(ctx, CriteriaPatch{Search: &search})
	require.NoError(t, err)

	_, info := engine.Page()
	assert.Equal(t, 1, info.Page)
}

func TestEngine_ClearCriteria(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	category, search := "5", "phone"
	_, err := engine.SetCriteria(ctx, CriteriaPatch{CategoryID: &category, Search: &search})
	require.NoError(t, err)

	criteria, err := engine.ClearCriteria(ctx)

	require.NoError(t, err)
	assert.Equal(t, DefaultCriteria(), criteria)
}

// ============================================
// Catalog / Paging Tests
// ============================================

func manyProducts(n int) []Product {
	products := make([]Product, n)
	for i := range products {
		products[i] = Product{
			ID:    string(rune('a' + i%26)) + "-" + string(rune('0'+i/26)),
			Name:  "Product",
			Price: 100 * (i + 1),
			Stock: 5,
		}
	}
	return products
}

func TestEngine_SetCatalog_RecomputesAndResetsPage(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.SetCatalog(manyProducts(30))
	engine.SetPage(2)

	engine.SetCatalog(manyProducts(5))

	view := engine.View()
	assert.Len(t, view, 5)
	_, info := engine.Page()
	assert.Equal(t, 1, info.Page)
	assert.Equal(t, 1, info.TotalPages)
}

func TestEngine_Page_EmptyViewIsPageOneOfOne(t *testing.T) {
	engine, _ := newTestEngine(t)

	items, info := engine.Page()

	assert.Empty(t, items)
	assert.Equal(t, 1, info.Page)
	assert.Equal(t, 1, info.TotalPages)
}

func TestEngine_SetPageSize_Invalid(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.SetPageSize(0)

	assert.ErrorIs(t, err, paging.ErrInvalidPageSize)
}

// ============================================
// Criteria Persistence Tests
// ============================================

func TestEngine_CriteriaRoundTrip(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	category, sortKey := "2", SortPriceDesc
	_, err := engine.SetCriteria(ctx, CriteriaPatch{CategoryID: &category, Sort: &sortKey})
	require.NoError(t, err)

	fresh, err := NewEngine(store, paging.DefaultPageSize)
	require.NoError(t, err)
	require.NoError(t, fresh.Restore(ctx))

	assert.Equal(t, engine.Criteria(), fresh.Criteria())
}

func TestEngine_Restore_CorruptCriteriaKeepsDefaults(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, storage.KeyFilterCriteria, []byte("not json")))

	engine, err := NewEngine(store, paging.DefaultPageSize)
	require.NoError(t, err)
	require.NoError(t, engine.Restore(ctx))

	assert.Equal(t, DefaultCriteria(), engine.Criteria())
}
