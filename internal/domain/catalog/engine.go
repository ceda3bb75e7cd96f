package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/example/storefront/internal/domain/paging"
	"github.com/example/storefront/internal/storage"
	"github.com/example/storefront/pkg/logger"
)

// Engine owns the product catalog and the active filter criteria, and
// derives the filtered, sorted, paged view. The view is recomputed on
// every catalog or criteria change and never persisted; the criteria
// are persisted so a restart restores the last filter.
type Engine struct {
	mu    sync.Mutex
	store storage.Adapter
	pager *paging.Pager

	catalog    []Product
	categories []Category
	criteria   Criteria
	view       []Product
}

func NewEngine(store storage.Adapter, pageSize int) (*Engine, error) {
	pager, err := paging.New(pageSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:    store,
		pager:    pager,
		criteria: DefaultCriteria(),
	}, nil
}

// Restore loads the last persisted criteria. Corrupt values are
// discarded and the defaults kept.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw, ok, err := e.store.Read(ctx, storage.KeyFilterCriteria)
	if err != nil {
		return fmt.Errorf("failed to read filter criteria: %w", err)
	}
	if !ok {
		return nil
	}

	var criteria Criteria
	if err := json.Unmarshal(raw, &criteria); err != nil {
		logger.Warn(ctx).
			Str("component", "catalog").
			Err(err).
			Msg("discarding corrupt persisted filter criteria")
		_ = e.store.Remove(ctx, storage.KeyFilterCriteria)
		return nil
	}

	e.criteria = criteria.normalize()
	e.recomputeLocked()
	return nil
}

// SetCatalog replaces the product list wholesale and recomputes the
// view against the current criteria. The page resets to 1: the
// underlying collection changed.
func (e *Engine) SetCatalog(products []Product) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.catalog = make([]Product, len(products))
	copy(e.catalog, products)
	e.recomputeLocked()
}

// SetCategories stores the category list for view consumers.
func (e *Engine) SetCategories(categories []Category) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.categories = make([]Category, len(categories))
	copy(e.categories, categories)
}

// Product looks a product up by id in the current catalog.
func (e *Engine) Product(id string) (Product, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range e.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (e *Engine) Categories() []Category {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Category, len(e.categories))
	copy(out, e.categories)
	return out
}

// SetCriteria merges the patch into the current criteria. Unspecified
// fields keep their prior value; the result is clamped, persisted, and
// the page resets to 1.
func (e *Engine) SetCriteria(ctx context.Context, patch CriteriaPatch) (Criteria, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.criteria.merge(patch)
	if err := e.persistCriteriaLocked(ctx, next); err != nil {
		return e.criteria, err
	}
	e.criteria = next
	e.recomputeLocked()
	return e.criteria, nil
}

// ClearCriteria resets the filter to its defaults.
func (e *Engine) ClearCriteria(ctx context.Context) (Criteria, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := DefaultCriteria()
	if err := e.persistCriteriaLocked(ctx, next); err != nil {
		return e.criteria, err
	}
	e.criteria = next
	e.recomputeLocked()
	return e.criteria, nil
}

func (e *Engine) Criteria() Criteria {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.criteria
}

// View returns the whole filtered, sorted product list.
func (e *Engine) View() []Product {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Product, len(e.view))
	copy(out, e.view)
	return out
}

// PageInfo describes the pagination of the current view.
type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	TotalItems int `json:"total_items"`
}

// Page returns the current page of the view.
func (e *Engine) Page() ([]Product, PageInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := paging.Slice(e.pager, e.view)
	out := make([]Product, len(items))
	copy(out, items)
	return out, e.pageInfoLocked()
}

// SetPage moves to page k, clamped into range.
func (e *Engine) SetPage(k int) PageInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pager.SetPage(k)
	return e.pageInfoLocked()
}

// SetPageSize changes the page size; the current page is preserved
// unless it falls out of range.
func (e *Engine) SetPageSize(n int) (PageInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.pager.SetPageSize(n); err != nil {
		return e.pageInfoLocked(), err
	}
	return e.pageInfoLocked(), nil
}

func (e *Engine) pageInfoLocked() PageInfo {
	return PageInfo{
		Page:       e.pager.Page(),
		PageSize:   e.pager.PageSize(),
		TotalPages: e.pager.TotalPages(),
		TotalItems: e.pager.ItemCount(),
	}
}

func (e *Engine) recomputeLocked() {
	e.view = ComputeView(e.catalog, e.criteria)
	e.pager.Reset(len(e.view))
}

func (e *Engine) persistCriteriaLocked(ctx context.Context, criteria Criteria) error {
	raw, err := json.Marshal(criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal filter criteria: %w", err)
	}
	if err := e.store.Write(ctx, storage.KeyFilterCriteria, raw); err != nil {
		return fmt.Errorf("failed to persist filter criteria: %w", err)
	}
	return nil
}

// ComputeView is the pure derivation of the filtered view: a product
// matches when every set constraint holds, and the result is ordered by
// the sort key with catalog order breaking ties. Recomputing with
// unchanged inputs yields an identical sequence.
func ComputeView(catalog []Product, criteria Criteria) []Product {
	view := make([]Product, 0, len(catalog))
	for _, p := range catalog {
		if matches(p, criteria) {
			view = append(view, p)
		}
	}

	switch criteria.Sort {
	case SortPriceAsc:
		sort.SliceStable(view, func(i, j int) bool { return view[i].Price < view[j].Price })
	case SortPriceDesc:
		sort.SliceStable(view, func(i, j int) bool { return view[i].Price > view[j].Price })
	case SortNewest:
		sort.SliceStable(view, func(i, j int) bool { return view[i].CreatedAt.After(view[j].CreatedAt) })
	default:
		c := collate.New(language.Und, collate.IgnoreCase)
		sort.SliceStable(view, func(i, j int) bool {
			return c.CompareString(view[i].Name, view[j].Name) < 0
		})
	}
	return view
}

func matches(p Product, c Criteria) bool {
	if c.CategoryID != "" && p.CategoryID != c.CategoryID {
		return false
	}
	if c.Search != "" {
		needle := strings.ToLower(c.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	if p.Price < c.MinPrice || p.Price > c.MaxPrice {
		return false
	}
	if c.InStockOnly && p.Stock <= 0 {
		return false
	}
	return true
}
