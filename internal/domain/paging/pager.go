package paging

import "errors"

// DefaultPageSize matches the storefront product grid.
const DefaultPageSize = 12

var ErrInvalidPageSize = errors.New("page size must be positive")

// Pager slices a collection into pages. It holds no items itself; the
// owning engine passes the current collection to Slice. The zero page is
// never observable: an empty collection is page 1 of 1.
//
// Pager is not safe for concurrent use; the owning state machine
// serializes access.
type Pager struct {
	pageSize  int
	page      int
	itemCount int
}

// New creates a pager on page 1. A non-positive page size is a contract
// violation, not a user input.
func New(pageSize int) (*Pager, error) {
	if pageSize <= 0 {
		return nil, ErrInvalidPageSize
	}
	return &Pager{pageSize: pageSize, page: 1}, nil
}

func (p *Pager) Page() int      { return p.page }
func (p *Pager) PageSize() int  { return p.pageSize }
func (p *Pager) ItemCount() int { return p.itemCount }

// TotalPages is always at least 1.
func (p *Pager) TotalPages() int {
	pages := (p.itemCount + p.pageSize - 1) / p.pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// SetPageSize changes the page size, preserving the current page unless
// it falls out of range, in which case it is clamped.
func (p *Pager) SetPageSize(n int) error {
	if n <= 0 {
		return ErrInvalidPageSize
	}
	p.pageSize = n
	p.clamp()
	return nil
}

// SetPage clamps k into [1, TotalPages].
func (p *Pager) SetPage(k int) {
	p.page = k
	p.clamp()
}

// SetItemCount records the size of the upstream collection and clamps
// the current page to the new range.
func (p *Pager) SetItemCount(n int) {
	if n < 0 {
		n = 0
	}
	p.itemCount = n
	p.clamp()
}

// Reset moves back to page 1. Called whenever the upstream filtered
// collection changes.
func (p *Pager) Reset(itemCount int) {
	p.page = 1
	p.SetItemCount(itemCount)
}

func (p *Pager) clamp() {
	if p.page < 1 {
		p.page = 1
	}
	if total := p.TotalPages(); p.page > total {
		p.page = total
	}
}

// Slice returns the current page of items. Pure: it does not mutate the
// pager or the input.
func Slice[T any](p *Pager, items []T) []T {
	start := (p.page - 1) * p.pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + p.pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
