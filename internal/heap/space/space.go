// Package space implements the bump-allocated Page/Space primitive
// described in spec.md §4.2: a Space is an ordered list of Pages;
// allocation within a page is a bump pointer; when no page has room a
// fresh page is committed.
package space

// DefaultPageSize is the minimum size of a freshly committed page.
const DefaultPageSize = 32 * 1024

// Page is a contiguous byte region with a bump pointer.
type Page struct {
	data  []byte
	top   int
	limit int
}

// NewPage allocates a page of at least size bytes.
func NewPage(size int) *Page {
	if size < DefaultPageSize {
		size = DefaultPageSize
	}
	return &Page{data: make([]byte, size), top: 0, limit: size}
}

// Remaining reports free bytes in the page.
func (p *Page) Remaining() int { return p.limit - p.top }

// Size reports the page's total capacity.
func (p *Page) Size() int { return p.limit }

// bumpAlloc rounds size up to an even number of bytes and advances
// top if there's room, returning the slice and ok.
func (p *Page) bumpAlloc(size int) ([]byte, bool) {
	if size%2 != 0 {
		size++
	}
	if p.top+size > p.limit {
		return nil, false
	}
	start := p.top
	p.top += size
	return p.data[start:p.top], true
}

// Space is an ordered list of pages; allocation walks pages in
// reverse looking for room before committing a new one.
type Space struct {
	pages   []*Page
	needsGC bool
}

// NewSpace constructs an empty space.
func NewSpace() *Space {
	return &Space{}
}

// Alloc returns a size-byte slice from the space, committing a new
// page if none has room. NeedsGC is set whenever a new page had to be
// committed, matching spec.md §4.2's allocator contract.
func (s *Space) Alloc(size int) []byte {
	for i := len(s.pages) - 1; i >= 0; i-- {
		if b, ok := s.pages[i].bumpAlloc(size); ok {
			return b
		}
	}
	pageSize := DefaultPageSize
	if size > pageSize {
		pageSize = size
	}
	p := NewPage(pageSize)
	s.pages = append(s.pages, p)
	s.needsGC = true
	b, ok := p.bumpAlloc(size)
	if !ok {
		// size alone exceeded the freshly sized page; should not
		// happen given pageSize computed above, but guard anyway.
		panic("space: allocation larger than committed page")
	}
	return b
}

// NeedsGC reports the needs-gc flag without clearing it; see ClearNeedsGC.
func (s *Space) NeedsGC() bool { return s.needsGC }

// ClearNeedsGC resets the flag after a collection has run.
func (s *Space) ClearNeedsGC() { s.needsGC = false }

// PageCount reports how many pages are currently committed.
func (s *Space) PageCount() int { return len(s.pages) }

// Reset drops every page, used when a fresh space T replaces the
// current one after a copying collection.
func (s *Space) Reset() {
	s.pages = nil
	s.needsGC = false
}

// BytesUsed sums the bump pointers across all pages.
func (s *Space) BytesUsed() int {
	total := 0
	for _, p := range s.pages {
		total += p.top
	}
	return total
}

// BytesCapacity sums page capacities across all pages.
func (s *Space) BytesCapacity() int {
	total := 0
	for _, p := range s.pages {
		total += p.limit
	}
	return total
}
