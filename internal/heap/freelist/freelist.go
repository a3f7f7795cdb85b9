// Package freelist implements the size-binned free-list allocator
// used by the sweep path of the incremental collector: a vector of
// bins indexed by size class (power-of-two buckets up to a small-class
// cutoff, then a single large bin sorted by address), coalescing
// adjacent right neighbors on insertion.
package freelist

import "sort"

// smallClassCutoff is the largest size class kept in a dedicated
// power-of-two bin; chunks at or above this go into the large bin.
const smallClassCutoff = 1 << 12 // 4096 bytes

// chunk is one free region, identified by its starting address
// (a logical offset into the owning space, not a real pointer — the
// byte-arena model is an accounting device, see DESIGN.md) and size.
type chunk struct {
	addr uintptr
	size int
}

// FreeList holds the size-class bins plus one address-sorted large
// bin.
type FreeList struct {
	bins     map[int][]chunk // size class -> chunks of exactly that class
	large    []chunk         // size >= smallClassCutoff, sorted by addr
}

// New constructs an empty free-list.
func New() *FreeList {
	return &FreeList{bins: make(map[int][]chunk)}
}

// sizeClass rounds size up to the next power of two, capping at
// smallClassCutoff (anything larger is not classed).
func sizeClass(size int) int {
	c := 8
	for c < size && c < smallClassCutoff {
		c <<= 1
	}
	return c
}

// Add inserts a free chunk, coalescing with an adjacent right
// neighbor in the large bin if one is found (small bins are exact
// size classes and are not coalesced across, matching the original's
// bucket-then-large-bin design).
func (f *FreeList) Add(addr uintptr, size int) {
	if size <= 0 {
		return
	}
	if size < smallClassCutoff {
		c := sizeClass(size)
		f.bins[c] = append(f.bins[c], chunk{addr: addr, size: size})
		return
	}
	// Coalesce with an adjacent right neighbor in the large bin.
	for i, ch := range f.large {
		if ch.addr == addr+uintptr(size) {
			f.large[i] = chunk{addr: addr, size: size + ch.size}
			f.sortLarge()
			return
		}
	}
	f.large = append(f.large, chunk{addr: addr, size: size})
	f.sortLarge()
}

func (f *FreeList) sortLarge() {
	sort.Slice(f.large, func(i, j int) bool { return f.large[i].addr < f.large[j].addr })
}

// Alloc returns the address of the first chunk >= size, re-inserting
// any remainder. ok is false if no chunk was large enough.
func (f *FreeList) Alloc(size int) (addr uintptr, ok bool) {
	if size < smallClassCutoff {
		for c := sizeClass(size); c <= smallClassCutoff; c <<= 1 {
			bin := f.bins[c]
			for j := len(bin) - 1; j >= 0; j-- {
				ch := bin[j]
				if ch.size < size {
					continue
				}
				f.bins[c] = append(bin[:j], bin[j+1:]...)
				if rem := ch.size - size; rem > 0 {
					f.Add(ch.addr+uintptr(size), rem)
				}
				return ch.addr, true
			}
		}
		// Fall through to the large bin: a small request may still be
		// satisfied by splitting a large chunk.
	}
	for i, ch := range f.large {
		if ch.size >= size {
			f.large = append(f.large[:i], f.large[i+1:]...)
			if rem := ch.size - size; rem > 0 {
				f.Add(ch.addr+uintptr(size), rem)
			}
			return ch.addr, true
		}
	}
	return 0, false
}

// Fragmentation estimates free-list fragmentation as 1 minus the
// ratio of the largest single chunk to total free bytes — the
// standard proxy used to decide between sweeping and mark-compact in
// the incremental collector.
func (f *FreeList) Fragmentation() float64 {
	total := 0
	largest := 0
	for _, bin := range f.bins {
		for _, ch := range bin {
			total += ch.size
			if ch.size > largest {
				largest = ch.size
			}
		}
	}
	for _, ch := range f.large {
		total += ch.size
		if ch.size > largest {
			largest = ch.size
		}
	}
	if total == 0 {
		return 0
	}
	return 1 - float64(largest)/float64(total)
}

// TotalFree sums free bytes across every bin.
func (f *FreeList) TotalFree() int {
	total := 0
	for _, bin := range f.bins {
		for _, ch := range bin {
			total += ch.size
		}
	}
	for _, ch := range f.large {
		total += ch.size
	}
	return total
}

// Reset empties the free-list, used when a major collection replaces
// it with a compacting bump pointer.
func (f *FreeList) Reset() {
	f.bins = make(map[int][]chunk)
	f.large = nil
}
