package timeout

import (
	"github.com/jazz-lang/jlight/internal/process"
)

// entry is one min-heap slot: a suspended process and the Timeout it
// is waiting against. idx tracks its position for container/heap's
// Remove, letting NotifyExpired drop a specific entry in O(log n)
// instead of a linear scan.
type entry struct {
	timeout *process.Timeout
	proc    *process.Process
	idx     int
}

// entryHeap implements container/heap.Interface, ordered by deadline.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	return h[i].timeout.Deadline.Before(h[j].timeout.Deadline)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].idx = i
	h[j].idx = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.idx = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.idx = -1
	*h = old[:n-1]
	return e
}
