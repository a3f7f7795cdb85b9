package incremental

import (
	"testing"

	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/value"
)

type fakeRoots struct{ roots []value.Value }

func (f *fakeRoots) ScanRoots(visit func(value.Value)) {
	for _, v := range f.roots {
		visit(v)
	}
}

func TestMarkSweepReclaimsUnreachable(t *testing.T) {
	table := cell.NewTable()
	col := New(table, 2)

	kept := cell.New(cell.Variant{Kind: cell.KindNone})
	keptHandle := col.Allocate(kept)

	for i := 0; i < 20; i++ {
		garbage := cell.New(cell.Variant{Kind: cell.KindNone})
		col.Allocate(garbage)
	}

	col.Minor(&fakeRoots{roots: []value.Value{keptHandle}})

	if len(col.cells) != 1 {
		t.Fatalf("expected 1 surviving cell, got %d", len(col.cells))
	}
	if table.Resolve(keptHandle) != kept {
		t.Fatal("rooted cell should still resolve")
	}
}

func TestWriteBarrierDemotesBlackParent(t *testing.T) {
	table := cell.NewTable()
	col := New(table, 2)

	parent := cell.New(cell.Variant{Kind: cell.KindNone})
	child := cell.New(cell.Variant{Kind: cell.KindNone})
	col.Allocate(parent)
	col.Allocate(child)

	col.setColor(parent, Black)
	col.setColor(child, White)

	col.WriteBarrier(parent, child)

	if col.colorOf(parent) != Grey {
		t.Fatalf("write barrier should demote a black parent referencing a white child to grey, got %v", col.colorOf(parent))
	}
}

func TestMarkCompactReducesFragmentation(t *testing.T) {
	table := cell.NewTable()
	col := New(table, 2)

	const n = 1000
	handles := make([]value.Value, 0, n/2)
	for i := 0; i < n; i++ {
		c := cell.New(cell.Variant{Kind: cell.KindNumber, Number: float64(i)})
		h := col.Allocate(c)
		if i%2 == 0 {
			handles = append(handles, h)
		}
	}

	roots := &fakeRoots{roots: handles}
	col.Minor(roots) // first pass frees every odd cell into the free-list

	if frag := col.Fragmentation(); frag <= FragmentationThreshold {
		t.Fatalf("expected fragmentation above threshold after freeing every other cell, got %v", frag)
	}

	col.Major(roots)

	if frag := col.Fragmentation(); frag > 0.05 {
		t.Fatalf("expected fragmentation near zero after compaction, got %v", frag)
	}

	for _, h := range handles {
		if table.Resolve(h) == nil {
			t.Fatal("a held reference failed to resolve after compaction")
		}
	}
}
