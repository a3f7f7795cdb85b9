package permanent

import (
	"testing"

	"github.com/jazz-lang/jlight/internal/cell"
)

func TestAllocateInternsAndResolves(t *testing.T) {
	table := cell.NewTable()
	space := New(table, 1<<20)

	proto, protoVal := space.Allocate(cell.Variant{Kind: cell.KindNone}, nil)
	child, childVal := space.Allocate(cell.Variant{Kind: cell.KindNumber, Number: 7}, proto)

	if got := table.Resolve(protoVal); got != proto {
		t.Fatalf("table did not resolve the permanent prototype cell back to itself")
	}
	if got := table.Resolve(childVal); got != child {
		t.Fatalf("table did not resolve the permanent child cell back to itself")
	}
	if child.Prototype != proto {
		t.Fatalf("child cell's prototype was not wired to proto")
	}
	if !child.Permanent {
		t.Fatalf("expected Allocate to mark the cell Permanent")
	}
}

func TestNeedsGrowTracksSizeLimit(t *testing.T) {
	table := cell.NewTable()
	space := New(table, approxCellSize) // room for exactly one cell

	if space.NeedsGrow() {
		t.Fatalf("fresh space should not need to grow")
	}
	space.Allocate(cell.Variant{Kind: cell.KindNone}, nil)
	space.Allocate(cell.Variant{Kind: cell.KindNone}, nil)
	if !space.NeedsGrow() {
		t.Fatalf("expected NeedsGrow to report true once BytesUsed exceeds SizeLimit")
	}
}
