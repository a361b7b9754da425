package tileid

import (
	"math/rand"
	"testing"
)

func TestChildrenZoomAndOrder(t *testing.T) {
	p := ID{Zoom: 4, X: 3, Y: 5, Scheme: SlippyMap}
	children := p.Children()

	want := [4]ID{
		{Zoom: 5, X: 6, Y: 10, Scheme: SlippyMap},
		{Zoom: 5, X: 7, Y: 10, Scheme: SlippyMap},
		{Zoom: 5, X: 6, Y: 11, Scheme: SlippyMap},
		{Zoom: 5, X: 7, Y: 11, Scheme: SlippyMap},
	}
	if children != want {
		t.Fatalf("Children() = %+v, want %+v", children, want)
	}
	for _, c := range children {
		if c.Parent() != p {
			t.Errorf("Parent() of child %v = %v, want %v", c, c.Parent(), p)
		}
	}
}

func TestIsAncestorOf(t *testing.T) {
	root := ID{Zoom: 0, X: 0, Y: 0}
	leaf := ID{Zoom: 10, X: 512, Y: 300}
	if !root.IsAncestorOf(leaf) {
		t.Fatal("expected root to be an ancestor of every tile")
	}
	if leaf.IsAncestorOf(root) {
		t.Fatal("a deeper tile cannot be an ancestor of a shallower one")
	}
	sibling := ID{Zoom: 10, X: 513, Y: 301}
	if root.Children()[0].IsAncestorOf(sibling) {
		t.Fatal("unrelated branches must not report ancestry")
	}
}

// TestPackUnpackRoundTrip is law L1: unpack(pack(id)) == id for zoom <= 20
// and valid coordinates.
func TestPackUnpackRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		zoom := uint8(rng.Intn(21))
		n := uint32(1) << zoom
		id := ID{
			Zoom:   zoom,
			X:      rng.Uint32() % n,
			Y:      rng.Uint32() % n,
			Scheme: Scheme(rng.Intn(2)),
		}
		got := Unpack(id.Pack())
		if got != id {
			t.Fatalf("round-trip mismatch: %+v -> %d -> %+v", id, id.Pack(), got)
		}
	}
}

func TestLess(t *testing.T) {
	a := ID{Zoom: 1, X: 0, Y: 0}
	b := ID{Zoom: 2, X: 0, Y: 0}
	if !a.Less(b) {
		t.Fatal("shallower zoom should sort first")
	}
	c := ID{Zoom: 1, X: 1, Y: 0}
	if !a.Less(c) {
		t.Fatal("lower x at the same zoom should sort first")
	}
}

func TestValid(t *testing.T) {
	if !(ID{Zoom: 3, X: 7, Y: 7}).Valid() {
		t.Fatal("(7,7) should be valid at zoom 3 (max index 7)")
	}
	if (ID{Zoom: 3, X: 8, Y: 0}).Valid() {
		t.Fatal("x=8 is out of range at zoom 3")
	}
}
