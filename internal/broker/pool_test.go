package broker

import "testing"

func TestPoolAddAndAt(t *testing.T) {
	p := &Pool{}
	a := &Connection{RemoteName: "a"}
	b := &Connection{RemoteName: "b"}
	p.Add(a)
	p.Add(b)

	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
	if p.At(0) != a || p.At(1) != b {
		t.Fatalf("pool order not preserved after Add")
	}
}

func TestPoolRemoveSwapMovesLastEntry(t *testing.T) {
	p := &Pool{}
	a := &Connection{RemoteName: "a"}
	b := &Connection{RemoteName: "b"}
	c := &Connection{RemoteName: "c"}
	p.Add(a)
	p.Add(b)
	p.Add(c)

	removed := p.RemoveSwap(0)
	if removed != a {
		t.Fatalf("RemoveSwap(0) returned %v, want a", removed)
	}
	if p.Len() != 2 {
		t.Fatalf("Len() after removal = %d, want 2", p.Len())
	}
	if p.At(0) != c {
		t.Fatalf("At(0) = %v, want c to have swapped into the vacated slot", p.At(0))
	}
	if p.At(1) != b {
		t.Fatalf("At(1) = %v, want b unchanged", p.At(1))
	}
}

func TestPoolRemoveSwapLastEntry(t *testing.T) {
	p := &Pool{}
	a := &Connection{RemoteName: "a"}
	p.Add(a)

	removed := p.RemoveSwap(0)
	if removed != a {
		t.Fatalf("RemoveSwap(0) returned %v, want a", removed)
	}
	if p.Len() != 0 {
		t.Fatalf("Len() after removing the only entry = %d, want 0", p.Len())
	}
}

func TestPoolAllReflectsCurrentOrder(t *testing.T) {
	p := &Pool{}
	a := &Connection{RemoteName: "a"}
	b := &Connection{RemoteName: "b"}
	p.Add(a)
	p.Add(b)

	all := p.All()
	if len(all) != 2 || all[0] != a || all[1] != b {
		t.Fatalf("All() = %v, want [a b]", all)
	}
}
