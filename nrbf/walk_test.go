package nrbf

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWalk(t *testing.T) {
	g := personGraph()
	depths := map[Handle]int{}
	err := g.Walk(func(h Handle, n Node, depth int) error {
		if _, dup := depths[h]; dup {
			t.Errorf("handle %d visited twice", h)
		}
		depths[h] = depth
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(depths) != g.Len() {
		t.Errorf("visited %d of %d nodes", len(depths), g.Len())
	}
	if depths[g.Root] != 0 {
		t.Errorf("root depth = %d", depths[g.Root])
	}
	// alice is handle 1: reached from the names array and from person a,
	// both one step below the root.
	if depths[1] != 2 {
		t.Errorf("depth of handle 1 = %d, want 2", depths[1])
	}
}

func TestWalkStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := personGraph().Walk(func(Handle, Node, int) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("err = %v after %d calls", err, calls)
	}
}

func TestReachable(t *testing.T) {
	g := NewGraph()
	leaf := g.Add(&StringNode{Value: "leaf"})
	g.Add(&StringNode{Value: "orphan"})
	g.Root = g.Add(&ArrayNode{Shape: SingleShape(2), ElementType: StringType, Elements: []Value{Ref(leaf), Ref(leaf)}})

	if diff := cmp.Diff([]Handle{g.Root, leaf}, g.Reachable()); diff != "" {
		t.Errorf("reachable mismatch (-want +got):\n%s", diff)
	}
}

func TestIsomorphic(t *testing.T) {
	pair := func(share bool) *Graph {
		g := NewGraph()
		a := g.Add(&StringNode{Value: "a"})
		b := a
		if !share {
			b = g.Add(&StringNode{Value: "a"})
		}
		g.Root = g.Add(&ArrayNode{Shape: SingleShape(2), ElementType: StringType, Elements: []Value{Ref(a), Ref(b)}})
		return g
	}
	if err := Isomorphic(pair(true), pair(true)); err != nil {
		t.Errorf("identical graphs: %v", err)
	}
	if err := Isomorphic(pair(true), pair(false)); err == nil {
		t.Error("shared and unshared strings compared equal")
	}
	if err := Isomorphic(pair(false), pair(true)); err == nil {
		t.Error("unshared and shared strings compared equal")
	}

	x, y := personGraph(), personGraph()
	y.nodes[3].(*ClassNode).Members[1].Value = Prim(NewInt32(42))
	if err := Isomorphic(x, y); err == nil {
		t.Error("differing member values compared equal")
	}
}
