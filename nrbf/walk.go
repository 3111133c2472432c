package nrbf

import "fmt"

// WalkFunc is called once per reachable node. depth is the length of the
// shortest reference path from the root. Returning a non-nil error stops
// the walk.
type WalkFunc func(h Handle, n Node, depth int) error

// Walk visits every node reachable from the root in breadth-first order.
// Shared nodes and cycles are visited once. References to missing handles
// are skipped.
func (g *Graph) Walk(fn WalkFunc) error {
	type item struct {
		h     Handle
		depth int
	}
	if _, ok := g.nodes[g.Root]; !ok {
		return nil
	}
	seen := map[Handle]bool{g.Root: true}
	queue := []item{{g.Root, 0}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		n := g.nodes[it.h]
		if err := fn(it.h, n, it.depth); err != nil {
			return err
		}
		for _, r := range children(n) {
			if seen[r] {
				continue
			}
			if _, ok := g.nodes[r]; !ok {
				continue
			}
			seen[r] = true
			queue = append(queue, item{r, it.depth + 1})
		}
	}
	return nil
}

// Reachable returns the handles reachable from the root in visit order.
func (g *Graph) Reachable() []Handle {
	var out []Handle
	_ = g.Walk(func(h Handle, _ Node, _ int) error {
		out = append(out, h)
		return nil
	})
	return out
}

// Isomorphic reports whether the parts of a and b reachable from their roots
// are the same graph up to handle renaming. The returned error describes the
// first difference found.
func Isomorphic(a, b *Graph) error {
	type pair struct{ a, b Handle }
	ab := map[Handle]Handle{a.Root: b.Root}
	ba := map[Handle]Handle{b.Root: a.Root}
	queue := []pair{{a.Root, b.Root}}

	match := func(x, y Handle) error {
		if m, ok := ab[x]; ok {
			if m != y {
				return fmt.Errorf("handle %d maps to both %d and %d", x, m, y)
			}
			return nil
		}
		if m, ok := ba[y]; ok {
			return fmt.Errorf("handle %d maps to both %d and %d", y, m, x)
		}
		ab[x], ba[y] = y, x
		queue = append(queue, pair{x, y})
		return nil
	}
	values := func(p pair, x, y Value) error {
		if x.Kind != y.Kind {
			return fmt.Errorf("node %d: %v vs %v", p.a, x, y)
		}
		switch x.Kind {
		case PrimitiveValue:
			if !x.Primitive.Equal(y.Primitive) {
				return fmt.Errorf("node %d: %v vs %v", p.a, x, y)
			}
		case RefValue:
			return match(x.Ref, y.Ref)
		}
		return nil
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		na, oka := a.nodes[p.a]
		nb, okb := b.nodes[p.b]
		if !oka || !okb {
			return fmt.Errorf("node %d/%d: missing", p.a, p.b)
		}
		switch x := na.(type) {
		case *StringNode:
			y, ok := nb.(*StringNode)
			if !ok || x.Value != y.Value {
				return fmt.Errorf("node %d: string differs", p.a)
			}
		case *ClassNode:
			y, ok := nb.(*ClassNode)
			if !ok || x.Name != y.Name || x.Library != y.Library || len(x.Members) != len(y.Members) {
				return fmt.Errorf("node %d: class differs", p.a)
			}
			for i, m := range x.Members {
				o := y.Members[i]
				if m.Name != o.Name || m.Type != o.Type {
					return fmt.Errorf("node %d: member %d differs", p.a, i)
				}
				if err := values(p, m.Value, o.Value); err != nil {
					return err
				}
			}
		case *ArrayNode:
			y, ok := nb.(*ArrayNode)
			if !ok || !x.Shape.Equal(y.Shape) || x.ElementType != y.ElementType || len(x.Elements) != len(y.Elements) {
				return fmt.Errorf("node %d: array differs", p.a)
			}
			for i := range x.Elements {
				if err := values(p, x.Elements[i], y.Elements[i]); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("node %d: unknown node %T", p.a, na)
		}
	}
	return nil
}
