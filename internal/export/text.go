package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-nrbf/nrbf"
)

// Text writes g as an indented tree rooted at g.Root. A node already
// written is shown as "@n ^" instead of being expanded again, so shared
// nodes and cycles print once. Consecutive nulls in an array collapse
// into one line.
func Text(w io.Writer, g *nrbf.Graph) error {
	type item struct {
		depth int
		label string
		v     nrbf.Value
	}
	seen := make(map[nrbf.Handle]bool)
	stack := []item{{v: nrbf.Ref(g.Root)}}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var b strings.Builder
		b.WriteString(strings.Repeat("  ", it.depth))
		if it.label != "" {
			b.WriteString(it.label)
			b.WriteString(": ")
		}

		var children []child
		switch it.v.Kind {
		case nrbf.NullValue:
			b.WriteString("null")
		case nrbf.PrimitiveValue:
			fmt.Fprintf(&b, "%s (%s)", it.v.Primitive, it.v.Primitive.Type)
		case nrbf.RefValue:
			h := it.v.Ref
			fmt.Fprintf(&b, "@%d ", h)
			n, ok := g.Node(h)
			switch n := n.(type) {
			case *nrbf.StringNode:
				b.WriteString(strconv.Quote(n.Value))
			case *nrbf.ClassNode, *nrbf.ArrayNode:
				if seen[h] {
					b.WriteString("^")
					break
				}
				seen[h] = true
				b.WriteString(describe(n))
				children = expand(n)
			default:
				if !ok {
					b.WriteString("<missing>")
				}
			}
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}

		for i := len(children) - 1; i >= 0; i-- {
			c := children[i]
			stack = append(stack, item{depth: it.depth + 1, label: c.label, v: c.v})
		}
	}
	return nil
}

type child struct {
	label string
	v     nrbf.Value
}

func describe(n nrbf.Node) string {
	switch n := n.(type) {
	case *nrbf.ClassNode:
		if n.Library == "" {
			return n.Name
		}
		return n.Name + " [" + n.Library + "]"
	case *nrbf.ArrayNode:
		return fmt.Sprintf("%s of %s", n.Shape, n.ElementType)
	}
	return ""
}

func expand(n nrbf.Node) []child {
	switch n := n.(type) {
	case *nrbf.ClassNode:
		out := make([]child, len(n.Members))
		for i, m := range n.Members {
			out[i] = child{label: m.Name, v: m.Value}
		}
		return out
	case *nrbf.ArrayNode:
		var out []child
		for i := 0; i < len(n.Elements); {
			j := i + 1
			if n.Elements[i].IsNull() {
				for j < len(n.Elements) && n.Elements[j].IsNull() {
					j++
				}
			}
			label := index(n.Shape, int64(i))
			if j-i > 1 {
				label += ".." + index(n.Shape, int64(j-1))
			}
			out = append(out, child{label: label, v: n.Elements[i]})
			i = j
		}
		return out
	}
	return nil
}

func index(s nrbf.Shape, pos int64) string {
	idx, err := s.Unflatten(pos)
	if err != nil {
		return "[" + strconv.FormatInt(pos, 10) + "]"
	}
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
