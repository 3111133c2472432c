package nrbf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRoundTrip(t *testing.T) {
	g := personGraph()
	data := mustEncode(t, g)
	got := mustDecode(t, data)

	if err := Isomorphic(g, got); err != nil {
		t.Fatalf("decoded graph differs: %v", err)
	}
	again := mustEncode(t, got)
	if !bytes.Equal(data, again) {
		t.Errorf("re-encoding changed the stream:\nfirst  %x\nsecond %x", data, again)
	}
}

func TestEncodeRecordLayout(t *testing.T) {
	d, err := NewDecoder()
	if err != nil {
		t.Fatal(err)
	}
	sums, err := d.Records(mustEncode(t, personGraph()))
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	type entry struct {
		Tag string
		ID  int32
	}
	got := make([]entry, len(sums))
	for i, s := range sums {
		got[i] = entry{s.Tag, s.ID}
	}
	// Handles follow depth-first first-encounter order from the root;
	// the library id follows the last object id.
	want := []entry{
		{"SerializedStreamHeader", 1},
		{"SystemClassWithMembersAndTypes", 1},
		{"BinaryLibrary", 9},
		{"BinaryArray", 2},
		{"ClassWithMembersAndTypes", 3},
		{"BinaryObjectString", 4},
		{"ClassWithId", 5},
		{"BinaryObjectString", 6},
		{"ArraySinglePrimitive", 7},
		{"ArraySingleString", 8},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record layout mismatch (-want +got):\n%s", diff)
	}
	if sums[6].Detail != "metadata=3" {
		t.Errorf("ClassWithId detail = %q", sums[6].Detail)
	}
}

func TestEncodeRenumbersHandles(t *testing.T) {
	g := NewGraph()
	if err := g.Put(40, &StringNode{Value: "leaf"}); err != nil {
		t.Fatal(err)
	}
	if err := g.Put(7, &ClassNode{
		Name:    "Box",
		Members: []Member{{Name: "v", Type: StringType, Value: Ref(40)}},
	}); err != nil {
		t.Fatal(err)
	}
	// Unreachable from the root; not encoded.
	g.Add(&StringNode{Value: "orphan"})
	g.Root = 7

	out := mustDecode(t, mustEncode(t, g))
	if out.Root != 1 {
		t.Errorf("root = %d, want 1", out.Root)
	}
	if diff := cmp.Diff([]Handle{1, 2}, out.Handles()); diff != "" {
		t.Errorf("handles mismatch (-want +got):\n%s", diff)
	}
	if err := Isomorphic(g, out); err != nil {
		t.Error(err)
	}
}

func TestEncodeSelfCycle(t *testing.T) {
	g := NewGraph()
	g.Root = g.Add(&ClassNode{Name: "Loop", Members: []Member{{Name: "self", Type: ObjectType, Value: Ref(1)}}})

	out := mustDecode(t, mustEncode(t, g))
	root, ok := out.RootNode()
	if !ok {
		t.Fatal("no root")
	}
	if m, _ := root.(*ClassNode).Member("self"); m.Value != Ref(out.Root) {
		t.Errorf("self = %v, want @%d", m.Value, out.Root)
	}
}

func TestEncodeRectangularOffset(t *testing.T) {
	shape := Shape{Type: ArrayRectangularOffset, Lengths: []int32{2, 1, 3}, LowerBounds: []int32{1, 0, -2}}
	elems := make([]Value, 6)
	for i := range elems {
		elems[i] = Prim(NewInt32(int32(i * 10)))
	}
	g := NewGraph()
	g.Root = g.Add(&ArrayNode{Shape: shape, ElementType: PrimitiveTypeOf(Int32), Elements: elems})

	out := mustDecode(t, mustEncode(t, g))
	n, _ := out.RootNode()
	a := n.(*ArrayNode)
	if !a.Shape.Equal(shape) || a.Shape.Type != ArrayRectangularOffset {
		t.Fatalf("shape = %v, want %v", a.Shape, shape)
	}
	tests := []struct {
		idx  []int64
		want int32
	}{
		{[]int64{1, 0, -2}, 0},
		{[]int64{1, 0, 0}, 20},
		{[]int64{2, 0, -2}, 30},
		{[]int64{2, 0, 0}, 50},
	}
	for _, tt := range tests {
		v, err := a.At(tt.idx...)
		if err != nil {
			t.Errorf("At(%v): %v", tt.idx, err)
			continue
		}
		if v.Primitive.Int64() != int64(tt.want) {
			t.Errorf("At(%v) = %v, want %d", tt.idx, v, tt.want)
		}
	}
	if _, err := a.At(0, 0, 0); err == nil {
		t.Error("At below the lower bound succeeded")
	}
}

func TestEncodeZeroBoundsUsesPlainVariant(t *testing.T) {
	g := NewGraph()
	g.Root = g.Add(&ArrayNode{
		Shape:       Shape{Type: ArraySingleOffset, Lengths: []int32{2}, LowerBounds: []int32{0}},
		ElementType: ObjectType,
		Elements:    []Value{Null(), Null()},
	})
	d, _ := NewDecoder()
	sums, err := d.Records(mustEncode(t, g))
	if err != nil {
		t.Fatal(err)
	}
	if sums[1].Tag != "ArraySingleObject" {
		t.Errorf("tag = %s, want ArraySingleObject", sums[1].Tag)
	}
}

func TestEncodeErrors(t *testing.T) {
	str := func(g *Graph) Handle { return g.Add(&StringNode{Value: "s"}) }
	tests := []struct {
		name  string
		build func(g *Graph)
	}{
		{"missing root", func(g *Graph) { g.Root = 3 }},
		{"dangling reference", func(g *Graph) {
			g.Root = g.Add(&ClassNode{Name: "C", Members: []Member{{Name: "m", Type: ObjectType, Value: Ref(99)}}})
		}},
		{"primitive type mismatch", func(g *Graph) {
			g.Root = g.Add(&ClassNode{Name: "C", Members: []Member{{Name: "m", Type: PrimitiveTypeOf(Int32), Value: Prim(NewInt64(1))}}})
		}},
		{"null in primitive slot", func(g *Graph) {
			g.Root = g.Add(&ClassNode{Name: "C", Members: []Member{{Name: "m", Type: PrimitiveTypeOf(Int32), Value: Null()}}})
		}},
		{"primitive in string slot", func(g *Graph) {
			g.Root = g.Add(&ClassNode{Name: "C", Members: []Member{{Name: "m", Type: StringType, Value: Prim(NewInt32(1))}}})
		}},
		{"class in string slot", func(g *Graph) {
			inner := g.Add(&ClassNode{Name: "D"})
			g.Root = g.Add(&ClassNode{Name: "C", Members: []Member{{Name: "m", Type: StringType, Value: Ref(inner)}}})
		}},
		{"string in array slot", func(g *Graph) {
			s := str(g)
			g.Root = g.Add(&ClassNode{Name: "C", Members: []Member{{Name: "m", Type: StringArrayType, Value: Ref(s)}}})
		}},
		{"class type without library", func(g *Graph) {
			g.Root = g.Add(&ClassNode{Name: "C", Members: []Member{{Name: "m", Type: ClassType("D", ""), Value: Null()}}})
		}},
		{"zero primitive in object slot", func(g *Graph) {
			g.Root = g.Add(&ClassNode{Name: "C", Members: []Member{{Name: "m", Type: ObjectType, Value: Value{Kind: PrimitiveValue}}}})
		}},
		{"element count mismatch", func(g *Graph) {
			g.Root = g.Add(&ArrayNode{Shape: SingleShape(3), ElementType: ObjectType, Elements: []Value{Null()}})
		}},
		{"invalid shape", func(g *Graph) {
			g.Root = g.Add(&ArrayNode{Shape: RectangularShape(2), ElementType: ObjectType, Elements: []Value{Null(), Null()}})
		}},
		{"jagged array of scalars", func(g *Graph) {
			g.Root = g.Add(&ArrayNode{Shape: JaggedShape(1), ElementType: StringType, Elements: []Value{Null()}})
		}},
		{"nil node", func(g *Graph) {
			g.nodes[1] = (*ClassNode)(nil)
			g.order = append(g.order, 1)
			g.Root = 1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			tt.build(g)
			data, err := Encode(g)
			if err == nil {
				t.Fatalf("Encode succeeded with %d bytes", len(data))
			}
			if !errors.Is(err, ErrEncode) {
				t.Errorf("error %v does not match ErrEncode", err)
			}
			var ee *EncodeError
			if !errors.As(err, &ee) {
				t.Errorf("error %T is not *EncodeError", err)
			}
		})
	}
}

func TestEncodeNilGraph(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, ErrEncode) {
		t.Errorf("Encode(nil) error = %v", err)
	}
}

func TestEncodeLongNullRun(t *testing.T) {
	elems := make([]Value, 300)
	elems[299] = Prim(NewBool(true))
	g := NewGraph()
	g.Root = g.Add(&ArrayNode{Shape: SingleShape(300), ElementType: ObjectType, Elements: elems})

	out := mustDecode(t, mustEncode(t, g))
	if err := Isomorphic(g, out); err != nil {
		t.Error(err)
	}
}

func TestEncodeTo(t *testing.T) {
	e, err := NewEncoder()
	if err != nil {
		t.Fatal(err)
	}
	g := NewGraph()
	g.Root = g.Add(&StringNode{Value: "hello"})

	var buf bytes.Buffer
	if err := e.EncodeTo(&buf, g); err != nil {
		t.Fatal(err)
	}
	want := mustEncode(t, g)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("EncodeTo wrote %x, want %x", buf.Bytes(), want)
	}
	if len(want) != headerSize+11+1 {
		t.Errorf("encoded %d bytes", len(want))
	}
}
