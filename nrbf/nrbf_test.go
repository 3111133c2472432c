package nrbf

import (
	"bytes"
	"testing"

	"github.com/robert-malhotra/go-nrbf/internal/binary"
	"github.com/robert-malhotra/go-nrbf/internal/record"
)

// headerSize is the encoded size of the stream header record.
const headerSize = 17

// stream writes raw records for decoder tests.
type stream struct {
	t   *testing.T
	buf bytes.Buffer
	w   *binary.Writer
}

func newStream(t *testing.T, root int32) *stream {
	t.Helper()
	s := &stream{t: t}
	s.w = binary.NewWriter(&s.buf)
	return s.rec(&record.Header{RootID: root, HeaderID: -1, MajorVersion: 1})
}

func (s *stream) rec(r record.Record) *stream {
	s.t.Helper()
	if err := r.Serialize(s.w); err != nil {
		s.t.Fatalf("serialize %v: %v", r.Tag(), err)
	}
	return s
}

func (s *stream) end() []byte {
	s.rec(&record.MessageEnd{})
	return s.buf.Bytes()
}

func mustEncode(t *testing.T, g *Graph, opts ...Option) []byte {
	t.Helper()
	data, err := Encode(g, opts...)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return data
}

func mustDecode(t *testing.T, data []byte, opts ...Option) *Graph {
	t.Helper()
	g, err := Decode(data, opts...)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return g
}

// personGraph builds a small graph exercising shared strings, a cycle,
// repeated class layouts and arrays with null runs.
func personGraph() *Graph {
	g := NewGraph()
	const lib = "People, Version=1.0.0.0, Culture=neutral, PublicKeyToken=null"
	person := func(name, friend Value) *ClassNode {
		return &ClassNode{
			Name:    "People.Person",
			Library: lib,
			Members: []Member{
				{Name: "name", Type: StringType, Value: name},
				{Name: "age", Type: PrimitiveTypeOf(Int32), Value: Prim(NewInt32(41))},
				{Name: "friend", Type: ClassType("People.Person", lib), Value: friend},
				{Name: "tag", Type: ObjectType, Value: Prim(NewDouble(2.5))},
			},
		}
	}
	alice := g.Add(&StringNode{Value: "alice"})
	bob := g.Add(&StringNode{Value: "bob"})
	a := g.Add(person(Ref(alice), Null()))
	b := g.Add(person(Ref(bob), Ref(a)))
	g.nodes[a].(*ClassNode).Members[2].Value = Ref(b)

	people := g.Add(&ArrayNode{
		Shape:       SingleShape(6),
		ElementType: ClassType("People.Person", lib),
		Elements:    []Value{Ref(a), Null(), Null(), Null(), Ref(b), Null()},
	})
	scores := g.Add(&ArrayNode{
		Shape:       SingleShape(3),
		ElementType: PrimitiveTypeOf(Int64),
		Elements:    []Value{Prim(NewInt64(-1)), Prim(NewInt64(0)), Prim(NewInt64(1 << 40))},
	})
	names := g.Add(&ArrayNode{
		Shape:       SingleShape(3),
		ElementType: StringType,
		Elements:    []Value{Ref(alice), Null(), Ref(bob)},
	})
	g.Root = g.Add(&ClassNode{
		Name: "People.Directory",
		Members: []Member{
			{Name: "people", Type: ObjectType, Value: Ref(people)},
			{Name: "scores", Type: PrimitiveArrayTypeOf(Int64), Value: Ref(scores)},
			{Name: "names", Type: StringArrayType, Value: Ref(names)},
			{Name: "owner", Type: ObjectType, Value: Ref(a)},
		},
	})
	return g
}
