package nrbf

import (
	"fmt"
	"math"
	"slices"

	"github.com/robert-malhotra/go-nrbf/internal/array"
	"github.com/robert-malhotra/go-nrbf/internal/primitive"
	"github.com/robert-malhotra/go-nrbf/internal/typeinfo"
)

// Handle identifies a node within one Graph. Decoded graphs keep the object
// ids of the stream; encoding renumbers them.
type Handle int32

// Primitive is a typed primitive value.
type Primitive = primitive.Value

// PrimitiveType is the PrimitiveTypeEnumeration.
type PrimitiveType = primitive.Type

const (
	Boolean  = primitive.Boolean
	Byte     = primitive.Byte
	Char     = primitive.Char
	Decimal  = primitive.Decimal
	Double   = primitive.Double
	Int16    = primitive.Int16
	Int32    = primitive.Int32
	Int64    = primitive.Int64
	SByte    = primitive.SByte
	Single   = primitive.Single
	TimeSpan = primitive.TimeSpan
	DateTime = primitive.DateTime
	UInt16   = primitive.UInt16
	UInt32   = primitive.UInt32
	UInt64   = primitive.UInt64
)

// DateTimeValue is the raw DateTime payload.
type DateTimeValue = primitive.DateTimeValue

// Primitive constructors.
var (
	NewBool     = primitive.NewBool
	NewByte     = primitive.NewByte
	NewSByte    = primitive.NewSByte
	NewInt16    = primitive.NewInt16
	NewInt32    = primitive.NewInt32
	NewInt64    = primitive.NewInt64
	NewUInt16   = primitive.NewUInt16
	NewUInt32   = primitive.NewUInt32
	NewUInt64   = primitive.NewUInt64
	NewChar     = primitive.NewChar
	NewSingle   = primitive.NewSingle
	NewDouble   = primitive.NewDouble
	NewTimeSpan = primitive.NewTimeSpan
	NewDateTime = primitive.NewDateTime
	NewDecimal  = primitive.NewDecimal
)

// Shape describes array dimensions and lower bounds.
type Shape = array.Shape

// ArrayType is the BinaryArrayTypeEnumeration.
type ArrayType = array.Type

const (
	ArraySingle            = array.Single
	ArrayJagged            = array.Jagged
	ArrayRectangular       = array.Rectangular
	ArraySingleOffset      = array.SingleOffset
	ArrayJaggedOffset      = array.JaggedOffset
	ArrayRectangularOffset = array.RectangularOffset
)

// Shape constructors.
var (
	SingleShape      = array.NewSingle
	JaggedShape      = array.NewJagged
	RectangularShape = array.NewRectangular
)

// TypeKind is the BinaryTypeEnumeration.
type TypeKind = typeinfo.Kind

const (
	KindPrimitive      = typeinfo.Primitive
	KindString         = typeinfo.String
	KindObject         = typeinfo.Object
	KindSystemClass    = typeinfo.SystemClass
	KindClass          = typeinfo.Class
	KindObjectArray    = typeinfo.ObjectArray
	KindStringArray    = typeinfo.StringArray
	KindPrimitiveArray = typeinfo.PrimitiveArray
)

// TypeDescriptor is the declared type of a member or array element. Class
// types name their library by its full name rather than the stream-local
// library id.
type TypeDescriptor struct {
	Kind      TypeKind
	Primitive PrimitiveType // KindPrimitive and KindPrimitiveArray
	ClassName string        // KindSystemClass and KindClass
	Library   string        // KindClass
}

var (
	StringType      = TypeDescriptor{Kind: KindString}
	ObjectType      = TypeDescriptor{Kind: KindObject}
	ObjectArrayType = TypeDescriptor{Kind: KindObjectArray}
	StringArrayType = TypeDescriptor{Kind: KindStringArray}
)

func PrimitiveTypeOf(t PrimitiveType) TypeDescriptor {
	return TypeDescriptor{Kind: KindPrimitive, Primitive: t}
}

func PrimitiveArrayTypeOf(t PrimitiveType) TypeDescriptor {
	return TypeDescriptor{Kind: KindPrimitiveArray, Primitive: t}
}

func SystemClassType(name string) TypeDescriptor {
	return TypeDescriptor{Kind: KindSystemClass, ClassName: name}
}

func ClassType(name, library string) TypeDescriptor {
	return TypeDescriptor{Kind: KindClass, ClassName: name, Library: library}
}

// IsArray reports whether t names an array type.
func (t TypeDescriptor) IsArray() bool {
	return t.Kind == KindObjectArray || t.Kind == KindStringArray || t.Kind == KindPrimitiveArray
}

// IsClass reports whether t names a class type.
func (t TypeDescriptor) IsClass() bool {
	return t.Kind == KindSystemClass || t.Kind == KindClass
}

func (t TypeDescriptor) String() string {
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive.String()
	case KindPrimitiveArray:
		return t.Primitive.String() + "[]"
	case KindSystemClass:
		return t.ClassName
	case KindClass:
		return t.ClassName + ", " + t.Library
	default:
		return t.Kind.String()
	}
}

// ValueKind says what a Value holds.
type ValueKind uint8

const (
	NullValue ValueKind = iota
	PrimitiveValue
	RefValue
)

// Value is a member or element value: null, an inline primitive, or a
// reference to another node of the same graph.
type Value struct {
	Kind      ValueKind
	Primitive Primitive
	Ref       Handle
}

func Null() Value                  { return Value{} }
func Prim(p Primitive) Value       { return Value{Kind: PrimitiveValue, Primitive: p} }
func Ref(h Handle) Value           { return Value{Kind: RefValue, Ref: h} }
func (v Value) IsNull() bool       { return v.Kind == NullValue }
func (v Value) Equal(o Value) bool { return v == o }

func (v Value) String() string {
	switch v.Kind {
	case PrimitiveValue:
		return v.Primitive.String()
	case RefValue:
		return fmt.Sprintf("@%d", v.Ref)
	default:
		return "null"
	}
}

// Node is one object of the graph: *ClassNode, *StringNode or *ArrayNode.
type Node interface {
	node()
}

// Member is one named class member.
type Member struct {
	Name  string
	Type  TypeDescriptor
	Value Value
}

// ClassNode is a class instance. An empty Library means the system library.
type ClassNode struct {
	Name    string
	Library string
	Members []Member
}

// Member returns the member with the given name.
func (c *ClassNode) Member(name string) (Member, bool) {
	for _, m := range c.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// StringNode is a string object. Strings are nodes so that they can be
// shared by reference.
type StringNode struct {
	Value string
}

// ArrayNode is an array; Elements are stored flat in row-major order.
type ArrayNode struct {
	Shape       Shape
	ElementType TypeDescriptor
	Elements    []Value
}

// At returns the element at the declared (bound-offset) indices.
func (a *ArrayNode) At(indices ...int64) (Value, error) {
	pos, err := a.Shape.Flatten(indices...)
	if err != nil {
		return Value{}, err
	}
	if pos >= int64(len(a.Elements)) {
		return Value{}, fmt.Errorf("array holds %d elements, shape needs %d", len(a.Elements), pos+1)
	}
	return a.Elements[pos], nil
}

func (*ClassNode) node()  {}
func (*StringNode) node() {}
func (*ArrayNode) node()  {}

// Graph is an arena of nodes keyed by handle. It is inert data: decoding
// never instantiates types or runs code named by the stream.
type Graph struct {
	Root     Handle
	HeaderID int32

	// Trailing is the number of bytes found after MessageEnd when the
	// graph was decoded.
	Trailing int64

	nodes map[Handle]Node
	order []Handle
}

// NewGraph returns an empty graph with the header id .NET writers use.
func NewGraph() *Graph {
	return &Graph{HeaderID: -1, nodes: make(map[Handle]Node)}
}

// Put stores n under handle h.
func (g *Graph) Put(h Handle, n Node) error {
	if n == nil {
		return fmt.Errorf("nil node for handle %d", h)
	}
	if h == 0 {
		return fmt.Errorf("handle 0 is reserved")
	}
	if g.nodes == nil {
		g.nodes = make(map[Handle]Node)
	}
	if _, dup := g.nodes[h]; dup {
		return fmt.Errorf("%w: %d", ErrHandleAlreadyDefined, h)
	}
	g.nodes[h] = n
	g.order = append(g.order, h)
	return nil
}

// Add stores n under a free handle and returns it: one past the highest
// handle in use, or the lowest free positive handle when that would be 0
// or overflow. Add panics if n is nil.
func (g *Graph) Add(n Node) Handle {
	h := Handle(1)
	if len(g.order) > 0 {
		if m := slices.Max(g.order); m >= 1 && m < math.MaxInt32 {
			h = m + 1
		}
	}
	for {
		if _, used := g.nodes[h]; !used {
			break
		}
		h++
	}
	if err := g.Put(h, n); err != nil {
		panic(err)
	}
	return h
}

// Node returns the node stored under h.
func (g *Graph) Node(h Handle) (Node, bool) {
	n, ok := g.nodes[h]
	return n, ok
}

// RootNode returns the root node.
func (g *Graph) RootNode() (Node, bool) {
	return g.Node(g.Root)
}

// Handles returns every handle in insertion (for decoded graphs, stream)
// order.
func (g *Graph) Handles() []Handle {
	return slices.Clone(g.order)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}
