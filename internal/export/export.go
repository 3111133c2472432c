// Package export renders decoded graphs as documents for inspection:
// JSON, YAML, deterministic CBOR and an indented text tree.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-nrbf/nrbf"
)

// Document is the inert, serializable form of a graph. Nodes appear in
// graph handle order.
type Document struct {
	Root     int32   `json:"root" yaml:"root"`
	HeaderID int32   `json:"headerId" yaml:"headerId"`
	Trailing int64   `json:"trailing,omitempty" yaml:"trailing,omitempty"`
	Nodes    []*Node `json:"nodes" yaml:"nodes"`
}

// Node is one graph node. Kind is "class", "string" or "array".
type Node struct {
	Handle int32  `json:"handle" yaml:"handle"`
	Kind   string `json:"kind" yaml:"kind"`

	Class   string    `json:"class,omitempty" yaml:"class,omitempty"`
	Library string    `json:"library,omitempty" yaml:"library,omitempty"`
	Members []*Member `json:"members,omitempty" yaml:"members,omitempty"`

	String *string `json:"string,omitempty" yaml:"string,omitempty"`

	Shape       *Shape   `json:"shape,omitempty" yaml:"shape,omitempty"`
	ElementType string   `json:"elementType,omitempty" yaml:"elementType,omitempty"`
	Elements    []*Value `json:"elements,omitempty" yaml:"elements,omitempty"`
}

type Member struct {
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Value *Value `json:"value" yaml:"value"`
}

type Shape struct {
	Type        string  `json:"type" yaml:"type"`
	Lengths     []int32 `json:"lengths" yaml:"lengths,flow"`
	LowerBounds []int32 `json:"lowerBounds,omitempty" yaml:"lowerBounds,omitempty,flow"`
}

// Value is a non-null slot value: either a reference or a typed primitive.
// Null slots are nil.
type Value struct {
	Ref       int32  `json:"ref,omitempty" yaml:"ref,omitempty"`
	Primitive string `json:"primitive,omitempty" yaml:"primitive,omitempty"`
	Literal   any    `json:"literal,omitempty" yaml:"literal,omitempty"`
}

// FromGraph builds the document for g.
func FromGraph(g *nrbf.Graph) (*Document, error) {
	doc := &Document{Root: int32(g.Root), HeaderID: g.HeaderID, Trailing: g.Trailing}
	for _, h := range g.Handles() {
		n, _ := g.Node(h)
		out := &Node{Handle: int32(h)}
		switch n := n.(type) {
		case *nrbf.ClassNode:
			out.Kind, out.Class, out.Library = "class", n.Name, n.Library
			for _, m := range n.Members {
				out.Members = append(out.Members, &Member{Name: m.Name, Type: m.Type.String(), Value: value(m.Value)})
			}
		case *nrbf.StringNode:
			s := n.Value
			out.Kind, out.String = "string", &s
		case *nrbf.ArrayNode:
			out.Kind = "array"
			out.Shape = &Shape{Type: n.Shape.Type.String(), Lengths: n.Shape.Lengths}
			if n.Shape.Type.HasBounds() {
				out.Shape.LowerBounds = n.Shape.LowerBounds
			}
			out.ElementType = n.ElementType.String()
			out.Elements = make([]*Value, len(n.Elements))
			for i, v := range n.Elements {
				out.Elements[i] = value(v)
			}
		default:
			return nil, fmt.Errorf("node %d: unexpected %T", h, n)
		}
		doc.Nodes = append(doc.Nodes, out)
	}
	return doc, nil
}

func value(v nrbf.Value) *Value {
	switch v.Kind {
	case nrbf.RefValue:
		return &Value{Ref: int32(v.Ref)}
	case nrbf.PrimitiveValue:
		return &Value{Primitive: v.Primitive.Type.String(), Literal: literal(v.Primitive)}
	default:
		return nil
	}
}

// literal is the primitive's natural value, or its text when the value has
// no JSON form.
func literal(p nrbf.Primitive) any {
	var f float64
	switch p.Type {
	case nrbf.Single:
		f = float64(p.Float32())
	case nrbf.Double:
		f = p.Float64()
	default:
		return p.Interface()
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return p.String()
	}
	return p.Interface()
}

var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("export: CBOR encoder initialization failed: " + err.Error())
	}
}

// JSON writes doc as indented JSON.
func JSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// YAML writes doc as YAML.
func YAML(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// CBOR writes doc in Core Deterministic Encoding, so equal documents
// produce equal bytes.
func CBOR(w io.Writer, doc *Document) error {
	return cborMode.NewEncoder(w).Encode(doc)
}
