package nrbf

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/robert-malhotra/go-nrbf/internal/alloc"
	"github.com/robert-malhotra/go-nrbf/internal/array"
	"github.com/robert-malhotra/go-nrbf/internal/binary"
	"github.com/robert-malhotra/go-nrbf/internal/primitive"
	"github.com/robert-malhotra/go-nrbf/internal/record"
	"github.com/robert-malhotra/go-nrbf/internal/typeinfo"
)

// Encoder encodes graphs with a fixed configuration. Like Decoder it keeps
// no state between calls.
type Encoder struct {
	opts *options
}

// NewEncoder returns an encoder.
func NewEncoder(opts ...Option) (*Encoder, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("nrbf: %w", err)
	}
	return &Encoder{opts: o}, nil
}

// Encode encodes g with the given options.
func Encode(g *Graph, opts ...Option) ([]byte, error) {
	e, err := NewEncoder(opts...)
	if err != nil {
		return nil, err
	}
	return e.Encode(g)
}

// Encode linearizes the nodes reachable from g.Root into a stream.
//
// Handles are renumbered 1..n in depth-first first-encounter order from the
// root and library ids follow them. Nodes are written as top-level records
// in handle order, except that a string is written inline in the first slot
// that refers to it before its own turn. Each distinct class layout is
// described once; later instances refer to it by ClassWithId.
func (e *Encoder) Encode(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.encode(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes the encoding of g to w.
func (e *Encoder) EncodeTo(w io.Writer, g *Graph) error {
	data, err := e.Encode(g)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type encoder struct {
	g   *Graph
	log *slog.Logger
	w   *binary.Writer

	ids  *alloc.Allocator[Handle]
	libs *alloc.Allocator[string]

	// order lists graph handles by assigned id.
	order   []Handle
	emitted map[Handle]bool

	// schemas maps a class layout signature to the object id of the
	// record that described it.
	schemas map[string]int32
}

func (e *Encoder) encode(buf *bytes.Buffer, g *Graph) error {
	if g == nil {
		return &EncodeError{Err: fmt.Errorf("nil graph")}
	}
	enc := &encoder{
		g:       g,
		log:     e.opts.logger,
		w:       binary.NewWriter(buf),
		ids:     alloc.New[Handle](1),
		libs:    alloc.New[string](1),
		emitted: make(map[Handle]bool),
		schemas: make(map[string]int32),
	}
	if err := enc.number(); err != nil {
		return err
	}
	enc.libs.SetNext(enc.ids.Next())

	if err := enc.run(); err != nil {
		return err
	}

	if dropped := g.Len() - len(enc.order); dropped > 0 {
		enc.log.Debug("unreachable nodes not encoded", "count", dropped)
	}
	enc.log.Debug("encoded graph",
		"nodes", len(enc.order),
		"libraries", enc.libs.Len(),
		"schemas", len(enc.schemas),
		"bytes", buf.Len())
	return nil
}

// children returns the handles n refers to, in slot order.
func children(n Node) []Handle {
	var vals []Value
	switch n := n.(type) {
	case *ClassNode:
		vals = make([]Value, len(n.Members))
		for i, m := range n.Members {
			vals[i] = m.Value
		}
	case *ArrayNode:
		vals = n.Elements
	}
	var refs []Handle
	for _, v := range vals {
		if v.Kind == RefValue {
			refs = append(refs, v.Ref)
		}
	}
	return refs
}

func validNode(n Node) bool {
	switch n := n.(type) {
	case *ClassNode:
		return n != nil
	case *StringNode:
		return n != nil
	case *ArrayNode:
		return n != nil
	}
	return false
}

// number assigns stream ids by an iterative depth-first walk from the root.
func (e *encoder) number() error {
	if _, ok := e.g.nodes[e.g.Root]; !ok {
		return encodeErrorf(0, "root %d is not in the graph", e.g.Root)
	}
	stack := []Handle{e.g.Root}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := e.ids.Lookup(h); seen {
			continue
		}
		n := e.g.nodes[h]
		if !validNode(n) {
			return encodeErrorf(h, "nil node")
		}
		if _, _, err := e.ids.AllocTagged(h, nodeKind(n)); err != nil {
			return &EncodeError{Handle: h, Err: err}
		}
		e.order = append(e.order, h)

		refs := children(n)
		for i := len(refs) - 1; i >= 0; i-- {
			r := refs[i]
			if _, ok := e.g.nodes[r]; !ok {
				return encodeErrorf(h, "dangling reference to %d", r)
			}
			if _, seen := e.ids.Lookup(r); !seen {
				stack = append(stack, r)
			}
		}
	}
	return nil
}

func (e *encoder) id(h Handle) int32 {
	id, _ := e.ids.Lookup(h)
	return id
}

func (e *encoder) run() error {
	header := &record.Header{
		RootID:       e.id(e.g.Root),
		HeaderID:     e.g.HeaderID,
		MajorVersion: 1,
	}
	if err := header.Serialize(e.w); err != nil {
		return &EncodeError{Err: err}
	}
	for _, h := range e.order {
		if e.emitted[h] {
			continue
		}
		if err := e.node(h); err != nil {
			return err
		}
	}
	if err := (&record.MessageEnd{}).Serialize(e.w); err != nil {
		return &EncodeError{Err: err}
	}
	return nil
}

func (e *encoder) serialize(h Handle, r record.Record) error {
	if err := r.Serialize(e.w); err != nil {
		return &EncodeError{Handle: h, Err: err}
	}
	return nil
}

func (e *encoder) node(h Handle) error {
	e.emitted[h] = true
	id := e.id(h)
	switch n := e.g.nodes[h].(type) {
	case *StringNode:
		return e.serialize(h, &record.BinaryObjectString{ObjectID: id, Value: n.Value})
	case *ClassNode:
		return e.class(h, id, n)
	case *ArrayNode:
		return e.array(h, id, n)
	}
	return encodeErrorf(h, "unknown node type %T", e.g.nodes[h])
}

// library returns the id of a library, writing its record on first use.
func (e *encoder) library(h Handle, name string) (int32, error) {
	id, fresh, err := e.libs.AllocTagged(name, "library")
	if err != nil {
		return 0, &EncodeError{Handle: h, Err: err}
	}
	if fresh {
		if err := e.serialize(h, &record.BinaryLibrary{LibraryID: id, Name: name}); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// descriptor converts a declared type, writing any library it names.
func (e *encoder) descriptor(h Handle, t TypeDescriptor) (typeinfo.Descriptor, error) {
	d := typeinfo.Descriptor{Kind: t.Kind, Primitive: t.Primitive, ClassName: t.ClassName}
	if err := d.Validate(); err != nil {
		return d, &EncodeError{Handle: h, Err: err}
	}
	if t.Kind == KindClass {
		if t.Library == "" {
			return d, encodeErrorf(h, "class type %s has no library", t.ClassName)
		}
		id, err := e.library(h, t.Library)
		if err != nil {
			return d, err
		}
		d.LibraryID = id
	}
	return d, nil
}

func signature(c *ClassNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q %q", c.Name, c.Library)
	for _, m := range c.Members {
		fmt.Fprintf(&b, " %q:%d:%d:%q:%q", m.Name, m.Type.Kind, m.Type.Primitive, m.Type.ClassName, m.Type.Library)
	}
	return b.String()
}

func (e *encoder) class(h Handle, id int32, c *ClassNode) error {
	var libID int32
	if c.Library != "" {
		var err error
		if libID, err = e.library(h, c.Library); err != nil {
			return err
		}
	}
	info := record.ClassInfo{ObjectID: id, Name: c.Name, MemberNames: make([]string, len(c.Members))}
	types := make([]typeinfo.Descriptor, len(c.Members))
	for i, m := range c.Members {
		d, err := e.descriptor(h, m.Type)
		if err != nil {
			return err
		}
		info.MemberNames[i], types[i] = m.Name, d
	}

	sig := signature(c)
	var rec record.Record
	switch meta, ok := e.schemas[sig]; {
	case ok:
		rec = &record.ClassWithID{ObjectID: id, MetadataID: meta}
	case c.Library == "":
		rec = &record.SystemClassWithMembersAndTypes{ClassInfo: info, MemberTypes: types}
	default:
		rec = &record.ClassWithMembersAndTypes{ClassInfo: info, MemberTypes: types, LibraryID: libID}
	}
	if _, ok := e.schemas[sig]; !ok {
		e.schemas[sig] = id
	}
	if err := e.serialize(h, rec); err != nil {
		return err
	}

	for _, m := range c.Members {
		if err := e.value(h, m.Type, m.Value); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) array(h Handle, id int32, a *ArrayNode) error {
	if err := a.Shape.Validate(); err != nil {
		return &EncodeError{Handle: h, Err: err}
	}
	n, _ := a.Shape.Count()
	if n != int64(len(a.Elements)) {
		return encodeErrorf(h, "shape %v needs %d elements, have %d", a.Shape, n, len(a.Elements))
	}
	shape := a.Shape.Canonical()
	if shape.Type.Base() == array.Jagged && !a.ElementType.IsArray() {
		return encodeErrorf(h, "jagged array of %v", a.ElementType)
	}
	elem, err := e.descriptor(h, a.ElementType)
	if err != nil {
		return err
	}

	var rec record.Record
	switch {
	case shape.Type == array.Single && elem.Kind == typeinfo.Primitive:
		rec = &record.ArraySinglePrimitive{ObjectID: id, Type: elem.Primitive, Values: make([]record.Slot, n)}
	case shape.Type == array.Single && elem.Kind == typeinfo.String:
		rec = &record.ArraySingleString{ObjectID: id, Values: make([]record.Slot, n)}
	case shape.Type == array.Single && elem.Kind == typeinfo.Object:
		rec = &record.ArraySingleObject{ObjectID: id, Values: make([]record.Slot, n)}
	default:
		rec = &record.BinaryArray{ObjectID: id, Shape: shape, ElementType: elem}
	}
	if err := e.serialize(h, rec); err != nil {
		return err
	}

	for i := 0; i < len(a.Elements); {
		v := a.Elements[i]
		if v.Kind == NullValue && a.ElementType.Kind != KindPrimitive {
			run := 1
			for i+run < len(a.Elements) && a.Elements[i+run].Kind == NullValue {
				run++
			}
			if err := e.serialize(h, record.NullRun(run)); err != nil {
				return err
			}
			i += run
			continue
		}
		if err := e.value(h, a.ElementType, v); err != nil {
			return err
		}
		i++
	}
	return nil
}

// value writes one slot of declared type t.
func (e *encoder) value(h Handle, t TypeDescriptor, v Value) error {
	if t.Kind == KindPrimitive {
		if v.Kind != PrimitiveValue || v.Primitive.Type != t.Primitive {
			return encodeErrorf(h, "%v slot holds %v", t, v)
		}
		if err := primitive.Write(e.w, v.Primitive); err != nil {
			return &EncodeError{Handle: h, Err: err}
		}
		return nil
	}

	switch v.Kind {
	case NullValue:
		return e.serialize(h, &record.ObjectNull{})

	case PrimitiveValue:
		if t.Kind != KindObject {
			return encodeErrorf(h, "%v slot holds primitive %v", t, v)
		}
		if !v.Primitive.Type.Inline() {
			return encodeErrorf(h, "invalid primitive %v", v)
		}
		return e.serialize(h, &record.MemberPrimitiveTyped{Value: v.Primitive})

	case RefValue:
		target := e.g.nodes[v.Ref]
		if !fitsType(t, target) {
			return encodeErrorf(h, "%v slot refers to a %s", t, nodeKind(target))
		}
		if s, ok := target.(*StringNode); ok && !e.emitted[v.Ref] {
			e.emitted[v.Ref] = true
			return e.serialize(h, &record.BinaryObjectString{ObjectID: e.id(v.Ref), Value: s.Value})
		}
		return e.serialize(h, &record.MemberReference{IDRef: e.id(v.Ref)})
	}
	return encodeErrorf(h, "unknown value kind %d", v.Kind)
}

func fitsType(t TypeDescriptor, n Node) bool {
	switch {
	case t.Kind == KindString:
		_, ok := n.(*StringNode)
		return ok
	case t.IsArray():
		_, ok := n.(*ArrayNode)
		return ok
	case t.IsClass():
		_, ok := n.(*ClassNode)
		return ok
	}
	return true
}
