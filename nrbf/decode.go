package nrbf

import (
	"fmt"

	"github.com/robert-malhotra/go-nrbf/internal/record"
	"github.com/robert-malhotra/go-nrbf/internal/typeinfo"
)

// Decoder decodes streams with a fixed configuration. A Decoder holds no
// per-stream state and may be used from several goroutines at once.
type Decoder struct {
	opts *options
}

// NewDecoder returns a decoder. It fails if the configured limits are not
// all positive.
func NewDecoder(opts ...Option) (*Decoder, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("nrbf: %w", err)
	}
	return &Decoder{opts: o}, nil
}

// Decode decodes one stream with the given options.
func Decode(data []byte, opts ...Option) (*Graph, error) {
	d, err := NewDecoder(opts...)
	if err != nil {
		return nil, err
	}
	return d.Decode(data)
}

// Decode reads a whole stream and resolves it into a graph. On failure no
// graph is returned.
func (d *Decoder) Decode(data []byte) (*Graph, error) {
	s, err := record.Read(data, d.opts.limits)
	if err != nil {
		return nil, newDecodeError(err)
	}
	g, err := resolve(s)
	if err != nil {
		return nil, err
	}

	log := d.opts.logger
	if s.Trailing > 0 {
		log.Warn("trailing bytes after message end",
			"offset", s.End,
			"bytes", s.Trailing)
	}
	log.Debug("decoded stream",
		"records", s.Count,
		"nodes", g.Len(),
		"libraries", len(s.Libraries),
		"root", g.Root)
	return g, nil
}

// RecordSummary describes one record of the flat record table.
type RecordSummary struct {
	Offset int64
	Tag    string
	ID     int32 // object or library id
	Detail string
}

// Records reads a stream and lists its object and library records without
// resolving references.
func (d *Decoder) Records(data []byte) ([]RecordSummary, error) {
	s, err := record.Read(data, d.opts.limits)
	if err != nil {
		return nil, newDecodeError(err)
	}
	out := make([]RecordSummary, 0, len(s.Records)+1)
	out = append(out, RecordSummary{
		Tag:    record.TagHeader.String(),
		ID:     s.Header.RootID,
		Detail: fmt.Sprintf("root=%d header=%d", s.Header.RootID, s.Header.HeaderID),
	})
	for _, e := range s.Records {
		sum := RecordSummary{Offset: e.Offset, Tag: e.Record.Tag().String()}
		switch r := e.Record.(type) {
		case *record.BinaryLibrary:
			sum.ID, sum.Detail = r.LibraryID, r.Name
		case *record.ClassWithID:
			sum.ID, sum.Detail = r.ObjectID, fmt.Sprintf("metadata=%d", r.MetadataID)
		case *record.BinaryObjectString:
			sum.ID, sum.Detail = r.ObjectID, fmt.Sprintf("%q", r.Value)
		case record.Object:
			sum.ID = r.ID()
			if info, lib, ok := record.Class(r); ok {
				sum.Detail = fmt.Sprintf("%s lib=%d members=%d", info.Name, lib, len(info.MemberNames))
			} else if shape, ok := record.ArrayShape(r); ok {
				sum.Detail = shape.String()
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// resolve turns the flat record table into a graph: one node per object
// record, every reference checked against the handle table.
func resolve(s *record.Stream) (*Graph, error) {
	r := &resolver{s: s, g: &Graph{
		Root:     Handle(s.Header.RootID),
		HeaderID: s.Header.HeaderID,
		Trailing: s.Trailing,
		nodes:    make(map[Handle]Node, len(s.Objects)),
		order:    make([]Handle, 0, len(s.Objects)),
	}}
	for _, e := range s.Records {
		obj, ok := e.Record.(record.Object)
		if !ok {
			continue
		}
		n, err := r.node(obj)
		if err != nil {
			return nil, resolveError(e.Offset, err)
		}
		h := Handle(obj.ID())
		r.g.nodes[h] = n
		r.g.order = append(r.g.order, h)
	}

	// References are checked only once every node exists, so forward
	// references resolve like backward ones.
	for _, e := range s.Records {
		if err := r.checkRefs(e); err != nil {
			return nil, resolveError(e.Offset, err)
		}
	}
	if _, ok := r.g.nodes[r.g.Root]; !ok {
		return nil, resolveError(0, fmt.Errorf("%w: root %d", ErrUndefinedHandleReference, r.g.Root))
	}
	return r.g, nil
}

type resolver struct {
	s *record.Stream
	g *Graph
}

func (r *resolver) library(id int32) (string, error) {
	name, ok := r.s.Libraries[id]
	if !ok {
		return "", fmt.Errorf("%w: library %d", ErrLibraryNotFound, id)
	}
	return name, nil
}

func (r *resolver) typeOf(d typeinfo.Descriptor) (TypeDescriptor, error) {
	t := TypeDescriptor{Kind: d.Kind, Primitive: d.Primitive, ClassName: d.ClassName}
	if d.Kind == typeinfo.Class {
		lib, err := r.library(d.LibraryID)
		if err != nil {
			return t, fmt.Errorf("type %s: %w", d.ClassName, err)
		}
		t.Library = lib
	}
	return t, nil
}

func valueOf(s record.Slot) Value {
	switch s.Kind {
	case record.SlotPrimitive:
		return Prim(s.Primitive)
	case record.SlotRef:
		return Ref(Handle(s.Ref))
	default:
		return Null()
	}
}

func (r *resolver) node(obj record.Object) (Node, error) {
	switch rec := obj.(type) {
	case *record.BinaryObjectString:
		return &StringNode{Value: rec.Value}, nil

	case *record.ClassWithID:
		def, ok := r.s.Lookup(rec.MetadataID)
		if !ok {
			return nil, fmt.Errorf("%w: metadata id %d", ErrSchemaNotFound, rec.MetadataID)
		}
		return r.class(def.Record, rec.Values)
	}

	if c, ok := obj.(record.Composite); ok {
		if _, isClass := record.MemberTypes(obj); isClass {
			return r.class(obj, c.Slots())
		}
		shape, ok := record.ArrayShape(obj)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not an object record", ErrMalformed, obj.Tag())
		}
		elem, err := r.typeOf(c.SlotType(0))
		if err != nil {
			return nil, err
		}
		slots := c.Slots()
		a := &ArrayNode{Shape: shape, ElementType: elem, Elements: make([]Value, len(slots))}
		for i, s := range slots {
			a.Elements[i] = valueOf(s)
		}
		return a, nil
	}
	return nil, fmt.Errorf("%w: %v is not an object record", ErrMalformed, obj.Tag())
}

// class builds a class node from its defining record and the instance's
// slot values.
func (r *resolver) class(def record.Record, slots []record.Slot) (*ClassNode, error) {
	info, libID, ok := record.Class(def)
	if !ok {
		return nil, fmt.Errorf("%w: %v does not define a class", ErrSchemaNotFound, def.Tag())
	}
	types, _ := record.MemberTypes(def)

	c := &ClassNode{Name: info.Name, Members: make([]Member, len(info.MemberNames))}
	switch def.Tag() {
	case record.TagClassWithMembers, record.TagClassWithMembersAndTypes:
		lib, err := r.library(libID)
		if err != nil {
			return nil, err
		}
		c.Library = lib
	}
	for i, name := range info.MemberNames {
		t, err := r.typeOf(types[i])
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", name, err)
		}
		c.Members[i] = Member{Name: name, Type: t, Value: valueOf(slots[i])}
	}
	return c, nil
}

// checkRefs verifies that every reference held by the record's slots
// names a node whose kind fits the slot's declared type.
func (r *resolver) checkRefs(e record.Entry) error {
	c, ok := e.Record.(record.Composite)
	if !ok {
		return nil
	}
	for i, s := range c.Slots() {
		if s.Kind != record.SlotRef {
			continue
		}
		target, ok := r.g.nodes[Handle(s.Ref)]
		if !ok {
			return fmt.Errorf("%w: slot %d refers to %d", ErrUndefinedHandleReference, i, s.Ref)
		}
		if err := fits(c.SlotType(i), target); err != nil {
			return fmt.Errorf("slot %d refers to %d: %w", i, s.Ref, err)
		}
	}
	return nil
}

// fits reports whether a node may fill a slot of declared type d.
func fits(d typeinfo.Descriptor, n Node) error {
	var ok bool
	switch {
	case d.Kind == typeinfo.String:
		_, ok = n.(*StringNode)
	case d.IsArray():
		_, ok = n.(*ArrayNode)
	case d.IsClass():
		_, ok = n.(*ClassNode)
	default:
		ok = true
	}
	if !ok {
		return fmt.Errorf("%w: %s slot holds a %s", ErrMalformed, d, nodeKind(n))
	}
	return nil
}

func nodeKind(n Node) string {
	switch n.(type) {
	case *ClassNode:
		return "class"
	case *StringNode:
		return "string"
	case *ArrayNode:
		return "array"
	default:
		return "unknown"
	}
}
