package record

import (
	"fmt"

	"github.com/robert-malhotra/go-nrbf/internal/array"
	"github.com/robert-malhotra/go-nrbf/internal/binary"
	"github.com/robert-malhotra/go-nrbf/internal/guard"
	"github.com/robert-malhotra/go-nrbf/internal/primitive"
	"github.com/robert-malhotra/go-nrbf/internal/typeinfo"
)

// Entry is one record of the flat table with the offset of its tag byte.
type Entry struct {
	Offset int64
	Record Record
}

// Stream is a fully read message.
type Stream struct {
	Header *Header

	// Records holds every object-defining and library record in the
	// order they were met, top-level and nested alike.
	Records []Entry

	// Objects maps an object id to its index in Records.
	Objects map[int32]int

	// Libraries maps a library id to its name.
	Libraries map[int32]string

	// Count is the number of records read, slot records included.
	Count int

	// End is the offset just past MessageEnd; Trailing is the number of
	// bytes after it.
	End      int64
	Trailing int64
}

// Lookup returns the record defining object id.
func (s *Stream) Lookup(id int32) (Entry, bool) {
	i, ok := s.Objects[id]
	if !ok {
		return Entry{}, false
	}
	return s.Records[i], true
}

type context uint8

const (
	topLevel context = iota
	memberSlot
	elementSlot
)

type frame struct {
	rec    Composite
	slots  []Slot
	next   int
	array  bool
	offset int64
}

type parser struct {
	r      *binary.Reader
	limits guard.Limits
	s      *Stream
	stack  []frame
	done   bool

	// elements is the running total of declared array elements.
	elements int64
}

type parseFunc func(p *parser, start int64, ctx context) error

// parsers is the dispatch table keyed by tag. Tags without an entry are
// either unknown or recognized but unsupported.
var parsers [TagArraySingleString + 1]parseFunc

func init() {
	parsers = [...]parseFunc{
		TagHeader:                         parseHeader,
		TagClassWithID:                    parseClassWithID,
		TagSystemClassWithMembers:         parseSystemClassWithMembers,
		TagClassWithMembers:               parseClassWithMembers,
		TagSystemClassWithMembersAndTypes: parseSystemClassWithMembersAndTypes,
		TagClassWithMembersAndTypes:       parseClassWithMembersAndTypes,
		TagBinaryObjectString:             parseBinaryObjectString,
		TagBinaryArray:                    parseBinaryArray,
		TagMemberPrimitiveTyped:           parseMemberPrimitiveTyped,
		TagMemberReference:                parseMemberReference,
		TagObjectNull:                     parseObjectNull,
		TagMessageEnd:                     parseMessageEnd,
		TagBinaryLibrary:                  parseBinaryLibrary,
		TagObjectNullMultiple256:          parseObjectNullMultiple256,
		TagObjectNullMultiple:             parseObjectNullMultiple,
		TagArraySinglePrimitive:           parseArraySinglePrimitive,
		TagArraySingleObject:              parseArraySingleObject,
		TagArraySingleString:              parseArraySingleString,
	}
}

// Read reads one message from data: the header, every record up to and
// including MessageEnd, and all value slots. Nested records are handled
// with an explicit stack, never by recursion.
func Read(data []byte, limits guard.Limits) (*Stream, error) {
	p := &parser{
		r:      binary.NewReader(data),
		limits: limits,
		s: &Stream{
			Objects:   make(map[int32]int),
			Libraries: make(map[int32]string),
		},
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	p.s.End = p.r.Pos()
	p.s.Trailing = p.r.Remaining()
	return p.s, nil
}

func (p *parser) run() error {
	for !p.done {
		n := len(p.stack)
		if n == 0 {
			if err := p.step(topLevel); err != nil {
				return err
			}
			continue
		}

		f := &p.stack[n-1]
		if f.next == len(f.slots) {
			p.stack = p.stack[:n-1]
			continue
		}
		t := f.rec.SlotType(f.next)
		if t.IsInline() {
			v, err := primitive.Read(p.r, t.Primitive)
			if err != nil {
				return &Error{Offset: f.offset, Tag: f.rec.Tag(), Err: fmt.Errorf("slot %d: %w", f.next, err)}
			}
			f.slots[f.next] = PrimitiveSlot(v)
			f.next++
			continue
		}
		ctx := memberSlot
		if f.array {
			ctx = elementSlot
		}
		if err := p.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// step reads one record and dispatches on its tag.
func (p *parser) step(ctx context) error {
	start := p.r.Pos()
	b, err := p.r.ReadUint8()
	if err != nil {
		return &Error{Offset: start, Err: err}
	}
	tag := Tag(b)

	p.s.Count++
	if err := p.limits.CheckRecords(p.s.Count); err != nil {
		return &Error{Offset: start, Tag: tag, Err: err}
	}

	var fn parseFunc
	if int(tag) < len(parsers) {
		fn = parsers[tag]
	}
	switch {
	case fn == nil && tagNames[tag] != "":
		return &Error{Offset: start, Tag: tag, Err: ErrUnexpectedTag}
	case fn == nil:
		return &Error{Offset: start, Tag: tag, Err: ErrUnknownTag}
	case p.s.Header == nil && tag != TagHeader:
		return &Error{Offset: start, Tag: tag, Err: fmt.Errorf("%w: stream must start with a header", ErrUnexpectedTag)}
	}

	if err := fn(p, start, ctx); err != nil {
		return &Error{Offset: start, Tag: tag, Err: err}
	}
	return nil
}

func (p *parser) top() *frame {
	return &p.stack[len(p.stack)-1]
}

func (p *parser) fill(s Slot) {
	f := p.top()
	f.slots[f.next] = s
	f.next++
}

// define registers an object record, stores its id in the enclosing slot
// and, if it carries values, pushes a frame for them.
func (p *parser) define(start int64, ctx context, rec Object) error {
	id := rec.ID()
	if id == 0 {
		return malformed("object id 0 is reserved")
	}
	if _, dup := p.s.Objects[id]; dup {
		return fmt.Errorf("%w: object %d", ErrHandleAlreadyDefined, id)
	}
	p.s.Objects[id] = len(p.s.Records)
	p.s.Records = append(p.s.Records, Entry{Offset: start, Record: rec})

	if ctx != topLevel {
		p.fill(RefSlot(id))
	}

	c, ok := rec.(Composite)
	if !ok || len(c.Slots()) == 0 {
		return nil
	}
	if err := p.limits.CheckDepth(len(p.stack) + 1); err != nil {
		return err
	}
	_, isArray := ArrayShape(rec)
	p.stack = append(p.stack, frame{rec: c, slots: c.Slots(), array: isArray, offset: start})
	return nil
}

func parseHeader(p *parser, _ int64, ctx context) error {
	if p.s.Header != nil || ctx != topLevel {
		return fmt.Errorf("%w: second header", ErrUnexpectedTag)
	}
	var h Header
	for _, f := range []*int32{&h.RootID, &h.HeaderID, &h.MajorVersion, &h.MinorVersion} {
		v, err := p.r.ReadInt32()
		if err != nil {
			return err
		}
		*f = v
	}
	if h.MajorVersion != 1 || h.MinorVersion != 0 {
		return malformed("unsupported version %d.%d", h.MajorVersion, h.MinorVersion)
	}
	p.s.Header = &h
	return nil
}

func parseMessageEnd(p *parser, _ int64, ctx context) error {
	if ctx != topLevel {
		return fmt.Errorf("%w: message end inside a value slot", ErrUnexpectedTag)
	}
	p.done = true
	return nil
}

func (p *parser) readClassInfo() (ClassInfo, error) {
	var info ClassInfo
	var err error
	if info.ObjectID, err = p.r.ReadInt32(); err != nil {
		return info, err
	}
	if info.Name, err = p.r.ReadString(); err != nil {
		return info, err
	}
	countPos := p.r.Pos()
	n, err := p.r.ReadInt32()
	if err != nil {
		return info, err
	}
	if n < 0 {
		return info, malformed("member count %d", n)
	}
	// Every member name takes at least its length byte.
	if int64(n) > p.r.Remaining() {
		return info, &binary.ReadError{Pos: countPos, Consumed: 4, Err: binary.ErrTruncated}
	}
	info.MemberNames = make([]string, n)
	for i := range info.MemberNames {
		if info.MemberNames[i], err = p.r.ReadString(); err != nil {
			return info, fmt.Errorf("member %d name: %w", i, err)
		}
	}
	return info, nil
}

func (p *parser) readLibraryRef() (int32, error) {
	id, err := p.r.ReadInt32()
	if err != nil {
		return 0, err
	}
	if _, ok := p.s.Libraries[id]; !ok {
		return 0, fmt.Errorf("%w: library %d", ErrLibraryNotFound, id)
	}
	return id, nil
}

func parseClassWithMembersAndTypes(p *parser, start int64, ctx context) error {
	info, err := p.readClassInfo()
	if err != nil {
		return err
	}
	types, err := typeinfo.ReadMembers(p.r, len(info.MemberNames))
	if err != nil {
		return err
	}
	lib, err := p.readLibraryRef()
	if err != nil {
		return err
	}
	return p.define(start, ctx, &ClassWithMembersAndTypes{
		ClassInfo:   info,
		MemberTypes: types,
		LibraryID:   lib,
		Values:      make([]Slot, len(types)),
	})
}

func parseSystemClassWithMembersAndTypes(p *parser, start int64, ctx context) error {
	info, err := p.readClassInfo()
	if err != nil {
		return err
	}
	types, err := typeinfo.ReadMembers(p.r, len(info.MemberNames))
	if err != nil {
		return err
	}
	return p.define(start, ctx, &SystemClassWithMembersAndTypes{
		ClassInfo:   info,
		MemberTypes: types,
		Values:      make([]Slot, len(types)),
	})
}

func parseClassWithMembers(p *parser, start int64, ctx context) error {
	info, err := p.readClassInfo()
	if err != nil {
		return err
	}
	lib, err := p.readLibraryRef()
	if err != nil {
		return err
	}
	return p.define(start, ctx, &ClassWithMembers{
		ClassInfo: info,
		LibraryID: lib,
		Values:    make([]Slot, len(info.MemberNames)),
	})
}

func parseSystemClassWithMembers(p *parser, start int64, ctx context) error {
	info, err := p.readClassInfo()
	if err != nil {
		return err
	}
	return p.define(start, ctx, &SystemClassWithMembers{
		ClassInfo: info,
		Values:    make([]Slot, len(info.MemberNames)),
	})
}

func parseClassWithID(p *parser, start int64, ctx context) error {
	id, err := p.r.ReadInt32()
	if err != nil {
		return err
	}
	meta, err := p.r.ReadInt32()
	if err != nil {
		return err
	}
	var types []typeinfo.Descriptor
	e, ok := p.s.Lookup(meta)
	if ok {
		types, ok = MemberTypes(e.Record)
	}
	if !ok {
		return fmt.Errorf("%w: metadata id %d", ErrSchemaNotFound, meta)
	}
	return p.define(start, ctx, &ClassWithID{
		ObjectID:   id,
		MetadataID: meta,
		Values:     make([]Slot, len(types)),
		types:      types,
	})
}

func parseBinaryObjectString(p *parser, start int64, ctx context) error {
	id, err := p.r.ReadInt32()
	if err != nil {
		return err
	}
	s, err := p.r.ReadString()
	if err != nil {
		return err
	}
	return p.define(start, ctx, &BinaryObjectString{ObjectID: id, Value: s})
}

// allocSlots checks a declared element count against the per-array and
// per-stream limits and, for inline primitive elements, against the
// remaining input, then allocates.
func (p *parser) allocSlots(n int64, ok bool, elem typeinfo.Descriptor) ([]Slot, error) {
	if err := p.limits.CheckArrayElements(n, ok); err != nil {
		return nil, err
	}
	p.elements += n
	if err := p.limits.CheckTotalElements(p.elements); err != nil {
		return nil, err
	}
	if elem.IsInline() && n*int64(elem.Primitive.MinSize()) > p.r.Remaining() {
		return nil, &binary.ReadError{Pos: p.r.Pos(), Err: binary.ErrTruncated}
	}
	return make([]Slot, n), nil
}

func parseBinaryArray(p *parser, start int64, ctx context) error {
	id, err := p.r.ReadInt32()
	if err != nil {
		return err
	}
	shape, err := array.Read(p.r)
	if err != nil {
		return err
	}
	elem, err := typeinfo.Read(p.r)
	if err != nil {
		return err
	}
	if shape.Type.Base() == array.Jagged && !elem.IsArray() {
		return malformed("jagged array with element type %v", elem)
	}
	n, ok := shape.Count()
	values, err := p.allocSlots(n, ok, elem)
	if err != nil {
		return err
	}
	return p.define(start, ctx, &BinaryArray{
		ObjectID:    id,
		Shape:       shape,
		ElementType: elem,
		Values:      values,
	})
}

func (p *parser) readSingleHeader() (id, length int32, err error) {
	if id, err = p.r.ReadInt32(); err != nil {
		return 0, 0, err
	}
	if length, err = p.r.ReadInt32(); err != nil {
		return 0, 0, err
	}
	if length < 0 {
		return 0, 0, fmt.Errorf("%w: length %d", array.ErrInvalidShape, length)
	}
	return id, length, nil
}

func parseArraySinglePrimitive(p *parser, start int64, ctx context) error {
	id, length, err := p.readSingleHeader()
	if err != nil {
		return err
	}
	b, err := p.r.ReadUint8()
	if err != nil {
		return err
	}
	t := primitive.Type(b)
	if !t.Inline() {
		return fmt.Errorf("%w: %v", primitive.ErrInvalidType, t)
	}
	values, err := p.allocSlots(int64(length), true, typeinfo.PrimitiveOf(t))
	if err != nil {
		return err
	}
	return p.define(start, ctx, &ArraySinglePrimitive{ObjectID: id, Type: t, Values: values})
}

func parseArraySingleObject(p *parser, start int64, ctx context) error {
	id, length, err := p.readSingleHeader()
	if err != nil {
		return err
	}
	values, err := p.allocSlots(int64(length), true, typeinfo.ObjectType)
	if err != nil {
		return err
	}
	return p.define(start, ctx, &ArraySingleObject{ObjectID: id, Values: values})
}

func parseArraySingleString(p *parser, start int64, ctx context) error {
	id, length, err := p.readSingleHeader()
	if err != nil {
		return err
	}
	values, err := p.allocSlots(int64(length), true, typeinfo.StringType)
	if err != nil {
		return err
	}
	return p.define(start, ctx, &ArraySingleString{ObjectID: id, Values: values})
}

func parseMemberPrimitiveTyped(p *parser, _ int64, ctx context) error {
	if ctx == topLevel {
		return fmt.Errorf("%w: primitive value outside a slot", ErrUnexpectedTag)
	}
	f := p.top()
	if k := f.rec.SlotType(f.next).Kind; k != typeinfo.Object {
		return malformed("typed primitive in a %v slot", k)
	}
	b, err := p.r.ReadUint8()
	if err != nil {
		return err
	}
	v, err := primitive.Read(p.r, primitive.Type(b))
	if err != nil {
		return err
	}
	p.fill(PrimitiveSlot(v))
	return nil
}

func parseMemberReference(p *parser, _ int64, ctx context) error {
	if ctx == topLevel {
		return fmt.Errorf("%w: reference outside a slot", ErrUnexpectedTag)
	}
	id, err := p.r.ReadInt32()
	if err != nil {
		return err
	}
	p.fill(RefSlot(id))
	return nil
}

func parseObjectNull(p *parser, _ int64, ctx context) error {
	if ctx == topLevel {
		return fmt.Errorf("%w: null outside a slot", ErrUnexpectedTag)
	}
	p.fill(NullSlot())
	return nil
}

func (p *parser) fillNulls(n int64) error {
	f := p.top()
	if n < 1 {
		return malformed("null run of %d", n)
	}
	if left := int64(len(f.slots) - f.next); n > left {
		return malformed("null run of %d overruns %d remaining elements", n, left)
	}
	for i := int64(0); i < n; i++ {
		f.slots[f.next] = NullSlot()
		f.next++
	}
	return nil
}

func parseObjectNullMultiple256(p *parser, _ int64, ctx context) error {
	if ctx != elementSlot {
		return fmt.Errorf("%w: null run outside an array", ErrUnexpectedTag)
	}
	n, err := p.r.ReadUint8()
	if err != nil {
		return err
	}
	return p.fillNulls(int64(n))
}

func parseObjectNullMultiple(p *parser, _ int64, ctx context) error {
	if ctx != elementSlot {
		return fmt.Errorf("%w: null run outside an array", ErrUnexpectedTag)
	}
	n, err := p.r.ReadInt32()
	if err != nil {
		return err
	}
	return p.fillNulls(int64(n))
}

func parseBinaryLibrary(p *parser, start int64, _ context) error {
	id, err := p.r.ReadInt32()
	if err != nil {
		return err
	}
	name, err := p.r.ReadString()
	if err != nil {
		return err
	}
	if _, dup := p.s.Libraries[id]; dup {
		return fmt.Errorf("%w: library %d", ErrHandleAlreadyDefined, id)
	}
	p.s.Libraries[id] = name
	p.s.Records = append(p.s.Records, Entry{Offset: start, Record: &BinaryLibrary{LibraryID: id, Name: name}})
	return nil
}
