// Package typeinfo handles NRBF member type descriptors.
//
// A descriptor says what shape the next value slot has: an inline primitive,
// or a record (string, object, class instance, array). It never carries a
// value and is only consulted to decide how many bytes or records follow.
package typeinfo

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-nrbf/internal/binary"
	"github.com/robert-malhotra/go-nrbf/internal/primitive"
)

// ErrInvalidBinaryType is returned for an unknown BinaryTypeEnumeration byte.
var ErrInvalidBinaryType = errors.New("invalid binary type")

// Kind is the BinaryTypeEnumeration.
type Kind uint8

const (
	Primitive      Kind = 0 // inline value, additional info: PrimitiveType
	String         Kind = 1
	Object         Kind = 2
	SystemClass    Kind = 3 // additional info: class name
	Class          Kind = 4 // additional info: class name + library id
	ObjectArray    Kind = 5
	StringArray    Kind = 6
	PrimitiveArray Kind = 7 // additional info: PrimitiveType
)

var kindNames = [...]string{
	Primitive:      "Primitive",
	String:         "String",
	Object:         "Object",
	SystemClass:    "SystemClass",
	Class:          "Class",
	ObjectArray:    "ObjectArray",
	StringArray:    "StringArray",
	PrimitiveArray: "PrimitiveArray",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("BinaryType(%d)", uint8(k))
}

// Valid reports whether k is in the enumeration.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

// Descriptor is one member's declared type. It is a plain comparable value;
// two descriptors are equal iff every field is equal.
type Descriptor struct {
	Kind      Kind
	Primitive primitive.Type // Primitive and PrimitiveArray
	ClassName string         // SystemClass and Class
	LibraryID int32          // Class
}

func PrimitiveOf(t primitive.Type) Descriptor {
	return Descriptor{Kind: Primitive, Primitive: t}
}

func PrimitiveArrayOf(t primitive.Type) Descriptor {
	return Descriptor{Kind: PrimitiveArray, Primitive: t}
}

func SystemClassOf(name string) Descriptor {
	return Descriptor{Kind: SystemClass, ClassName: name}
}

func ClassOf(name string, libraryID int32) Descriptor {
	return Descriptor{Kind: Class, ClassName: name, LibraryID: libraryID}
}

var (
	StringType      = Descriptor{Kind: String}
	ObjectType      = Descriptor{Kind: Object}
	ObjectArrayType = Descriptor{Kind: ObjectArray}
	StringArrayType = Descriptor{Kind: StringArray}
)

// IsInline reports whether a slot of this type is read as raw bytes rather
// than as a record.
func (d Descriptor) IsInline() bool {
	return d.Kind == Primitive
}

// IsArray reports whether the descriptor names an array type.
func (d Descriptor) IsArray() bool {
	return d.Kind == ObjectArray || d.Kind == StringArray || d.Kind == PrimitiveArray
}

// IsClass reports whether the descriptor names a class type.
func (d Descriptor) IsClass() bool {
	return d.Kind == SystemClass || d.Kind == Class
}

// Element returns the element descriptor of an array descriptor.
func (d Descriptor) Element() (Descriptor, bool) {
	switch d.Kind {
	case ObjectArray:
		return ObjectType, true
	case StringArray:
		return StringType, true
	case PrimitiveArray:
		return PrimitiveOf(d.Primitive), true
	default:
		return Descriptor{}, false
	}
}

// ArrayOf returns the array descriptor whose element is d. Arrays of classes
// or of arrays have no dedicated kind and are carried as ObjectArray.
func ArrayOf(d Descriptor) Descriptor {
	switch d.Kind {
	case Primitive:
		return PrimitiveArrayOf(d.Primitive)
	case String:
		return StringArrayType
	default:
		return ObjectArrayType
	}
}

func (d Descriptor) String() string {
	switch d.Kind {
	case Primitive:
		return d.Primitive.String()
	case PrimitiveArray:
		return d.Primitive.String() + "[]"
	case SystemClass:
		return d.ClassName
	case Class:
		return fmt.Sprintf("%s@%d", d.ClassName, d.LibraryID)
	default:
		return d.Kind.String()
	}
}

// Validate checks the descriptor's additional info against its kind.
func (d Descriptor) Validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidBinaryType, d.Kind)
	}
	switch d.Kind {
	case Primitive, PrimitiveArray:
		if !d.Primitive.Inline() {
			return fmt.Errorf("%s with %w: %v", d.Kind, primitive.ErrInvalidType, d.Primitive)
		}
	}
	return nil
}

// ReadKind reads one BinaryTypeEnumeration byte.
func ReadKind(r *binary.Reader) (Kind, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return 0, err
	}
	k := Kind(b)
	if !k.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidBinaryType, b)
	}
	return k, nil
}

// ReadAdditionalInfo completes a descriptor of the given kind by reading the
// additional info that follows it.
func ReadAdditionalInfo(r *binary.Reader, k Kind) (Descriptor, error) {
	d := Descriptor{Kind: k}
	switch k {
	case Primitive, PrimitiveArray:
		b, err := r.ReadUint8()
		if err != nil {
			return d, err
		}
		d.Primitive = primitive.Type(b)
	case SystemClass:
		name, err := r.ReadString()
		if err != nil {
			return d, err
		}
		d.ClassName = name
	case Class:
		name, err := r.ReadString()
		if err != nil {
			return d, err
		}
		lib, err := r.ReadInt32()
		if err != nil {
			return d, err
		}
		d.ClassName, d.LibraryID = name, lib
	}
	return d, d.Validate()
}

// Read reads a single descriptor: kind byte then additional info, the layout
// used by BinaryArray.
func Read(r *binary.Reader) (Descriptor, error) {
	k, err := ReadKind(r)
	if err != nil {
		return Descriptor{}, err
	}
	return ReadAdditionalInfo(r, k)
}

// ReadMembers reads a MemberTypeInfo block for n members: all n kind bytes,
// then the additional infos in member order.
func ReadMembers(r *binary.Reader, n int) ([]Descriptor, error) {
	if int64(n) > r.Remaining() {
		return nil, &binary.ReadError{Pos: r.Pos(), Err: binary.ErrTruncated}
	}
	kinds := make([]Kind, n)
	for i := range kinds {
		k, err := ReadKind(r)
		if err != nil {
			return nil, fmt.Errorf("member %d type: %w", i, err)
		}
		kinds[i] = k
	}
	types := make([]Descriptor, n)
	for i, k := range kinds {
		d, err := ReadAdditionalInfo(r, k)
		if err != nil {
			return nil, fmt.Errorf("member %d additional info: %w", i, err)
		}
		types[i] = d
	}
	return types, nil
}

// WriteAdditionalInfo writes the additional info for d, if its kind has any.
func WriteAdditionalInfo(w *binary.Writer, d Descriptor) error {
	switch d.Kind {
	case Primitive, PrimitiveArray:
		return w.WriteUint8(uint8(d.Primitive))
	case SystemClass:
		return w.WriteString(d.ClassName)
	case Class:
		if err := w.WriteString(d.ClassName); err != nil {
			return err
		}
		return w.WriteInt32(d.LibraryID)
	}
	return nil
}

// Write writes a single descriptor.
func Write(w *binary.Writer, d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(d.Kind)); err != nil {
		return err
	}
	return WriteAdditionalInfo(w, d)
}

// WriteMembers writes a MemberTypeInfo block.
func WriteMembers(w *binary.Writer, types []Descriptor) error {
	for _, d := range types {
		if err := d.Validate(); err != nil {
			return err
		}
		if err := w.WriteUint8(uint8(d.Kind)); err != nil {
			return err
		}
	}
	for _, d := range types {
		if err := WriteAdditionalInfo(w, d); err != nil {
			return err
		}
	}
	return nil
}
