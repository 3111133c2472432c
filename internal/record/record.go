// Package record reads and writes NRBF records.
//
// A stream is a flat sequence of tagged records. Records that define an
// object may be followed by value slots (class members or array elements);
// a slot is either an inline primitive or another record. The reader turns
// that nesting into a flat table: every object-defining record is appended
// to the table when it is met, and the slot that held it keeps only the
// object id.
package record

import (
	"fmt"

	"github.com/robert-malhotra/go-nrbf/internal/array"
	"github.com/robert-malhotra/go-nrbf/internal/binary"
	"github.com/robert-malhotra/go-nrbf/internal/primitive"
	"github.com/robert-malhotra/go-nrbf/internal/typeinfo"
)

// Tag is the RecordTypeEnumeration.
type Tag uint8

const (
	TagHeader                         Tag = 0
	TagClassWithID                    Tag = 1
	TagSystemClassWithMembers         Tag = 2
	TagClassWithMembers               Tag = 3
	TagSystemClassWithMembersAndTypes Tag = 4
	TagClassWithMembersAndTypes       Tag = 5
	TagBinaryObjectString             Tag = 6
	TagBinaryArray                    Tag = 7
	TagMemberPrimitiveTyped           Tag = 8
	TagMemberReference                Tag = 9
	TagObjectNull                     Tag = 10
	TagMessageEnd                     Tag = 11
	TagBinaryLibrary                  Tag = 12
	TagObjectNullMultiple256          Tag = 13
	TagObjectNullMultiple             Tag = 14
	TagArraySinglePrimitive           Tag = 15
	TagArraySingleObject              Tag = 16
	TagArraySingleString              Tag = 17
	TagMethodCall                     Tag = 21
	TagMethodReturn                   Tag = 22
)

var tagNames = map[Tag]string{
	TagHeader:                         "SerializedStreamHeader",
	TagClassWithID:                    "ClassWithId",
	TagSystemClassWithMembers:         "SystemClassWithMembers",
	TagClassWithMembers:               "ClassWithMembers",
	TagSystemClassWithMembersAndTypes: "SystemClassWithMembersAndTypes",
	TagClassWithMembersAndTypes:       "ClassWithMembersAndTypes",
	TagBinaryObjectString:             "BinaryObjectString",
	TagBinaryArray:                    "BinaryArray",
	TagMemberPrimitiveTyped:           "MemberPrimitiveTyped",
	TagMemberReference:                "MemberReference",
	TagObjectNull:                     "ObjectNull",
	TagMessageEnd:                     "MessageEnd",
	TagBinaryLibrary:                  "BinaryLibrary",
	TagObjectNullMultiple256:          "ObjectNullMultiple256",
	TagObjectNullMultiple:             "ObjectNullMultiple",
	TagArraySinglePrimitive:           "ArraySinglePrimitive",
	TagArraySingleObject:              "ArraySingleObject",
	TagArraySingleString:              "ArraySingleString",
	TagMethodCall:                     "MethodCall",
	TagMethodReturn:                   "MethodReturn",
}

func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return fmt.Sprintf("RecordType(%d)", uint8(t))
}

// Record is implemented by every record variant.
type Record interface {
	Tag() Tag
	// Serialize writes the tag and the record's own fields. Value slots
	// are not part of the record and are written by the caller.
	Serialize(w *binary.Writer) error
}

// Object is implemented by records that define an object id.
type Object interface {
	Record
	ID() int32
}

// Composite is implemented by object records followed by value slots.
type Composite interface {
	Object
	Slots() []Slot
	// SlotType returns the declared type of slot i.
	SlotType(i int) typeinfo.Descriptor
}

// SlotKind says what a value slot holds.
type SlotKind uint8

const (
	SlotNull SlotKind = iota
	SlotPrimitive
	SlotRef
)

// Slot is one decoded member or element value.
type Slot struct {
	Kind      SlotKind
	Primitive primitive.Value
	Ref       int32
}

func NullSlot() Slot                         { return Slot{} }
func PrimitiveSlot(v primitive.Value) Slot { return Slot{Kind: SlotPrimitive, Primitive: v} }
func RefSlot(id int32) Slot                  { return Slot{Kind: SlotRef, Ref: id} }

func (s Slot) String() string {
	switch s.Kind {
	case SlotPrimitive:
		return s.Primitive.String()
	case SlotRef:
		return fmt.Sprintf("@%d", s.Ref)
	default:
		return "null"
	}
}

// Header is the SerializedStreamHeader.
type Header struct {
	RootID       int32
	HeaderID     int32
	MajorVersion int32
	MinorVersion int32
}

func (*Header) Tag() Tag { return TagHeader }

// ClassInfo is the common prefix of the class-defining records.
type ClassInfo struct {
	ObjectID    int32
	Name        string
	MemberNames []string
}

// ClassWithMembersAndTypes defines a class with member types in a library.
type ClassWithMembersAndTypes struct {
	ClassInfo
	MemberTypes []typeinfo.Descriptor
	LibraryID   int32
	Values      []Slot
}

// SystemClassWithMembersAndTypes defines a class with member types in the
// system library.
type SystemClassWithMembersAndTypes struct {
	ClassInfo
	MemberTypes []typeinfo.Descriptor
	Values      []Slot
}

// ClassWithMembers defines a class without member types; every member is
// read as an Object slot.
type ClassWithMembers struct {
	ClassInfo
	LibraryID int32
	Values    []Slot
}

// SystemClassWithMembers is ClassWithMembers in the system library.
type SystemClassWithMembers struct {
	ClassInfo
	Values []Slot
}

// ClassWithID is an instance of a class whose metadata was defined by the
// record with object id MetadataID.
type ClassWithID struct {
	ObjectID   int32
	MetadataID int32
	Values     []Slot

	// types is the schema borrowed from the defining record.
	types []typeinfo.Descriptor
}

type BinaryObjectString struct {
	ObjectID int32
	Value    string
}

// BinaryArray is the general array record.
type BinaryArray struct {
	ObjectID    int32
	Shape       array.Shape
	ElementType typeinfo.Descriptor
	Values      []Slot
}

type ArraySinglePrimitive struct {
	ObjectID int32
	Type     primitive.Type
	Values   []Slot
}

type ArraySingleObject struct {
	ObjectID int32
	Values   []Slot
}

type ArraySingleString struct {
	ObjectID int32
	Values   []Slot
}

type MemberPrimitiveTyped struct {
	Value primitive.Value
}

type MemberReference struct {
	IDRef int32
}

type ObjectNull struct{}

type ObjectNullMultiple256 struct {
	Count uint8
}

type ObjectNullMultiple struct {
	Count int32
}

type MessageEnd struct{}

type BinaryLibrary struct {
	LibraryID int32
	Name      string
}

func (*ClassWithMembersAndTypes) Tag() Tag       { return TagClassWithMembersAndTypes }
func (*SystemClassWithMembersAndTypes) Tag() Tag { return TagSystemClassWithMembersAndTypes }
func (*ClassWithMembers) Tag() Tag               { return TagClassWithMembers }
func (*SystemClassWithMembers) Tag() Tag         { return TagSystemClassWithMembers }
func (*ClassWithID) Tag() Tag                    { return TagClassWithID }
func (*BinaryObjectString) Tag() Tag             { return TagBinaryObjectString }
func (*BinaryArray) Tag() Tag                    { return TagBinaryArray }
func (*ArraySinglePrimitive) Tag() Tag           { return TagArraySinglePrimitive }
func (*ArraySingleObject) Tag() Tag              { return TagArraySingleObject }
func (*ArraySingleString) Tag() Tag              { return TagArraySingleString }
func (*MemberPrimitiveTyped) Tag() Tag           { return TagMemberPrimitiveTyped }
func (*MemberReference) Tag() Tag                { return TagMemberReference }
func (*ObjectNull) Tag() Tag                     { return TagObjectNull }
func (*ObjectNullMultiple256) Tag() Tag          { return TagObjectNullMultiple256 }
func (*ObjectNullMultiple) Tag() Tag             { return TagObjectNullMultiple }
func (*MessageEnd) Tag() Tag                     { return TagMessageEnd }
func (*BinaryLibrary) Tag() Tag                  { return TagBinaryLibrary }

func (r *ClassWithMembersAndTypes) ID() int32       { return r.ObjectID }
func (r *SystemClassWithMembersAndTypes) ID() int32 { return r.ObjectID }
func (r *ClassWithMembers) ID() int32               { return r.ObjectID }
func (r *SystemClassWithMembers) ID() int32         { return r.ObjectID }
func (r *ClassWithID) ID() int32                    { return r.ObjectID }
func (r *BinaryObjectString) ID() int32             { return r.ObjectID }
func (r *BinaryArray) ID() int32                    { return r.ObjectID }
func (r *ArraySinglePrimitive) ID() int32           { return r.ObjectID }
func (r *ArraySingleObject) ID() int32              { return r.ObjectID }
func (r *ArraySingleString) ID() int32              { return r.ObjectID }

func (r *ClassWithMembersAndTypes) Slots() []Slot       { return r.Values }
func (r *SystemClassWithMembersAndTypes) Slots() []Slot { return r.Values }
func (r *ClassWithMembers) Slots() []Slot               { return r.Values }
func (r *SystemClassWithMembers) Slots() []Slot         { return r.Values }
func (r *ClassWithID) Slots() []Slot                    { return r.Values }
func (r *BinaryArray) Slots() []Slot                    { return r.Values }
func (r *ArraySinglePrimitive) Slots() []Slot           { return r.Values }
func (r *ArraySingleObject) Slots() []Slot              { return r.Values }
func (r *ArraySingleString) Slots() []Slot              { return r.Values }

func (r *ClassWithMembersAndTypes) SlotType(i int) typeinfo.Descriptor       { return r.MemberTypes[i] }
func (r *SystemClassWithMembersAndTypes) SlotType(i int) typeinfo.Descriptor { return r.MemberTypes[i] }
func (r *ClassWithMembers) SlotType(int) typeinfo.Descriptor                 { return typeinfo.ObjectType }
func (r *SystemClassWithMembers) SlotType(int) typeinfo.Descriptor           { return typeinfo.ObjectType }
func (r *ClassWithID) SlotType(i int) typeinfo.Descriptor                    { return r.types[i] }
func (r *BinaryArray) SlotType(int) typeinfo.Descriptor                      { return r.ElementType }
func (r *ArraySinglePrimitive) SlotType(int) typeinfo.Descriptor             { return typeinfo.PrimitiveOf(r.Type) }
func (r *ArraySingleObject) SlotType(int) typeinfo.Descriptor                { return typeinfo.ObjectType }
func (r *ArraySingleString) SlotType(int) typeinfo.Descriptor                { return typeinfo.StringType }

// MemberTypes returns the declared member types of a class-defining record,
// with Object for every member of the untyped variants. ok is false for
// records that do not define a class.
func MemberTypes(r Record) (types []typeinfo.Descriptor, ok bool) {
	switch c := r.(type) {
	case *ClassWithMembersAndTypes:
		return c.MemberTypes, true
	case *SystemClassWithMembersAndTypes:
		return c.MemberTypes, true
	case *ClassWithMembers:
		return objectTypes(len(c.MemberNames)), true
	case *SystemClassWithMembers:
		return objectTypes(len(c.MemberNames)), true
	}
	return nil, false
}

func objectTypes(n int) []typeinfo.Descriptor {
	types := make([]typeinfo.Descriptor, n)
	for i := range types {
		types[i] = typeinfo.ObjectType
	}
	return types
}

// Class returns the ClassInfo and library id of a class-defining record.
// The library id is 0 for the system variants.
func Class(r Record) (info *ClassInfo, libraryID int32, ok bool) {
	switch c := r.(type) {
	case *ClassWithMembersAndTypes:
		return &c.ClassInfo, c.LibraryID, true
	case *SystemClassWithMembersAndTypes:
		return &c.ClassInfo, 0, true
	case *ClassWithMembers:
		return &c.ClassInfo, c.LibraryID, true
	case *SystemClassWithMembers:
		return &c.ClassInfo, 0, true
	}
	return nil, 0, false
}

// ArrayShape returns the shape of an array record. The compact single
// array records have a Single shape of their length.
func ArrayShape(r Record) (array.Shape, bool) {
	switch a := r.(type) {
	case *BinaryArray:
		return a.Shape, true
	case *ArraySinglePrimitive:
		return array.NewSingle(int32(len(a.Values))), true
	case *ArraySingleObject:
		return array.NewSingle(int32(len(a.Values))), true
	case *ArraySingleString:
		return array.NewSingle(int32(len(a.Values))), true
	}
	return array.Shape{}, false
}
