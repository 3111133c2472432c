package record

import (
	"fmt"

	"github.com/robert-malhotra/go-nrbf/internal/array"
	"github.com/robert-malhotra/go-nrbf/internal/binary"
	"github.com/robert-malhotra/go-nrbf/internal/primitive"
	"github.com/robert-malhotra/go-nrbf/internal/typeinfo"
)

// writeInt32s writes the tag followed by a run of int32 fields.
func writeInt32s(w *binary.Writer, tag Tag, vs ...int32) error {
	if err := w.WriteUint8(uint8(tag)); err != nil {
		return err
	}
	for _, v := range vs {
		if err := w.WriteInt32(v); err != nil {
			return err
		}
	}
	return nil
}

func (h *Header) Serialize(w *binary.Writer) error {
	return writeInt32s(w, TagHeader, h.RootID, h.HeaderID, h.MajorVersion, h.MinorVersion)
}

func (c *ClassInfo) serialize(w *binary.Writer) error {
	if err := w.WriteInt32(c.ObjectID); err != nil {
		return err
	}
	if err := w.WriteString(c.Name); err != nil {
		return err
	}
	if err := w.WriteInt32(int32(len(c.MemberNames))); err != nil {
		return err
	}
	for _, n := range c.MemberNames {
		if err := w.WriteString(n); err != nil {
			return err
		}
	}
	return nil
}

func (r *ClassWithMembersAndTypes) Serialize(w *binary.Writer) error {
	if len(r.MemberTypes) != len(r.MemberNames) {
		return fmt.Errorf("%w: %d member types for %d members", ErrMalformed, len(r.MemberTypes), len(r.MemberNames))
	}
	if err := w.WriteUint8(uint8(TagClassWithMembersAndTypes)); err != nil {
		return err
	}
	if err := r.ClassInfo.serialize(w); err != nil {
		return err
	}
	if err := typeinfo.WriteMembers(w, r.MemberTypes); err != nil {
		return err
	}
	return w.WriteInt32(r.LibraryID)
}

func (r *SystemClassWithMembersAndTypes) Serialize(w *binary.Writer) error {
	if len(r.MemberTypes) != len(r.MemberNames) {
		return fmt.Errorf("%w: %d member types for %d members", ErrMalformed, len(r.MemberTypes), len(r.MemberNames))
	}
	if err := w.WriteUint8(uint8(TagSystemClassWithMembersAndTypes)); err != nil {
		return err
	}
	if err := r.ClassInfo.serialize(w); err != nil {
		return err
	}
	return typeinfo.WriteMembers(w, r.MemberTypes)
}

func (r *ClassWithMembers) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(uint8(TagClassWithMembers)); err != nil {
		return err
	}
	if err := r.ClassInfo.serialize(w); err != nil {
		return err
	}
	return w.WriteInt32(r.LibraryID)
}

func (r *SystemClassWithMembers) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(uint8(TagSystemClassWithMembers)); err != nil {
		return err
	}
	return r.ClassInfo.serialize(w)
}

func (r *ClassWithID) Serialize(w *binary.Writer) error {
	return writeInt32s(w, TagClassWithID, r.ObjectID, r.MetadataID)
}

func (r *BinaryObjectString) Serialize(w *binary.Writer) error {
	if err := writeInt32s(w, TagBinaryObjectString, r.ObjectID); err != nil {
		return err
	}
	return w.WriteString(r.Value)
}

func (r *BinaryArray) Serialize(w *binary.Writer) error {
	if err := writeInt32s(w, TagBinaryArray, r.ObjectID); err != nil {
		return err
	}
	if err := array.Write(w, r.Shape); err != nil {
		return err
	}
	return typeinfo.Write(w, r.ElementType)
}

func (r *ArraySinglePrimitive) Serialize(w *binary.Writer) error {
	if !r.Type.Inline() {
		return fmt.Errorf("%w: %v", primitive.ErrInvalidType, r.Type)
	}
	if err := writeInt32s(w, TagArraySinglePrimitive, r.ObjectID, int32(len(r.Values))); err != nil {
		return err
	}
	return w.WriteUint8(uint8(r.Type))
}

func (r *ArraySingleObject) Serialize(w *binary.Writer) error {
	return writeInt32s(w, TagArraySingleObject, r.ObjectID, int32(len(r.Values)))
}

func (r *ArraySingleString) Serialize(w *binary.Writer) error {
	return writeInt32s(w, TagArraySingleString, r.ObjectID, int32(len(r.Values)))
}

func (r *MemberPrimitiveTyped) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(uint8(TagMemberPrimitiveTyped)); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(r.Value.Type)); err != nil {
		return err
	}
	return primitive.Write(w, r.Value)
}

func (r *MemberReference) Serialize(w *binary.Writer) error {
	return writeInt32s(w, TagMemberReference, r.IDRef)
}

func (*ObjectNull) Serialize(w *binary.Writer) error {
	return w.WriteUint8(uint8(TagObjectNull))
}

func (r *ObjectNullMultiple256) Serialize(w *binary.Writer) error {
	return w.WriteBytes([]byte{uint8(TagObjectNullMultiple256), r.Count})
}

func (r *ObjectNullMultiple) Serialize(w *binary.Writer) error {
	return writeInt32s(w, TagObjectNullMultiple, r.Count)
}

func (*MessageEnd) Serialize(w *binary.Writer) error {
	return w.WriteUint8(uint8(TagMessageEnd))
}

func (r *BinaryLibrary) Serialize(w *binary.Writer) error {
	if err := writeInt32s(w, TagBinaryLibrary, r.LibraryID); err != nil {
		return err
	}
	return w.WriteString(r.Name)
}

// NullRun returns the record that encodes n consecutive null elements.
func NullRun(n int) Record {
	switch {
	case n == 1:
		return &ObjectNull{}
	case n <= 255:
		return &ObjectNullMultiple256{Count: uint8(n)}
	default:
		return &ObjectNullMultiple{Count: int32(n)}
	}
}
