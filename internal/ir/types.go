package ir

import "fmt"

// Type is an IR value type. The set mirrors what the language lowers to:
// doubles, booleans from comparisons, 32-bit indices, the dvec aggregate
// {double*, i32} and pointers to those.
type Type uint8

const (
	TypeVoid Type = iota
	TypeF64
	TypeI1
	TypeI32
	TypePtrF64
	TypeVec
	TypePtrVec
	TypePtrI8
)

func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeF64:
		return "double"
	case TypeI1:
		return "i1"
	case TypeI32:
		return "i32"
	case TypePtrF64:
		return "double*"
	case TypeVec:
		return "%dvec"
	case TypePtrVec:
		return "%dvec*"
	case TypePtrI8:
		return "i8*"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// IsPointer reports whether t is a pointer type.
func (t Type) IsPointer() bool {
	return t == TypePtrF64 || t == TypePtrVec || t == TypePtrI8
}

// Elem returns the pointee of a loadable pointer type, or TypeVoid.
func (t Type) Elem() Type {
	switch t {
	case TypePtrF64:
		return TypeF64
	case TypePtrVec:
		return TypeVec
	}
	return TypeVoid
}

// PtrTo returns the pointer type for elem, or TypeVoid if none exists.
func PtrTo(elem Type) Type {
	switch elem {
	case TypeF64:
		return TypePtrF64
	case TypeVec:
		return TypePtrVec
	}
	return TypeVoid
}
