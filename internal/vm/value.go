// Package vm interprets IR modules on the host. It is the execution engine
// for top-level expressions and everything they call; external functions
// resolve to Go natives registered by name.
package vm

import (
	"fmt"

	"kalmap/internal/ir"
)

// ValueKind identifies the runtime type of a Value.
type ValueKind uint8

const (
	// VKInvalid represents an unset value.
	VKInvalid ValueKind = iota
	// VKFloat represents a double.
	VKFloat
	// VKBool represents an i1.
	VKBool
	// VKInt represents an i32.
	VKInt
	// VKPtr represents a pointer into VM memory.
	VKPtr
	// VKVec represents a dvec aggregate.
	VKVec
)

// Handle identifies a heap object. Handles are never reused within a VM.
type Handle uint64

// Pointer addresses element Off of a heap object. The zero Pointer is null.
type Pointer struct {
	Obj Handle
	Off int
}

func (p Pointer) IsNull() bool { return p.Obj == 0 }

// Vector is the runtime form of dvec: a pointer to Len doubles.
type Vector struct {
	Data Pointer
	Len  int32
}

// Value is a runtime value.
type Value struct {
	Kind ValueKind
	F    float64
	I    int64
	Ptr  Pointer
	Vec  Vector
}

func Float(v float64) Value { return Value{Kind: VKFloat, F: v} }

func Bool(v bool) Value {
	if v {
		return Value{Kind: VKBool, I: 1}
	}
	return Value{Kind: VKBool}
}

func Int(v int32) Value { return Value{Kind: VKInt, I: int64(v)} }

func Ptr(p Pointer) Value { return Value{Kind: VKPtr, Ptr: p} }

func Vec(v Vector) Value { return Value{Kind: VKVec, Vec: v} }

func (v Value) String() string {
	switch v.Kind {
	case VKFloat:
		return fmt.Sprintf("%f", v.F)
	case VKBool:
		return fmt.Sprintf("%t", v.I != 0)
	case VKInt:
		return fmt.Sprintf("%d", v.I)
	case VKPtr:
		if v.Ptr.IsNull() {
			return "null"
		}
		return fmt.Sprintf("ptr(#%d+%d)", v.Ptr.Obj, v.Ptr.Off)
	case VKVec:
		return fmt.Sprintf("dvec{#%d+%d, %d}", v.Vec.Data.Obj, v.Vec.Data.Off, v.Vec.Len)
	}
	return "invalid"
}

// zeroOf returns the zero value for an IR type.
func zeroOf(t ir.Type) Value {
	switch t {
	case ir.TypeF64:
		return Float(0)
	case ir.TypeI1:
		return Bool(false)
	case ir.TypeI32:
		return Int(0)
	case ir.TypeVec:
		return Vec(Vector{})
	case ir.TypePtrF64, ir.TypePtrVec, ir.TypePtrI8:
		return Ptr(Pointer{})
	}
	return Value{}
}
