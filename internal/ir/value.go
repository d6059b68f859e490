package ir

import (
	"fmt"
	"strconv"
)

// ValueID numbers SSA values inside one function, starting at 1.
type ValueID uint32

const NoValue ValueID = 0

// OperandKind enumerates operand sources.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandConst
	OperandValue
	OperandParam
	OperandGlobal
)

// Operand is an instruction input. Float constants live in F, integer and
// boolean constants in I.
type Operand struct {
	Kind   OperandKind `msgpack:"k"`
	Type   Type        `msgpack:"t"`
	F      float64     `msgpack:"f,omitempty"`
	I      int64       `msgpack:"i,omitempty"`
	Value  ValueID     `msgpack:"v,omitempty"`
	Param  int         `msgpack:"p,omitempty"`
	Global string      `msgpack:"g,omitempty"`
}

func ConstF64(v float64) Operand { return Operand{Kind: OperandConst, Type: TypeF64, F: v} }

func ConstI32(v int32) Operand { return Operand{Kind: OperandConst, Type: TypeI32, I: int64(v)} }

// GlobalRef refers to a module global string by name; its type is i8*.
func GlobalRef(name string) Operand {
	return Operand{Kind: OperandGlobal, Type: TypePtrI8, Global: name}
}

// ValueRef refers to the result of an instruction.
func ValueRef(id ValueID, t Type) Operand {
	return Operand{Kind: OperandValue, Type: t, Value: id}
}

// ParamRef refers to the i-th parameter of the enclosing function.
func ParamRef(i int, t Type) Operand {
	return Operand{Kind: OperandParam, Type: t, Param: i}
}

// IsValid reports whether the operand is set.
func (o Operand) IsValid() bool { return o.Kind != OperandNone }

func (o Operand) String() string {
	switch o.Kind {
	case OperandConst:
		switch o.Type {
		case TypeF64:
			return formatFloat(o.F)
		case TypeI1:
			if o.I != 0 {
				return "true"
			}
			return "false"
		default:
			return strconv.FormatInt(o.I, 10)
		}
	case OperandValue:
		return fmt.Sprintf("%%%d", o.Value)
	case OperandParam:
		return fmt.Sprintf("%%arg%d", o.Param)
	case OperandGlobal:
		return "@" + o.Global
	}
	return "<none>"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'e', 6, 64)
}
