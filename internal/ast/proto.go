package ast

import (
	"kalmap/internal/source"
)

// Type is the static type of an expression or parameter.
type Type uint8

const (
	TypeScalar Type = iota
	TypeVector
)

func (t Type) String() string {
	if t == TypeVector {
		return "vector"
	}
	return "double"
}

// ProtoKind tells ordinary functions from operator definitions.
type ProtoKind uint8

const (
	ProtoFunction ProtoKind = iota
	ProtoUnary
	ProtoBinary
)

// DefaultPrecedence applies to binary operators declared without one.
const DefaultPrecedence = 30

type Param struct {
	Name string
	Type Type
	Span source.Span
}

// Prototype is a function signature. Operators are named "unary"+op or
// "binary"+op; OpChar holds op.
type Prototype struct {
	Name       string
	Span       source.Span
	Params     []Param
	Result     Type
	Kind       ProtoKind
	OpChar     byte
	Precedence int
}

// IsOperator reports whether the prototype defines a unary or binary operator.
func (p *Prototype) IsOperator() bool {
	return p.Kind != ProtoFunction
}

// ParamTypes returns the parameter types in order.
func (p *Prototype) ParamTypes() []Type {
	out := make([]Type, len(p.Params))
	for i, prm := range p.Params {
		out[i] = prm.Type
	}
	return out
}

// FuncDecl is a definition: a prototype with a body.
type FuncDecl struct {
	Proto Prototype
	Body  ExprID
}

// AnonExprName names the function that wraps a top-level expression.
const AnonExprName = "__anon_expr"
