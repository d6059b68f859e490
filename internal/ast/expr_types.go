package ast

import (
	"kalmap/internal/source"
)

// ExprKind enumerates the different kinds of expressions. The set is closed:
// every consumer switches over all of them.
type ExprKind uint8

const (
	// ExprNumber is a numeric literal.
	ExprNumber ExprKind = iota + 1
	// ExprVariable references a named variable.
	ExprVariable
	// ExprUnary applies a user-defined prefix operator.
	ExprUnary
	// ExprBinary applies a built-in or user-defined infix operator.
	ExprBinary
	// ExprCall calls a function by name.
	ExprCall
	// ExprMap applies a scalar function element-wise over vectors.
	ExprMap
	// ExprIf is if/then/else.
	ExprIf
	// ExprFor is the for/in loop; it always evaluates to 0.0.
	ExprFor
	// ExprVar introduces local bindings for its body.
	ExprVar
)

func (k ExprKind) String() string {
	switch k {
	case ExprNumber:
		return "Number"
	case ExprVariable:
		return "Variable"
	case ExprUnary:
		return "Unary"
	case ExprBinary:
		return "Binary"
	case ExprCall:
		return "Call"
	case ExprMap:
		return "Map"
	case ExprIf:
		return "If"
	case ExprFor:
		return "For"
	case ExprVar:
		return "Var"
	}
	return "Invalid"
}

// Expr represents an expression node in the AST.
type Expr struct {
	Kind    ExprKind
	Span    source.Span
	Payload PayloadID
}

type ExprNumberData struct {
	Value float64
}

type ExprVariableData struct {
	Name string
}

type ExprUnaryData struct {
	Op      byte
	Operand ExprID
}

type ExprBinaryData struct {
	Op    byte
	Left  ExprID
	Right ExprID
}

type ExprCallData struct {
	Callee string
	Args   []ExprID
}

type ExprMapData struct {
	Callee     string
	CalleeSpan source.Span
	Args       []ExprID
}

type ExprIfData struct {
	Cond ExprID
	Then ExprID
	Else ExprID
}

// ExprForData describes `for Var = Start, End [, Step] in Body`.
// End is the loop condition, re-evaluated before each iteration.
type ExprForData struct {
	Var   string
	Start ExprID
	End   ExprID
	Step  ExprID // NoExprID means 1.0
	Body  ExprID
}

// VarBinding is one entry of a var list. Vector bindings carry Length and
// never an initializer; scalar bindings may omit Init (0.0).
type VarBinding struct {
	Name   string
	Span   source.Span
	Init   ExprID
	Length ExprID
}

// IsVector reports whether the binding allocates a vector.
func (b VarBinding) IsVector() bool { return b.Length.IsValid() }

type ExprVarData struct {
	Bindings []VarBinding
	Body     ExprID
}
