package ast

import (
	"kalmap/internal/source"
)

// Exprs manages allocation of expressions.
type Exprs struct {
	Arena     *Arena[Expr]
	Numbers   *Arena[ExprNumberData]
	Variables *Arena[ExprVariableData]
	Unaries   *Arena[ExprUnaryData]
	Binaries  *Arena[ExprBinaryData]
	Calls     *Arena[ExprCallData]
	Maps      *Arena[ExprMapData]
	Ifs       *Arena[ExprIfData]
	Fors      *Arena[ExprForData]
	Vars      *Arena[ExprVarData]
}

// NewExprs creates per-kind arenas preallocated with capHint (default 1<<6).
func NewExprs(capHint uint) *Exprs {
	if capHint == 0 {
		capHint = 1 << 6
	}
	return &Exprs{
		Arena:     NewArena[Expr](capHint),
		Numbers:   NewArena[ExprNumberData](capHint),
		Variables: NewArena[ExprVariableData](capHint),
		Unaries:   NewArena[ExprUnaryData](capHint / 4),
		Binaries:  NewArena[ExprBinaryData](capHint),
		Calls:     NewArena[ExprCallData](capHint / 2),
		Maps:      NewArena[ExprMapData](capHint / 8),
		Ifs:       NewArena[ExprIfData](capHint / 4),
		Fors:      NewArena[ExprForData](capHint / 8),
		Vars:      NewArena[ExprVarData](capHint / 8),
	}
}

// Reset releases every node so the arenas can be reused for the next unit.
func (e *Exprs) Reset() {
	e.Arena.Reset()
	e.Numbers.Reset()
	e.Variables.Reset()
	e.Unaries.Reset()
	e.Binaries.Reset()
	e.Calls.Reset()
	e.Maps.Reset()
	e.Ifs.Reset()
	e.Fors.Reset()
	e.Vars.Reset()
}

func (e *Exprs) new(kind ExprKind, span source.Span, payload uint32) ExprID {
	return ExprID(e.Arena.Allocate(Expr{
		Kind:    kind,
		Span:    span,
		Payload: PayloadID(payload),
	}))
}

// Get returns the expression with the given ID.
func (e *Exprs) Get(id ExprID) *Expr {
	return e.Arena.Get(uint32(id))
}

func (e *Exprs) payload(id ExprID, kind ExprKind) (uint32, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != kind {
		return 0, false
	}
	return uint32(expr.Payload), true
}

func (e *Exprs) NewNumber(span source.Span, v float64) ExprID {
	return e.new(ExprNumber, span, e.Numbers.Allocate(ExprNumberData{Value: v}))
}

func (e *Exprs) Number(id ExprID) (*ExprNumberData, bool) {
	p, ok := e.payload(id, ExprNumber)
	if !ok {
		return nil, false
	}
	return e.Numbers.Get(p), true
}

func (e *Exprs) NewVariable(span source.Span, name string) ExprID {
	return e.new(ExprVariable, span, e.Variables.Allocate(ExprVariableData{Name: name}))
}

func (e *Exprs) Variable(id ExprID) (*ExprVariableData, bool) {
	p, ok := e.payload(id, ExprVariable)
	if !ok {
		return nil, false
	}
	return e.Variables.Get(p), true
}

func (e *Exprs) NewUnary(span source.Span, op byte, operand ExprID) ExprID {
	return e.new(ExprUnary, span, e.Unaries.Allocate(ExprUnaryData{Op: op, Operand: operand}))
}

func (e *Exprs) Unary(id ExprID) (*ExprUnaryData, bool) {
	p, ok := e.payload(id, ExprUnary)
	if !ok {
		return nil, false
	}
	return e.Unaries.Get(p), true
}

func (e *Exprs) NewBinary(span source.Span, op byte, left, right ExprID) ExprID {
	return e.new(ExprBinary, span, e.Binaries.Allocate(ExprBinaryData{Op: op, Left: left, Right: right}))
}

func (e *Exprs) Binary(id ExprID) (*ExprBinaryData, bool) {
	p, ok := e.payload(id, ExprBinary)
	if !ok {
		return nil, false
	}
	return e.Binaries.Get(p), true
}

func (e *Exprs) NewCall(span source.Span, callee string, args []ExprID) ExprID {
	payload := e.Calls.Allocate(ExprCallData{
		Callee: callee,
		Args:   append([]ExprID(nil), args...),
	})
	return e.new(ExprCall, span, payload)
}

func (e *Exprs) Call(id ExprID) (*ExprCallData, bool) {
	p, ok := e.payload(id, ExprCall)
	if !ok {
		return nil, false
	}
	return e.Calls.Get(p), true
}

func (e *Exprs) NewMap(span source.Span, callee string, calleeSpan source.Span, args []ExprID) ExprID {
	payload := e.Maps.Allocate(ExprMapData{
		Callee:     callee,
		CalleeSpan: calleeSpan,
		Args:       append([]ExprID(nil), args...),
	})
	return e.new(ExprMap, span, payload)
}

func (e *Exprs) Map(id ExprID) (*ExprMapData, bool) {
	p, ok := e.payload(id, ExprMap)
	if !ok {
		return nil, false
	}
	return e.Maps.Get(p), true
}

func (e *Exprs) NewIf(span source.Span, cond, then, els ExprID) ExprID {
	return e.new(ExprIf, span, e.Ifs.Allocate(ExprIfData{Cond: cond, Then: then, Else: els}))
}

func (e *Exprs) If(id ExprID) (*ExprIfData, bool) {
	p, ok := e.payload(id, ExprIf)
	if !ok {
		return nil, false
	}
	return e.Ifs.Get(p), true
}

func (e *Exprs) NewFor(span source.Span, data ExprForData) ExprID {
	return e.new(ExprFor, span, e.Fors.Allocate(data))
}

func (e *Exprs) For(id ExprID) (*ExprForData, bool) {
	p, ok := e.payload(id, ExprFor)
	if !ok {
		return nil, false
	}
	return e.Fors.Get(p), true
}

func (e *Exprs) NewVar(span source.Span, bindings []VarBinding, body ExprID) ExprID {
	payload := e.Vars.Allocate(ExprVarData{
		Bindings: append([]VarBinding(nil), bindings...),
		Body:     body,
	})
	return e.new(ExprVar, span, payload)
}

func (e *Exprs) Var(id ExprID) (*ExprVarData, bool) {
	p, ok := e.payload(id, ExprVar)
	if !ok {
		return nil, false
	}
	return e.Vars.Get(p), true
}
