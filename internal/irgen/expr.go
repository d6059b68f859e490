package irgen

import (
	"fmt"

	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/ir"
	"kalmap/internal/source"
)

// funcGen holds the state of one function being lowered.
type funcGen struct {
	g     *Generator
	exprs *ast.Exprs
	fn    *ir.Func
	b     *ir.Builder
	scope *scope
}

func newFuncGen(g *Generator, exprs *ast.Exprs, fn *ir.Func) *funcGen {
	return &funcGen{g: g, exprs: exprs, fn: fn, b: ir.NewBuilder(fn), scope: newScope()}
}

func (fg *funcGen) span(id ast.ExprID) source.Span {
	if e := fg.exprs.Get(id); e != nil {
		return e.Span
	}
	return source.Span{}
}

func (fg *funcGen) fail(code diag.Code, sp source.Span, msg string) (ir.Operand, bool) {
	fg.g.report(code, sp, msg)
	return ir.Operand{}, false
}

// expr lowers one expression and returns the operand holding its value.
func (fg *funcGen) expr(id ast.ExprID) (ir.Operand, bool) {
	e := fg.exprs.Get(id)
	if e == nil {
		return fg.fail(diag.SemInternal, source.Span{}, "missing expression node")
	}
	switch e.Kind {
	case ast.ExprNumber:
		n, _ := fg.exprs.Number(id)
		return ir.ConstF64(n.Value), true
	case ast.ExprVariable:
		v, _ := fg.exprs.Variable(id)
		slot, ok := fg.scope.lookup(v.Name)
		if !ok {
			return fg.fail(diag.SemUnknownVariable, e.Span, "Unknown variable name "+v.Name)
		}
		return fg.b.Load(slot, v.Name), true
	case ast.ExprUnary:
		return fg.unary(id, e)
	case ast.ExprBinary:
		return fg.binary(id, e)
	case ast.ExprCall:
		return fg.call(id, e)
	case ast.ExprMap:
		return fg.mapExpr(id, e)
	case ast.ExprIf:
		return fg.ifExpr(id, e)
	case ast.ExprFor:
		return fg.forExpr(id, e)
	case ast.ExprVar:
		return fg.varExpr(id, e)
	}
	return fg.fail(diag.SemInternal, e.Span, fmt.Sprintf("unexpected expression kind %s", e.Kind))
}

func (fg *funcGen) unary(id ast.ExprID, e *ast.Expr) (ir.Operand, bool) {
	u, _ := fg.exprs.Unary(id)
	operand, ok := fg.expr(u.Operand)
	if !ok {
		return ir.Operand{}, false
	}
	name := "unary" + string([]byte{u.Op})
	f := fg.g.mod.Func(name)
	if f == nil {
		return fg.fail(diag.SemUnknownUnary, e.Span, fmt.Sprintf("Unknown unary operator '%c'", u.Op))
	}
	if len(f.Params) != 1 {
		return fg.fail(diag.SemArityMismatch, e.Span, "Incorrect # arguments passed")
	}
	if f.Params[0].Type != operand.Type {
		return fg.fail(diag.SemTypeMismatch, e.Span,
			fmt.Sprintf("operator '%c' expects %s, got %s", u.Op, astType(f.Params[0].Type), astType(operand.Type)))
	}
	return fg.b.Call(name, f.Result, []ir.Operand{operand}, "unop"), true
}

func (fg *funcGen) binary(id ast.ExprID, e *ast.Expr) (ir.Operand, bool) {
	bin, _ := fg.exprs.Binary(id)
	if bin.Op == '=' {
		return fg.assign(bin, e)
	}

	l, ok := fg.expr(bin.Left)
	if !ok {
		return ir.Operand{}, false
	}
	r, ok := fg.expr(bin.Right)
	if !ok {
		return ir.Operand{}, false
	}
	if l.Type != r.Type {
		return fg.fail(diag.SemTypeMismatch, e.Span,
			fmt.Sprintf("operands of '%c' have different types: %s and %s", bin.Op, astType(l.Type), astType(r.Type)))
	}

	var kind ir.InstrKind
	switch bin.Op {
	case '+':
		kind = ir.InstrFAdd
	case '-':
		kind = ir.InstrFSub
	case '*':
		kind = ir.InstrFMul
	case '/':
		kind = ir.InstrFDiv
	case '<', '>':
	default:
		return fg.userBinary(bin, e, l, r)
	}
	if l.Type != ir.TypeF64 {
		return fg.fail(diag.SemTypeMismatch, e.Span, fmt.Sprintf("operator '%c' needs scalar operands", bin.Op))
	}
	switch bin.Op {
	case '<':
		c := fg.b.FCmp(ir.PredULT, l, r, "cmptmp")
		return fg.b.UIToFP(c, "booltmp"), true
	case '>':
		c := fg.b.FCmp(ir.PredUGT, l, r, "cmptmp")
		return fg.b.UIToFP(c, "booltmp"), true
	}
	return fg.b.Binary(kind, l, r, "binop"), true
}

func (fg *funcGen) assign(bin *ast.ExprBinaryData, e *ast.Expr) (ir.Operand, bool) {
	target, isVar := fg.exprs.Variable(bin.Left)
	if !isVar {
		return fg.fail(diag.SemAssignTarget, fg.span(bin.Left), "destination of '=' must be a variable")
	}
	val, ok := fg.expr(bin.Right)
	if !ok {
		return ir.Operand{}, false
	}
	slot, ok := fg.scope.lookup(target.Name)
	if !ok {
		return fg.fail(diag.SemUnknownVariable, fg.span(bin.Left), "Unknown variable name "+target.Name)
	}
	if slot.Type.Elem() != val.Type {
		return fg.fail(diag.SemTypeMismatch, e.Span,
			fmt.Sprintf("cannot assign %s to %s variable %s", astType(val.Type), astType(slot.Type.Elem()), target.Name))
	}
	fg.b.Store(val, slot)
	return val, true
}

// userBinary calls the binary<op> function. The parser only accepts
// operators present in the table, and the table only holds operators whose
// definition is compiled, so a miss is a compiler bug.
func (fg *funcGen) userBinary(bin *ast.ExprBinaryData, e *ast.Expr, l, r ir.Operand) (ir.Operand, bool) {
	name := "binary" + string([]byte{bin.Op})
	f := fg.g.mod.Func(name)
	if f == nil {
		return fg.fail(diag.SemInternal, e.Span, fmt.Sprintf("binary operator '%c' not found", bin.Op))
	}
	if len(f.Params) != 2 {
		return fg.fail(diag.SemArityMismatch, e.Span, "Incorrect # arguments passed")
	}
	if f.Params[0].Type != l.Type || f.Params[1].Type != r.Type {
		return fg.fail(diag.SemTypeMismatch, e.Span, fmt.Sprintf("operand types do not match operator '%c'", bin.Op))
	}
	return fg.b.Call(name, f.Result, []ir.Operand{l, r}, "binop"), true
}

func (fg *funcGen) call(id ast.ExprID, e *ast.Expr) (ir.Operand, bool) {
	c, _ := fg.exprs.Call(id)
	f := fg.g.mod.Func(c.Callee)
	if f == nil {
		return fg.fail(diag.SemUnknownFunction, e.Span, "Unknown function referenced: "+c.Callee)
	}
	if len(f.Params) != len(c.Args) {
		return fg.fail(diag.SemArityMismatch, e.Span,
			fmt.Sprintf("Incorrect # arguments passed to %s: got %d, want %d", c.Callee, len(c.Args), len(f.Params)))
	}
	args := make([]ir.Operand, len(c.Args))
	for i, a := range c.Args {
		v, ok := fg.expr(a)
		if !ok {
			return ir.Operand{}, false
		}
		if v.Type != f.Params[i].Type {
			return fg.fail(diag.SemTypeMismatch, fg.span(a),
				fmt.Sprintf("argument %d of %s must be %s, got %s", i+1, c.Callee, astType(f.Params[i].Type), astType(v.Type)))
		}
		args[i] = v
	}
	if f.Result == ir.TypeVoid {
		fg.b.Call(c.Callee, f.Result, args, "")
		return ir.ConstF64(0), true
	}
	return fg.b.Call(c.Callee, f.Result, args, "calltmp"), true
}
