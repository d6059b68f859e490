package irgen

import (
	"fmt"

	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/ir"
)

// cond lowers a scalar condition to an i1 "value != 0.0".
func (fg *funcGen) cond(id ast.ExprID, what string) (ir.Operand, bool) {
	v, ok := fg.expr(id)
	if !ok {
		return ir.Operand{}, false
	}
	if v.Type != ir.TypeF64 {
		return fg.fail(diag.SemTypeMismatch, fg.span(id), what+" condition must be a scalar")
	}
	return fg.b.FCmp(ir.PredONE, v, ir.ConstF64(0), what+"cond"), true
}

func (fg *funcGen) ifExpr(id ast.ExprID, e *ast.Expr) (ir.Operand, bool) {
	data, _ := fg.exprs.If(id)
	c, ok := fg.cond(data.Cond, "if")
	if !ok {
		return ir.Operand{}, false
	}
	thenBB := fg.b.NewBlock("then")
	elseBB := fg.b.NewBlock("else")
	mergeBB := fg.b.NewBlock("ifcont")
	fg.b.CondBr(c, thenBB, elseBB)

	fg.b.SetBlock(thenBB)
	thenV, ok := fg.expr(data.Then)
	if !ok {
		return ir.Operand{}, false
	}
	fg.b.Br(mergeBB)
	thenEnd := fg.b.Block()

	fg.b.SetBlock(elseBB)
	elseV, ok := fg.expr(data.Else)
	if !ok {
		return ir.Operand{}, false
	}
	fg.b.Br(mergeBB)
	elseEnd := fg.b.Block()

	if thenV.Type != elseV.Type {
		return fg.fail(diag.SemTypeMismatch, e.Span,
			fmt.Sprintf("if branches have different types: %s and %s", astType(thenV.Type), astType(elseV.Type)))
	}
	fg.b.SetBlock(mergeBB)
	return fg.b.Phi(thenV.Type, []ir.PhiIncoming{
		{Value: thenV, Block: thenEnd},
		{Value: elseV, Block: elseEnd},
	}, "iftmp"), true
}

// forExpr lowers
//
//	for v = start, end, step in body
//
// into a loop that checks end before every iteration, runs body, then adds
// step (1.0 by default) to v. The loop variable is visible in end, step and
// body. The expression yields 0.0.
func (fg *funcGen) forExpr(id ast.ExprID, e *ast.Expr) (ir.Operand, bool) {
	data, _ := fg.exprs.For(id)
	start, ok := fg.expr(data.Start)
	if !ok {
		return ir.Operand{}, false
	}
	if start.Type != ir.TypeF64 {
		return fg.fail(diag.SemTypeMismatch, fg.span(data.Start), "for start value must be a scalar")
	}
	slot := fg.b.EntryAlloca(ir.TypeF64, 1, data.Var)
	fg.b.Store(start, slot)

	condBB := fg.b.NewBlock("loopcond")
	bodyBB := fg.b.NewBlock("loop")
	afterBB := fg.b.NewBlock("afterloop")
	fg.b.Br(condBB)

	fg.scope.push()
	defer fg.scope.pop()
	fg.scope.bind(data.Var, slot)

	fg.b.SetBlock(condBB)
	c, ok := fg.cond(data.End, "loop")
	if !ok {
		return ir.Operand{}, false
	}
	fg.b.CondBr(c, bodyBB, afterBB)

	fg.b.SetBlock(bodyBB)
	if _, ok := fg.expr(data.Body); !ok {
		return ir.Operand{}, false
	}
	step := ir.ConstF64(1)
	if data.Step.IsValid() {
		if step, ok = fg.expr(data.Step); !ok {
			return ir.Operand{}, false
		}
		if step.Type != ir.TypeF64 {
			return fg.fail(diag.SemTypeMismatch, fg.span(data.Step), "for step must be a scalar")
		}
	}
	cur := fg.b.Load(slot, data.Var)
	next := fg.b.Binary(ir.InstrFAdd, cur, step, "nextvar")
	fg.b.Store(next, slot)
	fg.b.Br(condBB)

	fg.b.SetBlock(afterBB)
	return ir.ConstF64(0), true
}

// varExpr evaluates each initializer before its binding becomes visible,
// so `var a = a` reads the outer a. Vector bindings are allocated with
// vector_malloc and released with vector_free after the body.
func (fg *funcGen) varExpr(id ast.ExprID, e *ast.Expr) (ir.Operand, bool) {
	data, _ := fg.exprs.Var(id)

	fg.scope.push()
	defer fg.scope.pop()

	var vectors []ir.Operand
	for _, b := range data.Bindings {
		if b.IsVector() {
			length, ok := fg.expr(b.Length)
			if !ok {
				return ir.Operand{}, false
			}
			if length.Type != ir.TypeF64 {
				return fg.fail(diag.SemTypeMismatch, fg.span(b.Length), "vector length must be a scalar")
			}
			slot := fg.b.EntryAlloca(ir.TypeVec, 1, b.Name)
			fg.b.Call(FnVectorMalloc, ir.TypeVoid, []ir.Operand{slot, length}, "")
			vectors = append(vectors, slot)
			fg.scope.bind(b.Name, slot)
			continue
		}

		init := ir.ConstF64(0)
		if b.Init.IsValid() {
			v, ok := fg.expr(b.Init)
			if !ok {
				return ir.Operand{}, false
			}
			init = v
		}
		slot := fg.b.EntryAlloca(init.Type, 1, b.Name)
		fg.b.Store(init, slot)
		fg.scope.bind(b.Name, slot)
	}

	body, ok := fg.expr(data.Body)
	if !ok {
		return ir.Operand{}, false
	}
	for i := len(vectors) - 1; i >= 0; i-- {
		fg.b.Call(FnVectorFree, ir.TypeVoid, []ir.Operand{vectors[i]}, "")
	}
	return body, true
}
