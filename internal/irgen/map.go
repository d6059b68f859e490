package irgen

import (
	"fmt"

	"fortio.org/safecast"

	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/ir"
)

// mapExpr lowers map(f, a1..ak) into a call to the vector_map runtime
// routine:
//
//	name   = global "f"
//	res    = alloca dvec
//	args   = alloca dvec, k
//	args[i] = ai
//	vector_map(name, res, args, k)
//	result = load res
func (fg *funcGen) mapExpr(id ast.ExprID, e *ast.Expr) (ir.Operand, bool) {
	m, _ := fg.exprs.Map(id)
	callee := fg.g.mod.Func(m.Callee)
	if callee == nil {
		return fg.fail(diag.SemUnknownFunction, m.CalleeSpan, "Unknown function referenced: "+m.Callee)
	}
	if callee.Result != ir.TypeF64 {
		return fg.fail(diag.SemMapCalleeNotScalar, m.CalleeSpan, fmt.Sprintf("%s must return a scalar to be mapped", m.Callee))
	}
	for _, p := range callee.Params {
		if p.Type != ir.TypeF64 {
			return fg.fail(diag.SemMapCalleeNotScalar, m.CalleeSpan, fmt.Sprintf("%s must take only scalars to be mapped", m.Callee))
		}
	}
	if len(callee.Params) != len(m.Args) {
		return fg.fail(diag.SemArityMismatch, e.Span,
			fmt.Sprintf("Incorrect # arguments passed: %s takes %d, map got %d vectors", m.Callee, len(callee.Params), len(m.Args)))
	}
	argc, err := safecast.Conv[int32](len(m.Args))
	if err != nil {
		return fg.fail(diag.SemInternal, e.Span, "too many map arguments")
	}

	vals := make([]ir.Operand, len(m.Args))
	for i, a := range m.Args {
		v, ok := fg.expr(a)
		if !ok {
			return ir.Operand{}, false
		}
		if v.Type != ir.TypeVec {
			return fg.fail(diag.SemMapArgNotVector, fg.span(a), fmt.Sprintf("map argument %d is not a vector", i+1))
		}
		vals[i] = v
	}

	name := fg.g.mod.InternString(m.Callee)
	res := fg.b.EntryAlloca(ir.TypeVec, 1, "mapres")
	args := fg.b.EntryAlloca(ir.TypeVec, argc, "mapargs")
	for i, v := range vals {
		ptr := args
		if i > 0 {
			ptr = fg.b.GEP(args, ir.ConstI32(int32(i)), "maparg")
		}
		fg.b.Store(v, ptr)
	}
	fg.b.Call(FnVectorMap, ir.TypeVoid, []ir.Operand{ir.GlobalRef(name), res, args, ir.ConstI32(argc)}, "")
	return fg.b.Load(res, "result"), true
}
