package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"kalmap/internal/ast"
	"kalmap/internal/source"
)

// CheckSpanInvariants walks the expression rooted at root and checks:
// 1) every span is non-empty, points at sf and lies within its content
// 2) every child span is contained in its parent span
func CheckSpanInvariants(e *ast.Exprs, root ast.ExprID, sf *source.File) error {
	if e == nil || sf == nil {
		return fmt.Errorf("nil arena or file")
	}
	lenContent, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	return checkExpr(e, root, source.Span{}, false, sf.ID, lenContent)
}

func checkExpr(e *ast.Exprs, id ast.ExprID, parent source.Span, haveParent bool, file source.FileID, limit uint32) error {
	expr := e.Get(id)
	if expr == nil {
		return fmt.Errorf("nil expression for id=%d", id)
	}
	sp := expr.Span
	if sp.End <= sp.Start {
		return fmt.Errorf("empty %s span: %v", expr.Kind, sp)
	}
	if sp.File != file {
		return fmt.Errorf("%s span file mismatch: got=%d want=%d", expr.Kind, sp.File, file)
	}
	if sp.End > limit {
		return fmt.Errorf("%s span end beyond content: %d > %d", expr.Kind, sp.End, limit)
	}
	if haveParent && (sp.Start < parent.Start || sp.End > parent.End) {
		return fmt.Errorf("%s span %v is outside parent span %v", expr.Kind, sp, parent)
	}
	for _, child := range children(e, id, expr.Kind) {
		if err := checkExpr(e, child, sp, true, file, limit); err != nil {
			return err
		}
	}
	return nil
}

func children(e *ast.Exprs, id ast.ExprID, kind ast.ExprKind) []ast.ExprID {
	switch kind {
	case ast.ExprUnary:
		u, _ := e.Unary(id)
		return []ast.ExprID{u.Operand}
	case ast.ExprBinary:
		b, _ := e.Binary(id)
		return []ast.ExprID{b.Left, b.Right}
	case ast.ExprCall:
		c, _ := e.Call(id)
		return c.Args
	case ast.ExprMap:
		m, _ := e.Map(id)
		return m.Args
	case ast.ExprIf:
		i, _ := e.If(id)
		return []ast.ExprID{i.Cond, i.Then, i.Else}
	case ast.ExprFor:
		f, _ := e.For(id)
		out := []ast.ExprID{f.Start, f.End}
		if f.Step.IsValid() {
			out = append(out, f.Step)
		}
		return append(out, f.Body)
	case ast.ExprVar:
		v, _ := e.Var(id)
		var out []ast.ExprID
		for _, b := range v.Bindings {
			switch {
			case b.IsVector():
				out = append(out, b.Length)
			case b.Init.IsValid():
				out = append(out, b.Init)
			}
		}
		return append(out, v.Body)
	}
	return nil
}
