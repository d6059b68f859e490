package parser

import (
	"fmt"
	"strings"
	"testing"

	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/lexer"
	"kalmap/internal/source"
)

func diagnosticsSummary(bag *diag.Bag) string {
	if bag == nil {
		return "<nil bag>"
	}
	diags := bag.Items()
	if len(diags) == 0 {
		return "<none>"
	}
	lines := make([]string, len(diags))
	for i, d := range diags {
		lines[i] = fmt.Sprintf("[%s] %s", d.Code.ID(), d.Message)
	}
	return strings.Join(lines, "; ")
}

func newTestParser(t *testing.T, input string, ops *OpTable) (*Parser, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.k", []byte(input))
	bag := diag.NewBag(32)
	opts := lexer.Options{Reporter: diag.BagReporter{Bag: bag}}
	lx := lexer.New(fs, id, opts)
	return New(lx, ast.NewBuilder(0), ops, Options{Reporter: diag.BagReporter{Bag: bag}}), bag
}

// render prints an expression as a fully parenthesized string.
func render(e *ast.Exprs, id ast.ExprID) string {
	expr := e.Get(id)
	if expr == nil {
		return "<nil>"
	}
	switch expr.Kind {
	case ast.ExprNumber:
		n, _ := e.Number(id)
		return fmt.Sprintf("%g", n.Value)
	case ast.ExprVariable:
		v, _ := e.Variable(id)
		return v.Name
	case ast.ExprUnary:
		u, _ := e.Unary(id)
		return fmt.Sprintf("(%c%s)", u.Op, render(e, u.Operand))
	case ast.ExprBinary:
		b, _ := e.Binary(id)
		return fmt.Sprintf("(%s %c %s)", render(e, b.Left), b.Op, render(e, b.Right))
	case ast.ExprCall:
		c, _ := e.Call(id)
		return fmt.Sprintf("%s(%s)", c.Callee, renderList(e, c.Args))
	case ast.ExprMap:
		m, _ := e.Map(id)
		return fmt.Sprintf("map[%s](%s)", m.Callee, renderList(e, m.Args))
	case ast.ExprIf:
		i, _ := e.If(id)
		return fmt.Sprintf("if %s then %s else %s", render(e, i.Cond), render(e, i.Then), render(e, i.Else))
	case ast.ExprFor:
		f, _ := e.For(id)
		step := "1"
		if f.Step.IsValid() {
			step = render(e, f.Step)
		}
		return fmt.Sprintf("for %s = %s, %s, %s in %s", f.Var, render(e, f.Start), render(e, f.End), step, render(e, f.Body))
	case ast.ExprVar:
		v, _ := e.Var(id)
		parts := make([]string, len(v.Bindings))
		for i, b := range v.Bindings {
			switch {
			case b.IsVector():
				parts[i] = fmt.Sprintf("vector %s[%s]", b.Name, render(e, b.Length))
			case b.Init.IsValid():
				parts[i] = fmt.Sprintf("%s = %s", b.Name, render(e, b.Init))
			default:
				parts[i] = b.Name
			}
		}
		return fmt.Sprintf("var %s in %s", strings.Join(parts, ", "), render(e, v.Body))
	}
	return "<?>"
}

func renderList(e *ast.Exprs, ids []ast.ExprID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = render(e, id)
	}
	return strings.Join(parts, ", ")
}
