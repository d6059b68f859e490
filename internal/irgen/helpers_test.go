package irgen

import (
	"fmt"
	"strings"
	"testing"

	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/ir"
	"kalmap/internal/lexer"
	"kalmap/internal/parser"
	"kalmap/internal/source"
	"kalmap/internal/token"
)

func diagnosticsSummary(bag *diag.Bag) string {
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

// compileUnits runs the top-level loop over src without executing anything.
// Top-level expressions are compiled and left in the module.
func compileUnits(t *testing.T, src string, ops *parser.OpTable) (*Generator, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.k", []byte(src))
	bag := diag.NewBag(64)
	rep := diag.BagReporter{Bag: bag}
	lx := lexer.New(fs, id, lexer.Options{Reporter: rep})
	if ops == nil {
		ops = parser.NewOpTable()
	}
	arenas := ast.NewBuilder(0)
	p := parser.New(lx, arenas, ops, parser.Options{Reporter: rep})
	g := New(ir.NewModule("test"), ops, Options{Reporter: rep})

	for {
		tok := p.Peek()
		switch {
		case tok.Kind == token.EOF:
			return g, bag
		case tok.IsChar(';'):
			p.Skip()
			continue
		case tok.Kind == token.KwDef:
			if decl, ok := p.ParseDefinition(); ok {
				g.Define(arenas.Exprs, decl)
				continue
			}
		case tok.Kind == token.KwExtern:
			if proto, ok := p.ParseExtern(); ok {
				g.Extern(proto)
				continue
			}
		default:
			if decl, ok := p.ParseTopLevelExpr(); ok {
				g.Define(arenas.Exprs, decl)
				continue
			}
		}
		p.Skip()
	}
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}
