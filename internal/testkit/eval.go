package testkit

import (
	"bytes"
	"context"

	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/ir"
	"kalmap/internal/irgen"
	"kalmap/internal/lexer"
	"kalmap/internal/parser"
	"kalmap/internal/rtlib"
	"kalmap/internal/source"
	"kalmap/internal/token"
	"kalmap/internal/vm"
)

// EvalOptions configures Eval.
type EvalOptions struct {
	MaxDepth int
	Seed     uint64
	// Setup runs after the library routines are registered, e.g. to bind
	// vector_map.
	Setup func(m *vm.VM)
}

// Evaluation is what running a source produced.
type Evaluation struct {
	Values []vm.Value
	Errors []*vm.VMError // one per top-level expression, nil on success
	Out    string
	Diags  *diag.Bag
	Module *ir.Module
	VM     *vm.VM
}

// Last returns the value and error of the final top-level expression.
func (e *Evaluation) Last() (vm.Value, *vm.VMError) {
	if len(e.Values) == 0 {
		return vm.Value{}, nil
	}
	return e.Values[len(e.Values)-1], e.Errors[len(e.Errors)-1]
}

// Eval compiles src unit by unit and runs every top-level expression, the
// way an interactive session does. Units that fail to parse or compile
// leave a diagnostic and are skipped.
func Eval(src string, opts EvalOptions) *Evaluation {
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.k", []byte(src))
	bag := diag.NewBag(64)
	rep := diag.BagReporter{Bag: bag}
	ops := parser.NewOpTable()
	arenas := ast.NewBuilder(0)
	p := parser.New(lexer.New(fs, id, lexer.Options{Reporter: rep}), arenas, ops, parser.Options{Reporter: rep})
	mod := ir.NewModule("test")
	g := irgen.New(mod, ops, irgen.Options{Reporter: rep})

	var out bytes.Buffer
	m := vm.New(mod, vm.Options{MaxDepth: opts.MaxDepth, Stdout: &out})
	rtlib.Register(m, rtlib.Options{Seed: opts.Seed})
	if opts.Setup != nil {
		opts.Setup(m)
	}

	ev := &Evaluation{Diags: bag, Module: mod, VM: m}
	for {
		tok := p.Peek()
		switch {
		case tok.Kind == token.EOF:
			ev.Out = out.String()
			return ev
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
				if _, ok := g.Define(arenas.Exprs, decl); ok {
					v, vmErr := m.Run(context.Background(), ast.AnonExprName)
					ev.Values = append(ev.Values, v)
					ev.Errors = append(ev.Errors, vmErr)
					mod.RemoveFunc(ast.AnonExprName)
				}
				continue
			}
		}
		p.Skip()
	}
}
