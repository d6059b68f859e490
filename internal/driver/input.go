package driver

import (
	"fmt"
	"io"

	"kalmap/internal/ast"
	"kalmap/internal/diag"
	"kalmap/internal/ir"
	"kalmap/internal/irgen"
	"kalmap/internal/lexer"
	"kalmap/internal/parser"
	"kalmap/internal/source"
	"kalmap/internal/token"
)

// Unit is a whole program loaded into its own file set, with a bag
// collecting everything the offline passes report.
type Unit struct {
	FileSet *source.FileSet
	File    *source.File
	Bag     *diag.Bag
	id      source.FileID
}

// LoadFile reads path into a fresh unit.
func LoadFile(path string, maxDiagnostics int) (*Unit, error) {
	fs := source.NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		return nil, err
	}
	return newUnit(fs, id, maxDiagnostics), nil
}

// LoadReader reads r to EOF under the display name name.
func LoadReader(name string, r io.Reader, maxDiagnostics int) (*Unit, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	fs := source.NewFileSet()
	return newUnit(fs, fs.AddVirtual(name, content), maxDiagnostics), nil
}

func newUnit(fs *source.FileSet, id source.FileID, maxDiagnostics int) *Unit {
	return &Unit{FileSet: fs, File: fs.Get(id), Bag: diag.NewBag(maxDiagnostics), id: id}
}

func (u *Unit) reporter() diag.Reporter { return diag.BagReporter{Bag: u.Bag} }

// Tokens lexes the unit to EOF; the EOF token is included.
func (u *Unit) Tokens() []token.Token {
	lx := lexer.New(u.FileSet, u.id, lexer.Options{Reporter: u.reporter()})
	var toks []token.Token
	for {
		tok := lx.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

// CheckResult counts what Check compiled.
type CheckResult struct {
	Definitions int
	Externs     int
	Expressions int
	Module      *ir.Module
}

// Check compiles every unit the way a session would without running
// anything. Top-level expressions are verified and then discarded.
func (u *Unit) Check() (CheckResult, error) {
	rep := u.reporter()
	ops := parser.NewOpTable()
	arenas := ast.NewBuilder(0)
	p := parser.New(lexer.New(u.FileSet, u.id, lexer.Options{Reporter: rep}), arenas, ops, parser.Options{Reporter: rep})
	res := CheckResult{Module: ir.NewModule(u.File.Path)}
	gen := irgen.New(res.Module, ops, irgen.Options{Reporter: rep})

	for {
		arenas.Reset()
		tok := p.Peek()
		if tok.Kind == token.EOF {
			break
		}
		if tok.IsChar(';') {
			p.Skip()
			continue
		}
		ok := true
		switch tok.Kind {
		case token.KwDef:
			decl, parsed := p.ParseDefinition()
			if ok = parsed; ok {
				if _, defined := gen.Define(arenas.Exprs, decl); defined {
					res.Definitions++
				}
			}
		case token.KwExtern:
			proto, parsed := p.ParseExtern()
			if ok = parsed; ok {
				if _, declared := gen.Extern(proto); declared {
					res.Externs++
				}
			}
		default:
			decl, parsed := p.ParseTopLevelExpr()
			if ok = parsed; ok {
				if _, defined := gen.Define(arenas.Exprs, decl); defined {
					res.Expressions++
				}
				res.Module.RemoveFunc(ast.AnonExprName)
			}
		}
		if !ok {
			p.Skip()
		}
	}
	if err := ir.Verify(res.Module); err != nil {
		return res, fmt.Errorf("verify %s: %w", u.File.Path, err)
	}
	return res, nil
}
